// Package schedule loads dose and lab schedules from the JSON export format or
// hand-written YAML files, and converts them into sim types.
package schedule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/hrt-sim/hrt-sim/sim"
)

// Schedule is a decoded, validated set of dose events and lab results.
type Schedule struct {
	WeightKG float64 // 0 when the file does not carry a weight
	Events   []sim.DoseEvent
	Labs     []sim.LabResult
}

// Format selects the file decoder.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFromPath picks the decoder from the file extension; anything that is
// not .yaml/.yml is treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

type document struct {
	Weight     float64       `json:"weight" yaml:"weight" validate:"gte=0"`
	Events     []eventRecord `json:"events" yaml:"events" validate:"dive"`
	LabResults []labRecord   `json:"labResults" yaml:"labResults" validate:"dive"`
}

type eventRecord struct {
	ID     string         `json:"id" yaml:"id"`
	Route  string         `json:"route" yaml:"route" validate:"required,oneof=injection patchApply patchRemove gel oral sublingual"`
	TimeH  *float64       `json:"timeH" yaml:"timeH" validate:"required"`
	DoseMG float64        `json:"doseMG" yaml:"doseMG"`
	Ester  string         `json:"ester" yaml:"ester" validate:"omitempty,oneof=E2 EB EV EC EN CPA"`
	Extras map[string]any `json:"extras,omitempty" yaml:"extras,omitempty"`
}

type labRecord struct {
	ID        string   `json:"id" yaml:"id"`
	TimeH     *float64 `json:"timeH" yaml:"timeH" validate:"required"`
	ConcValue float64  `json:"concValue" yaml:"concValue" validate:"gte=0"`
	Unit      string   `json:"unit" yaml:"unit" validate:"required,oneof=pg/ml pmol/l"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateEventRecord, eventRecord{})
	v.RegisterStructValidation(validateLabRecord, labRecord{})
	return v
}

// validateEventRecord enforces the cross-field rules: a finite time and a
// positive dose for everything but patch removals.
func validateEventRecord(sl validator.StructLevel) {
	rec := sl.Current().Interface().(eventRecord)
	if rec.TimeH != nil && !isFinite(*rec.TimeH) {
		sl.ReportError(rec.TimeH, "TimeH", "timeH", "finite", "")
	}
	if rec.Route != "patchRemove" && !(rec.DoseMG > 0 && isFinite(rec.DoseMG)) {
		sl.ReportError(rec.DoseMG, "DoseMG", "doseMG", "gt", "0")
	}
}

func validateLabRecord(sl validator.StructLevel) {
	rec := sl.Current().Interface().(labRecord)
	if rec.TimeH != nil && !isFinite(*rec.TimeH) {
		sl.ReportError(rec.TimeH, "TimeH", "timeH", "finite", "")
	}
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Load reads a schedule file. password is only used when the file is an
// encrypted export envelope.
func Load(path, password string) (*Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schedule: %w", err)
	}
	return Decode(data, FormatFromPath(path), password)
}

// Decode parses schedule bytes. JSON input may be wrapped in an encrypted
// envelope; YAML input is parsed strictly and rejects unknown keys.
func Decode(data []byte, format Format, password string) (*Schedule, error) {
	var doc document
	switch format {
	case FormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parsing schedule YAML: %w", err)
		}
	default:
		plain, err := unwrapEnvelope(data, password)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(plain, &doc); err != nil {
			return nil, fmt.Errorf("parsing schedule JSON: %w", err)
		}
	}
	normalize(&doc)
	if err := validate.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}
	return doc.toSchedule()
}

// normalize canonicalizes case-insensitive enum fields before validation.
func normalize(doc *document) {
	for i := range doc.Events {
		if r, err := sim.ParseRoute(doc.Events[i].Route); err == nil {
			doc.Events[i].Route = r.String()
		}
		if e, err := sim.ParseEster(doc.Events[i].Ester); err == nil {
			doc.Events[i].Ester = e.String()
		}
	}
	for i := range doc.LabResults {
		doc.LabResults[i].Unit = strings.ToLower(strings.TrimSpace(doc.LabResults[i].Unit))
	}
}

func (doc *document) toSchedule() (*Schedule, error) {
	s := &Schedule{
		WeightKG: doc.Weight,
		Events:   make([]sim.DoseEvent, 0, len(doc.Events)),
		Labs:     make([]sim.LabResult, 0, len(doc.LabResults)),
	}
	for i, rec := range doc.Events {
		route, err := sim.ParseRoute(rec.Route)
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		ester := sim.EsterE2
		if rec.Ester != "" {
			if ester, err = sim.ParseEster(rec.Ester); err != nil {
				return nil, fmt.Errorf("events[%d]: %w", i, err)
			}
		}
		s.Events = append(s.Events, sim.DoseEvent{
			ID:     idOrNew(rec.ID),
			Route:  route,
			TimeH:  *rec.TimeH,
			DoseMG: rec.DoseMG,
			Ester:  ester,
			Extras: sim.ParseExtras(route, rec.Extras),
		})
	}
	for i, rec := range doc.LabResults {
		unit, err := sim.ParseUnit(rec.Unit)
		if err != nil {
			return nil, fmt.Errorf("labResults[%d]: %w", i, err)
		}
		s.Labs = append(s.Labs, sim.LabResult{
			ID:        idOrNew(rec.ID),
			TimeH:     *rec.TimeH,
			ConcValue: rec.ConcValue,
			Unit:      unit,
		})
	}
	logrus.Debugf("loaded schedule: %d events, %d lab results, weight=%.1fkg",
		len(s.Events), len(s.Labs), s.WeightKG)
	return s, nil
}

func idOrNew(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
