// internal/dispatch/feature/schema.go
package feature

import "fmt"

// SchemaVersion identifies the feature layout the serving side was trained
// against. A model whose metadata names a different version is rejected at
// load time instead of silently zero-filling drifted fields.
const SchemaVersion = "v1"

// Field names of the numeric block, in vector order.
const (
	FieldDistanceKm       = "distance_km"
	FieldBookingValue     = "booking_value"
	FieldSkillMatchScore  = "skill_match_score"
	FieldWorkerAvgRating  = "worker_avg_rating"
	FieldWorkerRepeatRate = "worker_repeat_rate"
)

// Closed one-hot vocabularies. Values outside a vocabulary encode as
// all-zero ("none of the above"), which is valid input, not an error.
var (
	CategoryVocabulary = []string{
		"cleaning",
		"electrical",
		"general_maintenance",
		"moving_help",
		"painting",
		"plumbing",
	}

	WeatherVocabulary = []string{
		"Clouds",
		"Haze",
		"Rain",
		"Smoke",
	}
)

// Schema is the ordered, fixed-width feature layout: numeric fields first,
// then one-hot category flags, then one-hot weather flags.
type Schema struct {
	Version string
	Fields  []string
	index   map[string]int
}

// Vector is one extracted feature row, positionally aligned to a Schema.
type Vector []float64

var v1 = buildSchema()

func buildSchema() *Schema {
	fields := []string{
		FieldDistanceKm,
		FieldBookingValue,
		FieldSkillMatchScore,
		FieldWorkerAvgRating,
		FieldWorkerRepeatRate,
	}
	for _, c := range CategoryVocabulary {
		fields = append(fields, "service_category_"+c)
	}
	for _, w := range WeatherVocabulary {
		fields = append(fields, "weather_"+w)
	}

	index := make(map[string]int, len(fields))
	for i, f := range fields {
		index[f] = i
	}

	return &Schema{
		Version: SchemaVersion,
		Fields:  fields,
		index:   index,
	}
}

// CurrentSchema returns the active feature schema.
func CurrentSchema() *Schema {
	return v1
}

// Width returns the fixed vector length.
func (s *Schema) Width() int {
	return len(s.Fields)
}

// IndexOf returns the position of a named field, or -1 when absent.
func (s *Schema) IndexOf(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Validate checks that an ordered field list from model metadata matches
// this schema exactly. Any drift is a startup error.
func (s *Schema) Validate(version string, fields []string) error {
	if version != s.Version {
		return fmt.Errorf("feature schema version mismatch: serving %s, model %s", s.Version, version)
	}
	if len(fields) != len(s.Fields) {
		return fmt.Errorf("feature schema width mismatch: serving %d, model %d", len(s.Fields), len(fields))
	}
	for i, f := range fields {
		if f != s.Fields[i] {
			return fmt.Errorf("feature schema drift at position %d: serving %q, model %q", i, s.Fields[i], f)
		}
	}
	return nil
}
