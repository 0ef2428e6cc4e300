// internal/dispatch/feature/extractor.go
package feature

import (
	"math"
	"strings"

	"dispatch-engine/internal/models"
)

// Defaults used when an input is missing. These mirror the values the
// scoring model was trained with, so an absent field lands on the training
// distribution instead of zero.
const (
	DefaultDistanceKm   = 3.5
	DefaultBookingValue = 300.0
	DefaultRating       = 4.5
	DefaultRepeatRate   = 0.2

	// Candidates are category-filtered before scoring, so the skill match
	// indicator is always satisfied at extraction time.
	skillMatchScore = 1.0
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two points.
func DistanceKm(a, b models.Location) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Extractor converts a job (and optionally a candidate worker) into a
// fixed-shape vector aligned to the current schema. Pure; no I/O.
type Extractor struct {
	schema *Schema
}

func NewExtractor() *Extractor {
	return &Extractor{schema: CurrentSchema()}
}

// Schema returns the layout vectors from this extractor follow.
func (e *Extractor) Schema() *Schema {
	return e.schema
}

// Extract builds the feature vector for scoring worker against job.
// worker may be nil; defaults fill the gaps.
func (e *Extractor) Extract(job *models.Job, worker *models.Worker) Vector {
	vec := make(Vector, e.schema.Width())

	vec[e.schema.IndexOf(FieldDistanceKm)] = e.distance(job, worker)
	vec[e.schema.IndexOf(FieldBookingValue)] = bookingValue(job)
	vec[e.schema.IndexOf(FieldSkillMatchScore)] = skillMatchScore
	vec[e.schema.IndexOf(FieldWorkerAvgRating)] = rating(worker)
	vec[e.schema.IndexOf(FieldWorkerRepeatRate)] = repeatRate(worker)

	// One-hot blocks. Unknown values leave the whole block zero.
	if i := e.schema.IndexOf("service_category_" + strings.ToLower(job.Category)); i >= 0 {
		vec[i] = 1
	}
	if job.Weather != "" {
		if i := e.schema.IndexOf("weather_" + job.Weather); i >= 0 {
			vec[i] = 1
		}
	}

	return vec
}

func (e *Extractor) distance(job *models.Job, worker *models.Worker) float64 {
	if worker == nil || worker.Location.IsZero() || job.Location.IsZero() {
		return DefaultDistanceKm
	}
	return DistanceKm(job.Location, worker.Location)
}

func bookingValue(job *models.Job) float64 {
	if job.BookingValue <= 0 {
		return DefaultBookingValue
	}
	return job.BookingValue
}

func rating(worker *models.Worker) float64 {
	if worker == nil || worker.Rating <= 0 {
		return DefaultRating
	}
	return worker.Rating
}

func repeatRate(worker *models.Worker) float64 {
	if worker == nil {
		return DefaultRepeatRate
	}
	return math.Min(float64(worker.CompletedJobs)/20.0, 1.0)
}
