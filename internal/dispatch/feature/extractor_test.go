// internal/dispatch/feature/extractor_test.go
package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"dispatch-engine/internal/models"
)

func createTestJob() *models.Job {
	return &models.Job{
		ID:           "job-001",
		CustomerID:   "customer-001",
		Category:     "Plumbing",
		Location:     models.Location{Lat: 19.0760, Lng: 72.8777},
		Status:       models.JobStatusPending,
		BookingValue: 450,
		Weather:      "Rain",
	}
}

func createTestWorker() *models.Worker {
	return &models.Worker{
		ID:            "worker-001",
		Name:          "Asha",
		Categories:    []string{"plumbing"},
		Location:      models.Location{Lat: 19.1136, Lng: 72.8697},
		IsAvailable:   true,
		Rating:        4.8,
		CompletedJobs: 10,
	}
}

func TestExtract_Width(t *testing.T) {
	e := NewExtractor()
	vec := e.Extract(createTestJob(), createTestWorker())
	assert.Len(t, vec, CurrentSchema().Width())
}

func TestExtract_NumericFields(t *testing.T) {
	e := NewExtractor()
	job := createTestJob()
	worker := createTestWorker()

	vec := e.Extract(job, worker)
	schema := CurrentSchema()

	assert.InDelta(t, 4.25, vec[schema.IndexOf(FieldDistanceKm)], 0.5)
	assert.Equal(t, 450.0, vec[schema.IndexOf(FieldBookingValue)])
	assert.Equal(t, 1.0, vec[schema.IndexOf(FieldSkillMatchScore)])
	assert.Equal(t, 4.8, vec[schema.IndexOf(FieldWorkerAvgRating)])
	assert.Equal(t, 0.5, vec[schema.IndexOf(FieldWorkerRepeatRate)])
}

func TestExtract_DefaultsWithoutWorker(t *testing.T) {
	e := NewExtractor()
	job := createTestJob()
	job.BookingValue = 0

	vec := e.Extract(job, nil)
	schema := CurrentSchema()

	assert.Equal(t, DefaultDistanceKm, vec[schema.IndexOf(FieldDistanceKm)])
	assert.Equal(t, DefaultBookingValue, vec[schema.IndexOf(FieldBookingValue)])
	assert.Equal(t, DefaultRating, vec[schema.IndexOf(FieldWorkerAvgRating)])
	assert.Equal(t, DefaultRepeatRate, vec[schema.IndexOf(FieldWorkerRepeatRate)])
}

func TestExtract_DefaultDistanceWhenLocationUnknown(t *testing.T) {
	e := NewExtractor()
	job := createTestJob()
	job.Location = models.Location{}

	vec := e.Extract(job, createTestWorker())
	assert.Equal(t, DefaultDistanceKm, vec[CurrentSchema().IndexOf(FieldDistanceKm)])
}

func TestExtract_CategoryOneHot(t *testing.T) {
	e := NewExtractor()
	schema := CurrentSchema()

	tests := []struct {
		category string
		hotField string
	}{
		{"Plumbing", "service_category_plumbing"},
		{"cleaning", "service_category_cleaning"},
		{"ELECTRICAL", "service_category_electrical"},
	}

	for _, tc := range tests {
		t.Run(tc.category, func(t *testing.T) {
			job := createTestJob()
			job.Category = tc.category
			vec := e.Extract(job, nil)

			for _, c := range CategoryVocabulary {
				field := "service_category_" + c
				if field == tc.hotField {
					assert.Equal(t, 1.0, vec[schema.IndexOf(field)], field)
				} else {
					assert.Equal(t, 0.0, vec[schema.IndexOf(field)], field)
				}
			}
		})
	}
}

func TestExtract_UnknownCategoryEncodesAllZero(t *testing.T) {
	e := NewExtractor()
	job := createTestJob()
	job.Category = "gardening"

	vec := e.Extract(job, nil)
	schema := CurrentSchema()
	for _, c := range CategoryVocabulary {
		assert.Equal(t, 0.0, vec[schema.IndexOf("service_category_"+c)])
	}
}

func TestExtract_WeatherOneHot(t *testing.T) {
	e := NewExtractor()
	schema := CurrentSchema()

	job := createTestJob()
	job.Weather = "Rain"
	vec := e.Extract(job, nil)
	assert.Equal(t, 1.0, vec[schema.IndexOf("weather_Rain")])
	assert.Equal(t, 0.0, vec[schema.IndexOf("weather_Clouds")])

	job.Weather = "Snow"
	vec = e.Extract(job, nil)
	for _, w := range WeatherVocabulary {
		assert.Equal(t, 0.0, vec[schema.IndexOf("weather_"+w)])
	}

	job.Weather = ""
	vec = e.Extract(job, nil)
	for _, w := range WeatherVocabulary {
		assert.Equal(t, 0.0, vec[schema.IndexOf("weather_"+w)])
	}
}

func TestExtract_RepeatRateCapped(t *testing.T) {
	e := NewExtractor()
	worker := createTestWorker()
	worker.CompletedJobs = 100

	vec := e.Extract(createTestJob(), worker)
	assert.Equal(t, 1.0, vec[CurrentSchema().IndexOf(FieldWorkerRepeatRate)])
}

func TestDistanceKm(t *testing.T) {
	mumbai := models.Location{Lat: 19.0760, Lng: 72.8777}
	pune := models.Location{Lat: 18.5204, Lng: 73.8567}

	assert.Equal(t, 0.0, DistanceKm(mumbai, mumbai))

	d := DistanceKm(mumbai, pune)
	assert.InDelta(t, 120, d, 5)
	assert.Equal(t, d, DistanceKm(pune, mumbai))
}
