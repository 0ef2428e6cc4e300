// internal/models/worker.go
package models

import (
	"strings"
	"time"
)

// Worker is a service provider eligible to be offered jobs.
// IsAvailable is false whenever ActiveJobID is non-empty.
type Worker struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Categories    []string  `json:"serviceCategories"`
	Location      Location  `json:"location"`
	IsAvailable   bool      `json:"isAvailable"`
	ActiveJobID   string    `json:"activeJobId,omitempty"`
	Rating        float64   `json:"rating"` // 0..5, 0 = unrated
	CompletedJobs int       `json:"completedJobs"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ServesCategory reports whether the worker covers the given service
// category, compared case-insensitively.
func (w *Worker) ServesCategory(category string) bool {
	for _, c := range w.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}
