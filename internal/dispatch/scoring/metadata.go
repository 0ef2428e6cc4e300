// internal/dispatch/scoring/metadata.go
package scoring

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"

	"dispatch-engine/internal/dispatch/feature"
)

// metadataSchema guards the shape of the model metadata file before it is
// trusted. A malformed file fails the load, which routes scoring to the
// heuristic fallback rather than crashing the process.
const metadataSchema = `{
	"type": "object",
	"required": ["schemaVersion", "features", "labelMap"],
	"properties": {
		"schemaVersion": {"type": "string", "minLength": 1},
		"features": {
			"type": "array",
			"items": {"type": "string"},
			"minItems": 1
		},
		"labelMap": {
			"type": "object",
			"additionalProperties": {"type": "integer", "minimum": 0}
		}
	}
}`

// Metadata describes a trained model: the exact feature order it expects
// and the worker identity to output-index mapping learned at training time.
type Metadata struct {
	SchemaVersion string         `json:"schemaVersion"`
	Features      []string       `json:"features"`
	LabelMap      map[string]int `json:"labelMap"`
}

// OutputIndex returns the model output position for a worker. ok is false
// when the worker is unknown to the model.
func (m *Metadata) OutputIndex(workerID string) (int, bool) {
	idx, ok := m.LabelMap[workerID]
	return idx, ok
}

// LoadMetadata reads, validates and parses a model metadata file, then
// checks it against the serving feature schema.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model metadata: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(metadataSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validate model metadata: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("model metadata invalid: %v", errs)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse model metadata: %w", err)
	}

	if err := feature.CurrentSchema().Validate(meta.SchemaVersion, meta.Features); err != nil {
		return nil, err
	}

	return &meta, nil
}
