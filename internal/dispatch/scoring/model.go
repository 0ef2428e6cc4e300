// internal/dispatch/scoring/model.go
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	commonerrors "dispatch-engine/internal/common/errors"
	commonhttp "dispatch-engine/internal/common/http"
	"dispatch-engine/internal/dispatch/feature"
)

// Model is the inference boundary: a fixed-order tensor of the schema's
// width in, a per-class probability array out.
type Model interface {
	Predict(ctx context.Context, vec feature.Vector) ([]float64, error)
}

// Provider loads the model handle and its metadata together, so the label
// map can never be stale relative to the loaded model.
type Provider interface {
	Load(ctx context.Context) (Model, *Metadata, error)
}

// HTTPModel scores over a remote inference endpoint with a bounded timeout.
type HTTPModel struct {
	url        string
	httpClient *commonhttp.Client
}

func NewHTTPModel(url string, timeout time.Duration) *HTTPModel {
	return &HTTPModel{
		url:        url,
		httpClient: commonhttp.NewClient(timeout),
	}
}

type inferenceRequest struct {
	Inputs []float64 `json:"inputs"`
	Width  int       `json:"width"`
}

type inferenceResponse struct {
	Probabilities []float64 `json:"probabilities"`
}

func (m *HTTPModel) Predict(ctx context.Context, vec feature.Vector) ([]float64, error) {
	body, err := json.Marshal(inferenceRequest{Inputs: vec, Width: len(vec)})
	if err != nil {
		return nil, fmt.Errorf("marshal inference request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.DoWithContext(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, commonerrors.NewModelTimeoutError(err.Error())
		}
		return nil, commonerrors.NewModelUnavailableError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, commonerrors.NewModelUnavailableError(fmt.Sprintf("status %d", resp.StatusCode))
	}

	var out inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, commonerrors.NewModelMalformedError(err.Error())
	}
	if len(out.Probabilities) == 0 {
		return nil, commonerrors.NewModelMalformedError("response has no probabilities")
	}

	return out.Probabilities, nil
}

// FileProvider is the default Provider: metadata from a local JSON file,
// inference over HTTP.
type FileProvider struct {
	MetadataPath string
	InferenceURL string
	Timeout      time.Duration
}

func (p *FileProvider) Load(_ context.Context) (Model, *Metadata, error) {
	meta, err := LoadMetadata(p.MetadataPath)
	if err != nil {
		return nil, nil, err
	}
	if p.InferenceURL == "" {
		return nil, nil, commonerrors.NewModelUnavailableError("inference URL not configured")
	}
	return NewHTTPModel(p.InferenceURL, p.Timeout), meta, nil
}
