package jobs

import (
	"context"
	"net/http"

	"github.com/tinytelemetry/opsdeck/internal/model"
	"github.com/tinytelemetry/opsdeck/internal/source"
)

// HTTPClient drives jobs over the same client the sources use.
type HTTPClient struct {
	c *source.Client
}

// NewHTTPClient wraps c.
func NewHTTPClient(c *source.Client) *HTTPClient {
	return &HTTPClient{c: c}
}

// Trigger POSTs params to the trigger endpoint, tagged with requestID.
func (h *HTTPClient) Trigger(ctx context.Context, spec model.JobSpec, requestID string, params map[string]any) (model.TriggerResponse, error) {
	if params == nil {
		params = map[string]any{}
	}
	var resp model.TriggerResponse
	err := h.c.DoJSON(ctx, http.MethodPost, spec.Trigger, params, map[string]string{"X-Request-ID": requestID}, &resp)
	return resp, err
}

// Status GETs the status endpoint.
func (h *HTTPClient) Status(ctx context.Context, spec model.JobSpec) (model.StatusResponse, error) {
	var resp model.StatusResponse
	err := h.c.DoJSON(ctx, http.MethodGet, spec.Status, nil, nil, &resp)
	return resp, err
}
