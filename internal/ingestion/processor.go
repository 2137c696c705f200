package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultProcessorTimeout = 5 * time.Second

// DispatchRequest is the payload sent to the external processor.
type DispatchRequest struct {
	DocumentID   int64  `json:"document_id"`
	DocumentName string `json:"document_name"`
	DocumentURL  string `json:"document_url"`
	CallbackURL  string `json:"callback_url"`
}

// ProcessorClient talks to the external document processor over HTTP.
type ProcessorClient struct {
	baseURL string
	http    *http.Client
}

// NewProcessorClient constructs a client for the processor at baseURL.
func NewProcessorClient(baseURL string) *ProcessorClient {
	return &ProcessorClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: defaultProcessorTimeout},
	}
}

// Health probes the processor's health endpoint. A non-2xx answer or any
// transport failure counts as unavailable.
func (c *ProcessorClient) Health(ctx context.Context) error {
	if c.baseURL == "" {
		return fmt.Errorf("%w: no processor configured", ErrUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: health returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

// Dispatch hands a document to the processor for ingestion.
func (c *ProcessorClient) Dispatch(ctx context.Context, dr DispatchRequest) error {
	payload, err := json.Marshal(dr)
	if err != nil {
		return fmt.Errorf("encode dispatch payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process-document", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch document %d: %w", dr.DocumentID, err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("dispatch document %d: processor returned %d", dr.DocumentID, resp.StatusCode)
	}
	return nil
}
