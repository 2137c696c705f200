package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"docvault-backend/internal/documents"
	"docvault-backend/internal/queue"
	"docvault-backend/internal/shared/auth"
	"docvault-backend/internal/shared/metrics"
	"docvault-backend/internal/shared/telemetry"
)

// Service coordinates ingestion between the document lifecycle and the
// external processor.
type Service struct {
	Docs      *documents.Service
	Processor *ProcessorClient
	Events    queue.Publisher

	// CallbackURL is handed to the processor so it can post status updates
	// back to this service.
	CallbackURL string

	// DispatchTimeout bounds the detached dispatch call. Zero means the
	// default.
	DispatchTimeout time.Duration

	// dispatchDone, when set, is signalled after each detached dispatch
	// settles. Tests use it to wait for the goroutine.
	dispatchDone chan error
}

const defaultDispatchTimeout = 10 * time.Second

// Trigger checks the processor is healthy, resolves a signed link for the
// document (enforcing ownership) and hands it off without waiting for the
// processing result. The document row is untouched; the processor reports
// progress through the status webhook.
func (s *Service) Trigger(ctx context.Context, caller auth.Identity, id int64) (TriggerResponse, error) {
	start := time.Now()

	if err := s.Processor.Health(ctx); err != nil {
		return TriggerResponse{}, err
	}

	link, err := s.Docs.Read(ctx, caller, id)
	if err != nil {
		return TriggerResponse{}, err
	}
	status, err := s.Docs.StatusFor(ctx, caller, id)
	if err != nil {
		return TriggerResponse{}, err
	}

	dr := DispatchRequest{
		DocumentID:   id,
		DocumentName: link.Name,
		DocumentURL:  link.URL,
		CallbackURL:  s.CallbackURL,
	}
	go s.dispatch(dr)

	metrics.IncIngestionTriggered()
	metrics.ObserveTriggerDurationMs(float64(time.Since(start).Milliseconds()))

	return TriggerResponse{
		Message:    "Ingestion triggered.",
		DocumentID: id,
		Status:     string(status),
	}, nil
}

// dispatch runs detached from the request that triggered it, with its own
// deadline. Failures are logged; the caller already got its response.
func (s *Service) dispatch(dr DispatchRequest) {
	timeout := s.DispatchTimeout
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := s.Processor.Dispatch(ctx, dr)
	if err != nil {
		telemetry.Error("ingestion.dispatch_failed", map[string]any{
			"document_id": dr.DocumentID,
			"error":       err.Error(),
		})
	}
	if s.dispatchDone != nil {
		s.dispatchDone <- err
	}
}

// ApplyCallback records a status reported by the processor and fans the
// change out to the event queue when one is configured.
func (s *Service) ApplyCallback(ctx context.Context, payload CallbackPayload) error {
	status, err := documents.ParseStatus(payload.Status)
	if err != nil {
		metrics.IncIngestionCallbackFailures()
		return err
	}

	if err := s.Docs.SetStatus(ctx, payload.DocumentID, status); err != nil {
		metrics.IncIngestionCallbackFailures()
		return err
	}
	metrics.IncIngestionCallbacks()

	if s.Events != nil {
		event := queue.StatusEvent{
			EventID:    uuid.NewString(),
			DocumentID: payload.DocumentID,
			Status:     string(status),
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
			Version:    1,
		}
		if err := s.Events.Publish(ctx, event); err != nil {
			telemetry.Error("ingestion.event_publish_failed", map[string]any{
				"document_id": payload.DocumentID,
				"error":       err.Error(),
			})
		}
	}
	return nil
}

// StatusFor reports one document's ingestion status, enforcing ownership.
func (s *Service) StatusFor(ctx context.Context, caller auth.Identity, id int64) (StatusResponse, error) {
	status, err := s.Docs.StatusFor(ctx, caller, id)
	if err != nil {
		return StatusResponse{}, err
	}
	return StatusResponse{DocumentID: id, Status: string(status)}, nil
}

// PageByStatus lists the caller's documents in the given status.
func (s *Service) PageByStatus(ctx context.Context, caller auth.Identity, raw string, limit, offset int) (int64, []documents.Document, error) {
	status, err := documents.ParseStatus(raw)
	if err != nil {
		return 0, nil, fmt.Errorf("invalid status %q: %w", raw, documents.ErrInvalidInput)
	}
	return s.Docs.PageByStatus(ctx, caller, status, limit, offset)
}
