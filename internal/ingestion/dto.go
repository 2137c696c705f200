package ingestion

// CallbackPayload is the webhook body the processor posts back when a
// document's ingestion status changes.
type CallbackPayload struct {
	Status     string `json:"status" binding:"required"`
	DocumentID int64  `json:"document_id" binding:"required"`
}

// TriggerResponse acknowledges that a dispatch was issued.
type TriggerResponse struct {
	Message    string `json:"message"`
	DocumentID int64  `json:"documentId"`
	Status     string `json:"status"`
}

// StatusResponse reports a single document's ingestion status.
type StatusResponse struct {
	DocumentID int64  `json:"documentId"`
	Status     string `json:"status"`
}
