package documents

import "time"

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Status     string    `json:"status"`
	UploadedBy int64     `json:"uploadedBy"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// PageResponse wraps a counted page of documents.
type PageResponse struct {
	TotalRecords int64              `json:"totalRecords"`
	Entries      []DocumentResponse `json:"entries"`
}

// FileLinkResponse carries a signed URL for reading a document's content.
type FileLinkResponse struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		ID:         doc.ID,
		Name:       doc.Name,
		Path:       doc.Path,
		Status:     doc.Status.String(),
		UploadedBy: doc.UploadedBy,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

func toPageResponse(total int64, docs []Document) PageResponse {
	entries := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, toResponse(doc))
	}
	return PageResponse{TotalRecords: total, Entries: entries}
}
