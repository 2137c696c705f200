package documents

import "time"

// Document is a metadata row plus one backing object-store blob.
type Document struct {
	ID         int64
	Name       string
	Path       string
	Status     Status
	UploadedBy int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// FileLink is the read projection handed to clients: a time-limited URL for
// the backing blob plus the display name.
type FileLink struct {
	URL  string
	Name string
}
