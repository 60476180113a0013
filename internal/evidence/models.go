// Package evidence records which documents are bound to which
// project/indicator pair and each document's own review status. File bytes
// never enter this core; upload and storage belong to an external
// collaborator and only the resulting document id and filename cross the
// boundary.
package evidence

import "time"

// Status is a document's own review verdict, independent of the indicator
// review it supports.
type Status string

const (
	StatusPending       Status = "pending"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusClarification Status = "clarification"
)

// ValidStatus reports whether s is a known document status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusClarification:
		return true
	}
	return false
}

// Document is owned exclusively by its project. Indicator reviews hold weak
// references (ids) into this store, never the documents themselves.
type Document struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	IndicatorID string    `json:"indicator_id"`
	Filename    string    `json:"filename"`
	Version     int       `json:"version"`
	UploadedBy  string    `json:"uploaded_by"`
	UploadedAt  time.Time `json:"uploaded_at"`
	OwnStatus   Status    `json:"own_status"`
	Comment     string    `json:"comment,omitempty"`
}
