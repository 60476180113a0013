// Package certificate issues and looks up Mobile Money Certification
// certificates. Issuance is the terminal operation of the pipeline: it
// completes the certification stage and archives the project as certified.
package certificate

import (
	"context"
	"fmt"
	"time"
)

// numberSeqMax bounds the per-day sequence. Numbers carry the issue date, so
// the space resets daily.
const numberSeqMax = 999

// Certificate is the issued credential. One per project, ever; re-issuing
// returns the existing certificate unchanged.
type Certificate struct {
	ProjectID  string    `json:"project_id"`
	Number     string    `json:"number"`
	IssueDate  time.Time `json:"issue_date"`
	ExpiryDate time.Time `json:"expiry_date"`
	IssuedBy   string    `json:"issued_by,omitempty"`
}

// Valid reports whether the certificate covers the given instant.
func (c Certificate) Valid(at time.Time) bool {
	return !at.Before(c.IssueDate) && at.Before(c.ExpiryDate)
}

// Number formats are MMC + yyyymmdd + a three-digit sequence, e.g.
// MMC20260901042.
func formatNumber(issue time.Time, seq int) string {
	return fmt.Sprintf("MMC%s%03d", issue.Format("20060102"), seq)
}

// nextNumber finds the first unused number for the issue date. The store
// enforces uniqueness too; this keeps the happy path collision-free without
// relying on the constraint error.
func nextNumber(ctx context.Context, store Store, issue time.Time) (string, error) {
	for seq := 1; seq <= numberSeqMax; seq++ {
		number := formatNumber(issue, seq)
		taken, err := store.NumberExists(ctx, number)
		if err != nil {
			return "", err
		}
		if !taken {
			return number, nil
		}
	}
	return "", fmt.Errorf("certificate number space for %s exhausted", issue.Format("2006-01-02"))
}
