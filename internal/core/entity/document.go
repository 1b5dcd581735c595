package entity

import (
	"time"

	"optipos/internal/core/id"
)

// Document is the embedded base of business documents.
type Document struct {
	ID id.ID `db:"id" json:"id"`

	// Number is the human-facing document number.
	Number string `db:"number" json:"number"`

	CreatedBy string    `db:"created_by" json:"createdBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewDocument creates a document base with a generated ID and timestamps.
func NewDocument(number, createdBy string) Document {
	now := time.Now().UTC()
	return Document{
		ID:        id.New(),
		Number:    number,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
