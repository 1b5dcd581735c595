// Package documents holds shared types for business documents that post
// movements into the stock ledger.
package documents

import (
	"context"

	"optipos/internal/core/entity"
	"optipos/internal/domain/ledger"
)

// MovementPoster is the ledger surface document services depend on.
// The stock engine implements it; tests substitute doubles.
type MovementPoster interface {
	PostMovement(ctx context.Context, req ledger.MovementRequest) (*entity.StockTransaction, error)
}

// LineStatus is the posting outcome of one document line.
type LineStatus string

const (
	// LinePosted means a new ledger entry was written for the line.
	LinePosted LineStatus = "posted"
	// LineAlreadyPosted means an earlier run already posted the line.
	LineAlreadyPosted LineStatus = "already_posted"
	// LineFailed means the line could not be posted.
	LineFailed LineStatus = "failed"
)

// LineResult reports the outcome of posting one document line.
type LineResult struct {
	ProductID     string     `json:"productId"`
	Status        LineStatus `json:"status"`
	TransactionID string     `json:"transactionId,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// PostingReport aggregates per-line outcomes of posting a document.
type PostingReport struct {
	DocumentID string       `json:"documentId"`
	Lines      []LineResult `json:"lines"`
}

// AllPosted reports whether every line is posted (now or previously).
func (r PostingReport) AllPosted() bool {
	for _, line := range r.Lines {
		if line.Status == LineFailed {
			return false
		}
	}
	return len(r.Lines) > 0
}

// PostedCount returns the number of lines newly posted in this run.
func (r PostingReport) PostedCount() int {
	n := 0
	for _, line := range r.Lines {
		if line.Status == LinePosted {
			n++
		}
	}
	return n
}
