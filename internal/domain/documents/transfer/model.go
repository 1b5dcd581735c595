// Package transfer provides the stock Transfer document: an atomic move of
// goods between two stores, posted as paired TRANSFER_OUT and TRANSFER_IN
// ledger entries.
package transfer

import (
	"optipos/internal/core/apperror"
	"optipos/internal/core/entity"
	"optipos/internal/core/id"
	"optipos/internal/core/types"
)

// Transfer moves goods from one store to another. Both sides post in a
// single transaction, so the ledger never shows goods leaving one store
// without arriving at the other.
type Transfer struct {
	entity.Document

	FromStoreID id.ID  `db:"from_store_id" json:"fromStoreId"`
	ToStoreID   id.ID  `db:"to_store_id" json:"toStoreId"`
	Note        string `db:"note" json:"note,omitempty"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one transferred product.
type Line struct {
	LineID    id.ID          `db:"line_id" json:"lineId"`
	LineNo    int            `db:"line_no" json:"lineNo"`
	ProductID id.ID          `db:"product_id" json:"productId"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
}

// NewTransfer creates a transfer document.
func NewTransfer(number, createdBy string, fromStoreID, toStoreID id.ID) *Transfer {
	return &Transfer{
		Document:    entity.NewDocument(number, createdBy),
		FromStoreID: fromStoreID,
		ToStoreID:   toStoreID,
		Lines:       make([]Line, 0),
	}
}

// AddLine appends a transferred product.
func (t *Transfer) AddLine(productID id.ID, quantity types.Quantity) {
	t.Lines = append(t.Lines, Line{
		LineID:    id.New(),
		LineNo:    len(t.Lines) + 1,
		ProductID: productID,
		Quantity:  quantity,
	})
}

// Validate checks document invariants.
func (t *Transfer) Validate() error {
	if id.IsNil(t.FromStoreID) {
		return apperror.NewValidation("source store is required").
			WithDetail("field", "fromStoreId")
	}
	if id.IsNil(t.ToStoreID) {
		return apperror.NewValidation("destination store is required").
			WithDetail("field", "toStoreId")
	}
	if t.FromStoreID == t.ToStoreID {
		return apperror.NewValidation("source and destination stores must differ").
			WithDetail("store_id", t.FromStoreID)
	}

	seen := make(map[id.ID]int, len(t.Lines))
	for _, line := range t.Lines {
		if id.IsNil(line.ProductID) {
			return apperror.NewValidation("line product is required").
				WithDetail("line_no", line.LineNo)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("line quantity must be positive").
				WithDetail("line_no", line.LineNo).
				WithDetail("quantity", line.Quantity.String())
		}
		// a repeated product would post a second OUT with the same ledger
		// reference and abort the whole transfer
		if first, dup := seen[line.ProductID]; dup {
			return apperror.NewValidation("product appears on more than one line").
				WithDetail("product_id", line.ProductID).
				WithDetail("line_no", line.LineNo).
				WithDetail("first_line_no", first)
		}
		seen[line.ProductID] = line.LineNo
	}

	return nil
}
