package dto

import (
	"time"

	"optipos/internal/domain/documents/transfer"
)

// CreateTransferRequest moves goods between stores.
type CreateTransferRequest struct {
	Number      string                `json:"number" binding:"required"`
	FromStoreID string                `json:"fromStoreId" binding:"required"`
	ToStoreID   string                `json:"toStoreId" binding:"required"`
	Note        string                `json:"note"`
	Lines       []TransferLineRequest `json:"lines" binding:"required"`
}

// TransferLineRequest is one transferred product.
type TransferLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  string `json:"quantity" binding:"required"`
}

// ToTransfer converts the DTO into a domain document.
func (r CreateTransferRequest) ToTransfer(createdBy string) (*transfer.Transfer, error) {
	fromStoreID, err := ParseID("fromStoreId", r.FromStoreID)
	if err != nil {
		return nil, err
	}
	toStoreID, err := ParseID("toStoreId", r.ToStoreID)
	if err != nil {
		return nil, err
	}

	t := transfer.NewTransfer(r.Number, createdBy, fromStoreID, toStoreID)
	t.Note = r.Note

	for _, line := range r.Lines {
		productID, err := ParseID("lines.productId", line.ProductID)
		if err != nil {
			return nil, err
		}
		quantity, err := ParseQuantity("lines.quantity", line.Quantity)
		if err != nil {
			return nil, err
		}
		t.AddLine(productID, quantity)
	}

	return t, nil
}

// TransferResponse is one transfer with lines.
type TransferResponse struct {
	ID          string                 `json:"id"`
	Number      string                 `json:"number"`
	FromStoreID string                 `json:"fromStoreId"`
	ToStoreID   string                 `json:"toStoreId"`
	Note        string                 `json:"note,omitempty"`
	CreatedBy   string                 `json:"createdBy"`
	CreatedAt   time.Time              `json:"createdAt"`
	Lines       []TransferLineResponse `json:"lines,omitempty"`
}

// TransferLineResponse is one transferred product.
type TransferLineResponse struct {
	LineID    string `json:"lineId"`
	LineNo    int    `json:"lineNo"`
	ProductID string `json:"productId"`
	Quantity  string `json:"quantity"`
}

// FromTransfer converts a domain document into its response shape.
func FromTransfer(t *transfer.Transfer) TransferResponse {
	resp := TransferResponse{
		ID:          t.ID.String(),
		Number:      t.Number,
		FromStoreID: t.FromStoreID.String(),
		ToStoreID:   t.ToStoreID.String(),
		Note:        t.Note,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
	}

	for _, line := range t.Lines {
		resp.Lines = append(resp.Lines, TransferLineResponse{
			LineID:    line.LineID.String(),
			LineNo:    line.LineNo,
			ProductID: line.ProductID.String(),
			Quantity:  line.Quantity.String(),
		})
	}

	return resp
}

// FromTransfers converts a slice of documents.
func FromTransfers(transfers []*transfer.Transfer) []TransferResponse {
	out := make([]TransferResponse, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, FromTransfer(t))
	}
	return out
}
