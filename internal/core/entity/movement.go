// Package entity provides core domain entities.
package entity

import (
	"fmt"
	"time"

	"optipos/internal/core/apperror"
	"optipos/internal/core/id"
	"optipos/internal/core/types"
)

// MovementType classifies why a quantity changed.
type MovementType string

const (
	// MovementReceipt - goods received from a supplier (increases stock)
	MovementReceipt MovementType = "RECEIPT"
	// MovementIssue - goods shipped or sold (decreases stock)
	MovementIssue MovementType = "ISSUE"
	// MovementTransferIn - goods arriving from another store (increases stock)
	MovementTransferIn MovementType = "TRANSFER_IN"
	// MovementTransferOut - goods leaving for another store (decreases stock)
	MovementTransferOut MovementType = "TRANSFER_OUT"
	// MovementAdjust - manual correction, either direction
	MovementAdjust MovementType = "ADJUST"
	// MovementCount - stocktake correction, either direction
	MovementCount MovementType = "COUNT"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementReceipt, MovementIssue, MovementTransferIn, MovementTransferOut,
		MovementAdjust, MovementCount:
		return true
	}
	return false
}

// SignRule constrains the sign of a movement quantity.
type SignRule int

const (
	// SignEither permits positive and negative deltas.
	SignEither SignRule = iota
	// SignPositive requires a positive delta.
	SignPositive
	// SignNegative requires a negative delta.
	SignNegative
)

// signRules is the closed movement-type-to-sign rule table.
var signRules = map[MovementType]SignRule{
	MovementReceipt:     SignPositive,
	MovementIssue:       SignNegative,
	MovementTransferIn:  SignPositive,
	MovementTransferOut: SignNegative,
	MovementAdjust:      SignEither,
	MovementCount:       SignEither,
}

// SignRuleFor returns the sign rule for a movement type.
func SignRuleFor(t MovementType) SignRule {
	return signRules[t]
}

// ValidateMovementSign checks quantity against the sign rule for the type.
// Zero quantities are always rejected: a movement must change the balance.
func ValidateMovementSign(t MovementType, quantity types.Quantity) error {
	if !t.Valid() {
		return apperror.NewInvalidMovement(fmt.Sprintf("unknown movement type %q", t)).
			WithDetail("movement_type", string(t))
	}

	if quantity.IsZero() {
		return apperror.NewInvalidMovement("quantity must be non-zero").
			WithDetail("movement_type", string(t))
	}

	switch SignRuleFor(t) {
	case SignPositive:
		if !quantity.IsPositive() {
			return apperror.NewInvalidMovement(fmt.Sprintf("%s requires a positive quantity", t)).
				WithDetail("movement_type", string(t)).
				WithDetail("quantity", quantity.String())
		}
	case SignNegative:
		if !quantity.IsNegative() {
			return apperror.NewInvalidMovement(fmt.Sprintf("%s requires a negative quantity", t)).
				WithDetail("movement_type", string(t)).
				WithDetail("quantity", quantity.String())
		}
	}

	return nil
}

// Well-known reference types linking ledger entries to business documents.
const (
	ReferencePurchaseOrder = "PO"
	ReferenceShipment      = "SHIP"
	ReferenceTransfer      = "XFER"
	ReferenceAdjustment    = "ADJ"
	ReferenceStocktake     = "COUNT"
)

// StockTransaction is one entry in the immutable stock ledger.
// Entries are append-only: they are never updated or deleted, so the ledger
// can always be replayed to reconstruct any balance.
type StockTransaction struct {
	// ID is the primary key (UUIDv7, time-ordered)
	ID id.ID `db:"id" json:"id"`

	// Dimensions
	ProductID id.ID `db:"product_id" json:"productId"`
	StoreID   id.ID `db:"store_id" json:"storeId"`

	// Quantity is the signed delta: positive increases stock, negative decreases.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// UnitCost is the cost basis snapshot at time of movement (optional).
	UnitCost *types.Money `db:"unit_cost" json:"unitCost,omitempty"`

	MovementType MovementType `db:"movement_type" json:"movementType"`

	// ReferenceType and ReferenceID point back to the originating business
	// document. When both are set, the pair (together with product and store)
	// is unique across the ledger - the idempotency guard against posting
	// the same document line twice.
	ReferenceType *string `db:"reference_type" json:"referenceType,omitempty"`
	ReferenceID   *id.ID  `db:"reference_id" json:"referenceId,omitempty"`

	// CreatedBy identifies the actor that caused the movement.
	CreatedBy string `db:"created_by" json:"createdBy"`

	// BalanceAfter is the balance quantity immediately after this entry was
	// applied. Cached for fast history display; derivable by replay.
	BalanceAfter types.Quantity `db:"balance_after" json:"balanceAfter"`

	Note string `db:"note" json:"note,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockTransaction creates a ledger entry with a generated ID and timestamp.
// BalanceAfter is filled in by the engine once the new balance is known.
func NewStockTransaction(productID, storeID id.ID, quantity types.Quantity, movementType MovementType, createdBy string) *StockTransaction {
	return &StockTransaction{
		ID:           id.New(),
		ProductID:    productID,
		StoreID:      storeID,
		Quantity:     quantity,
		MovementType: movementType,
		CreatedBy:    createdBy,
		CreatedAt:    time.Now().UTC(),
	}
}

// HasReference reports whether the entry carries a document reference pair.
func (t *StockTransaction) HasReference() bool {
	return t.ReferenceType != nil && t.ReferenceID != nil
}

// DiscountMethod selects how a per-balance discount rate is interpreted.
type DiscountMethod string

const (
	DiscountPercentage DiscountMethod = "percentage"
	DiscountFlat       DiscountMethod = "flat"
)

// InventoryBalance is the materialized current quantity per (product, store).
// It is a cache of the ledger: quantity always equals the running sum of all
// StockTransaction entries for the pair and is written only by the stock
// transaction engine, under a row lock.
type InventoryBalance struct {
	ProductID id.ID `db:"product_id" json:"productId"`
	StoreID   id.ID `db:"store_id" json:"storeId"`

	// Quantity is non-negative: the engine rejects movements that would
	// drive it below zero.
	Quantity types.Quantity `db:"quantity" json:"quantity"`

	// StockAlert is the low-stock signaling threshold.
	StockAlert types.Quantity `db:"stock_alert" json:"stockAlert"`

	DiscountMethod DiscountMethod `db:"discount_method" json:"discountMethod"`
	DiscountRate   types.Money    `db:"discount_rate" json:"discountRate"`

	IsActive bool `db:"is_active" json:"isActive"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// BalanceSettings are the caller-mutable fields of an InventoryBalance.
// Quantity is deliberately absent: only the engine writes it.
type BalanceSettings struct {
	StockAlert     types.Quantity `json:"stockAlert"`
	DiscountMethod DiscountMethod `json:"discountMethod"`
	DiscountRate   types.Money    `json:"discountRate"`
	IsActive       bool           `json:"isActive"`
}

// Validate checks settings invariants.
func (s BalanceSettings) Validate() error {
	if s.StockAlert.IsNegative() {
		return apperror.NewValidation("stock_alert must be non-negative").
			WithDetail("field", "stockAlert")
	}

	switch s.DiscountMethod {
	case DiscountPercentage:
		if s.DiscountRate.IsNegative() || s.DiscountRate.GreaterThan(types.MustMoney("100")) {
			return apperror.NewValidation("percentage discount_rate must be within [0,100]").
				WithDetail("field", "discountRate")
		}
	case DiscountFlat:
		if s.DiscountRate.IsNegative() {
			return apperror.NewValidation("flat discount_rate must be non-negative").
				WithDetail("field", "discountRate")
		}
	default:
		return apperror.NewValidation("discount_method must be percentage or flat").
			WithDetail("field", "discountMethod")
	}

	return nil
}
