package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optipos/internal/core/apperror"
	"optipos/internal/core/id"
	"optipos/internal/core/types"
)

func TestValidateMovementSign(t *testing.T) {
	tests := []struct {
		name         string
		movementType MovementType
		quantity     string
		wantErr      bool
	}{
		{"receipt positive", MovementReceipt, "5", false},
		{"receipt negative", MovementReceipt, "-5", true},
		{"issue negative", MovementIssue, "-3", false},
		{"issue positive", MovementIssue, "3", true},
		{"transfer in positive", MovementTransferIn, "2", false},
		{"transfer in negative", MovementTransferIn, "-2", true},
		{"transfer out negative", MovementTransferOut, "-2", false},
		{"transfer out positive", MovementTransferOut, "2", true},
		{"adjust positive", MovementAdjust, "1", false},
		{"adjust negative", MovementAdjust, "-1", false},
		{"count positive", MovementCount, "10", false},
		{"count negative", MovementCount, "-10", false},
		{"zero quantity rejected", MovementAdjust, "0", true},
		{"fractional receipt", MovementReceipt, "0.25", false},
		{"unknown type", MovementType("TELEPORT"), "1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMovementSign(tt.movementType, types.MustQuantity(tt.quantity))
			if tt.wantErr {
				require.Error(t, err)

				var appErr *apperror.AppError
				require.True(t, errors.As(err, &appErr))
				assert.Equal(t, apperror.CodeInvalidMovement, appErr.Code)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMovementTypeValid(t *testing.T) {
	for _, mt := range []MovementType{
		MovementReceipt, MovementIssue, MovementTransferIn,
		MovementTransferOut, MovementAdjust, MovementCount,
	} {
		assert.True(t, mt.Valid(), string(mt))
	}
	assert.False(t, MovementType("").Valid())
	assert.False(t, MovementType("receipt").Valid(), "types are case sensitive")
}

func TestNewStockTransaction(t *testing.T) {
	productID := id.New()
	storeID := id.New()

	txn := NewStockTransaction(productID, storeID, types.MustQuantity("7"), MovementReceipt, "tester")

	require.False(t, id.IsNil(txn.ID))
	assert.Equal(t, productID, txn.ProductID)
	assert.Equal(t, storeID, txn.StoreID)
	assert.Equal(t, MovementReceipt, txn.MovementType)
	assert.Equal(t, "tester", txn.CreatedBy)
	assert.False(t, txn.CreatedAt.IsZero())
	assert.False(t, txn.HasReference())

	refType := ReferencePurchaseOrder
	refID := id.New()
	txn.ReferenceType = &refType
	txn.ReferenceID = &refID
	assert.True(t, txn.HasReference())
}

func TestBalanceSettingsValidate(t *testing.T) {
	valid := BalanceSettings{
		StockAlert:     types.MustQuantity("5"),
		DiscountMethod: DiscountPercentage,
		DiscountRate:   types.MustMoney("10"),
		IsActive:       true,
	}
	assert.NoError(t, valid.Validate())

	t.Run("negative stock alert", func(t *testing.T) {
		s := valid
		s.StockAlert = types.MustQuantity("-1")
		assert.Error(t, s.Validate())
	})

	t.Run("percentage over 100", func(t *testing.T) {
		s := valid
		s.DiscountRate = types.MustMoney("101")
		assert.Error(t, s.Validate())
	})

	t.Run("flat discount unbounded above", func(t *testing.T) {
		s := valid
		s.DiscountMethod = DiscountFlat
		s.DiscountRate = types.MustMoney("250")
		assert.NoError(t, s.Validate())
	})

	t.Run("negative flat discount", func(t *testing.T) {
		s := valid
		s.DiscountMethod = DiscountFlat
		s.DiscountRate = types.MustMoney("-1")
		assert.Error(t, s.Validate())
	})

	t.Run("unknown method", func(t *testing.T) {
		s := valid
		s.DiscountMethod = "bogus"
		assert.Error(t, s.Validate())
	})
}
