package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optipos/internal/core/entity"
	"optipos/internal/core/types"
)

func TestCompileLowStockRule(t *testing.T) {
	t.Run("default expression compiles", func(t *testing.T) {
		rule, err := CompileLowStockRule(DefaultLowStockExpr)
		require.NoError(t, err)
		assert.Equal(t, DefaultLowStockExpr, rule.Expr())
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := CompileLowStockRule("quantity <<< stockAlert")
		require.Error(t, err)
	})

	t.Run("unknown variable", func(t *testing.T) {
		_, err := CompileLowStockRule("price < 10.0")
		require.Error(t, err)
	})

	t.Run("non-bool result", func(t *testing.T) {
		_, err := CompileLowStockRule("quantity + stockAlert")
		require.Error(t, err)
	})
}

func TestLowStockRuleMatches(t *testing.T) {
	balance := func(qty, alert string, active bool) *entity.InventoryBalance {
		return &entity.InventoryBalance{
			Quantity:   types.MustQuantity(qty),
			StockAlert: types.MustQuantity(alert),
			IsActive:   active,
		}
	}

	rule := MustCompileLowStockRule(DefaultLowStockExpr)

	tests := []struct {
		name    string
		balance *entity.InventoryBalance
		want    bool
	}{
		{"below alert", balance("2", "5", true), true},
		{"at alert", balance("5", "5", true), true},
		{"above alert", balance("6", "5", true), false},
		{"inactive", balance("0", "5", false), false},
		{"zero alert zero stock", balance("0", "0", true), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rule.Matches(tt.balance)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("custom rule", func(t *testing.T) {
		custom := MustCompileLowStockRule("isActive && quantity < stockAlert * 2.0")
		got, err := custom.Matches(balance("9", "5", true))
		require.NoError(t, err)
		assert.True(t, got)
	})
}
