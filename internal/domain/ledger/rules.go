package ledger

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"optipos/internal/core/apperror"
	"optipos/internal/core/entity"
)

// DefaultLowStockExpr is the low-stock predicate used when no custom rule is
// configured: an active balance at or below its alert threshold.
const DefaultLowStockExpr = "isActive && quantity <= stockAlert"

// LowStockRule is a compiled predicate evaluated against a balance row.
// Expressions see three variables: quantity, stockAlert (both as double)
// and isActive (bool).
type LowStockRule struct {
	expr    string
	program cel.Program
}

// CompileLowStockRule compiles a CEL expression into a low-stock predicate.
// The expression must evaluate to bool.
func CompileLowStockRule(expr string) (*LowStockRule, error) {
	env, err := cel.NewEnv(
		cel.Variable("quantity", cel.DoubleType),
		cel.Variable("stockAlert", cel.DoubleType),
		cel.Variable("isActive", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("create rule environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, apperror.NewValidation(fmt.Sprintf("invalid low-stock rule: %v", issues.Err())).
			WithDetail("expression", expr)
	}

	if ast.OutputType() != cel.BoolType {
		return nil, apperror.NewValidation("low-stock rule must evaluate to bool").
			WithDetail("expression", expr)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build rule program: %w", err)
	}

	return &LowStockRule{expr: expr, program: program}, nil
}

// MustCompileLowStockRule panics on compile failure. For built-in expressions.
func MustCompileLowStockRule(expr string) *LowStockRule {
	rule, err := CompileLowStockRule(expr)
	if err != nil {
		panic(err)
	}
	return rule
}

// Expr returns the source expression of the rule.
func (r *LowStockRule) Expr() string {
	return r.expr
}

// Matches evaluates the rule against a balance.
func (r *LowStockRule) Matches(balance *entity.InventoryBalance) (bool, error) {
	out, _, err := r.program.Eval(map[string]any{
		"quantity":   balance.Quantity.InexactFloat64(),
		"stockAlert": balance.StockAlert.InexactFloat64(),
		"isActive":   balance.IsActive,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate low-stock rule: %w", err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("low-stock rule returned %T, want bool", out.Value())
	}
	return matched, nil
}
