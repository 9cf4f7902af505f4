// Package rules evaluates boolean expressions for condition nodes using
// the expr language, with a compiled-program cache.
package rules

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator evaluates a boolean expression against a context map.
type Evaluator interface {
	Evaluate(expression string, env map[string]any) (bool, error)
}

// ExprEvaluator is an expr-lang backed Evaluator. Compiled programs are
// cached by expression text and shared across goroutines.
type ExprEvaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewExprEvaluator creates an evaluator with an empty cache.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{cache: make(map[string]*vm.Program)}
}

// Evaluate compiles (or reuses) the expression and runs it against env. The
// expression must produce a boolean.
func (e *ExprEvaluator) Evaluate(expression string, env map[string]any) (bool, error) {
	e.mu.RLock()
	program, ok := e.cache[expression]
	e.mu.RUnlock()

	if !ok {
		compiled, err := expr.Compile(expression, expr.AllowUndefinedVariables())
		if err != nil {
			return false, fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}

		e.mu.Lock()
		e.cache[expression] = compiled
		e.mu.Unlock()

		program = compiled
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate expression %q: %w", expression, err)
	}

	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to a boolean (got %T)", expression, result)
	}

	return b, nil
}
