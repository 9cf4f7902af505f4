package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExprEvaluator_Evaluate(t *testing.T) {
	evaluator := NewExprEvaluator()

	env := map[string]any{
		"intent":     "refund",
		"confidence": 0.92,
		"variables":  map[string]any{"plan": "premium"},
	}

	result, err := evaluator.Evaluate(`intent == "refund" && confidence > 0.8`, env)
	require.NoError(t, err)
	assert.True(t, result)

	result, err = evaluator.Evaluate(`variables.plan == "free"`, env)
	require.NoError(t, err)
	assert.False(t, result)
}

func TestExprEvaluator_UndefinedVariablesAllowed(t *testing.T) {
	evaluator := NewExprEvaluator()

	result, err := evaluator.Evaluate(`missing == nil`, map[string]any{})
	require.NoError(t, err)
	assert.True(t, result)
}

func TestExprEvaluator_CompileError(t *testing.T) {
	evaluator := NewExprEvaluator()

	_, err := evaluator.Evaluate(`intent ==`, map[string]any{})
	assert.Error(t, err)
}

func TestExprEvaluator_NonBooleanResult(t *testing.T) {
	evaluator := NewExprEvaluator()

	_, err := evaluator.Evaluate(`1 + 1`, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boolean")
}

func TestExprEvaluator_CachesPrograms(t *testing.T) {
	evaluator := NewExprEvaluator()

	_, err := evaluator.Evaluate(`x > 1`, map[string]any{"x": 2})
	require.NoError(t, err)

	evaluator.mu.RLock()
	_, cached := evaluator.cache[`x > 1`]
	evaluator.mu.RUnlock()

	assert.True(t, cached)
}
