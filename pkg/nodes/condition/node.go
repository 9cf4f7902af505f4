// Package condition provides the branching node. A condition node renders
// both sides of each comparison through the template engine, evaluates them
// in order and routes to the edge whose sourceHandle matches the first
// condition that holds. When none hold the traversal falls through to the
// "else" handle.
package condition

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/rules"
	"github.com/convflow/convflow/pkg/template"
)

// ElseBranch is the fallback handle taken when no condition matches.
const ElseBranch = "else"

// ConditionNode evaluates its condition list against the execution context.
type ConditionNode struct {
	id        string
	config    Config
	evaluator *rules.ExprEvaluator
}

func (n *ConditionNode) ID() string {
	return n.id
}

func (n *ConditionNode) Type() string {
	return string(models.NodeTypeCondition)
}

func (n *ConditionNode) Execute(_ context.Context, ec *models.ExecutionContext) (models.Outcome, error) {
	for _, cond := range n.config.Conditions {
		matched, err := n.evaluate(cond, ec)
		if err != nil {
			return models.Fail{Err: err}, fmt.Errorf("failed to evaluate condition %s: %w", cond.ID, err)
		}
		if matched {
			ec.SetOutput(n.id, cond.ID)

			return models.Continue{Output: cond.ID, Branch: cond.ID}, nil
		}
	}

	ec.SetOutput(n.id, ElseBranch)

	return models.Continue{Output: ElseBranch, Branch: ElseBranch}, nil
}

func (n *ConditionNode) evaluate(cond Condition, ec *models.ExecutionContext) (bool, error) {
	if strings.EqualFold(cond.Language, LanguageExpr) {
		env := map[string]any{
			"query":        ec.Query,
			"intent":       ec.Intent,
			"confidence":   ec.IntentConfidence,
			"lastOutput":   ec.LastOutput(),
			"variables":    ec.Variables,
			"entities":     ec.Entities,
			"customerInfo": ec.CustomerInfo,
			"outputs":      ec.NodeOutputs,
		}

		return n.evaluator.Evaluate(cond.Expression, env)
	}

	source := template.Render(cond.SourceValue, ec)
	input := template.Render(cond.InputValue, ec)

	return compare(cond.ConditionType, source, input)
}

func compare(conditionType, source, input string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(conditionType)) {
	case "equals", "eq", "":
		return source == input, nil
	case "notequals", "not_equals", "ne":
		return source != input, nil
	case "contains":
		return strings.Contains(source, input), nil
	case "notcontains", "not_contains":
		return !strings.Contains(source, input), nil
	case "startswith", "starts_with":
		return strings.HasPrefix(source, input), nil
	case "endswith", "ends_with":
		return strings.HasSuffix(source, input), nil
	case "isempty", "is_empty":
		return strings.TrimSpace(source) == "", nil
	case "isnotempty", "is_not_empty":
		return strings.TrimSpace(source) != "", nil
	case "gt", "lt", "gte", "lte":
		return compareNumeric(conditionType, source, input)
	default:
		return false, fmt.Errorf("unknown condition type: %s", conditionType)
	}
}

func compareNumeric(op, source, input string) (bool, error) {
	left, err := strconv.ParseFloat(strings.TrimSpace(source), 64)
	if err != nil {
		return false, fmt.Errorf("left operand %q is not numeric: %w", source, err)
	}
	right, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil {
		return false, fmt.Errorf("right operand %q is not numeric: %w", input, err)
	}

	switch strings.ToLower(op) {
	case "gt":
		return left > right, nil
	case "lt":
		return left < right, nil
	case "gte":
		return left >= right, nil
	case "lte":
		return left <= right, nil
	default:
		return false, fmt.Errorf("unknown numeric condition type: %s", op)
	}
}
