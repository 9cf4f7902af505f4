package condition

import (
	"encoding/json"
	"fmt"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/protocol"
	"github.com/convflow/convflow/pkg/rules"
)

// LanguageExpr selects expr-language evaluation for a condition instead of
// the built-in comparator set.
const LanguageExpr = "expr"

// Condition is one branch of a condition node. Its ID doubles as the
// sourceHandle of the edge taken when it matches.
type Condition struct {
	ID            string `json:"id"`
	SourceValue   string `json:"sourceValue,omitempty"`
	ConditionType string `json:"conditionType,omitempty"`
	InputValue    string `json:"inputValue,omitempty"`
	Language      string `json:"language,omitempty"`
	Expression    string `json:"expression,omitempty"`
}

// Config holds the ordered condition list.
type Config struct {
	Conditions []Condition `json:"conditions"`
}

// NewConditionNode parses the config and validates each condition up front so
// a broken graph fails at load time, not mid-conversation.
func NewConditionNode(id string, raw json.RawMessage, evaluator *rules.ExprEvaluator) (*ConditionNode, error) {
	var config Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("failed to parse condition node config: %w", err)
		}
	}

	for i, cond := range config.Conditions {
		if cond.ID == "" {
			return nil, fmt.Errorf("condition %d is missing an id", i)
		}
		if cond.Language == LanguageExpr && cond.Expression == "" {
			return nil, fmt.Errorf("condition %s uses expr language but has no expression", cond.ID)
		}
	}

	return &ConditionNode{id: id, config: config, evaluator: evaluator}, nil
}

// Factory creates ConditionNode instances sharing one program cache.
type Factory struct {
	evaluator *rules.ExprEvaluator
}

func NewFactory() protocol.NodeFactory {
	return &Factory{evaluator: rules.NewExprEvaluator()}
}

func (f *Factory) Create(id string, config json.RawMessage) (protocol.Node, error) {
	return NewConditionNode(id, config, f.evaluator)
}

func (f *Factory) ID() string {
	return string(models.NodeTypeCondition)
}

func (f *Factory) Name() string {
	return "Condition"
}

func (f *Factory) Description() string {
	return "Routes the traversal based on an ordered list of comparisons."
}
