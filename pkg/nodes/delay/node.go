// Package delay provides the timed-wait node.
package delay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/protocol"
)

// MaxDelay caps a single delay node so a misconfigured graph cannot park
// the executor for hours.
const MaxDelay = 5 * time.Minute

// Config holds the delay node options.
type Config struct {
	// DurationMs is the wait in milliseconds.
	DurationMs int64 `json:"durationMs"`
}

// DelayNode pauses the traversal for a configured duration.
type DelayNode struct {
	id     string
	config Config
}

func NewDelayNode(id string, raw json.RawMessage) (*DelayNode, error) {
	var config Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("failed to parse delay node config: %w", err)
		}
	}
	if config.DurationMs < 0 {
		return nil, fmt.Errorf("delay duration must not be negative: %d", config.DurationMs)
	}

	return &DelayNode{id: id, config: config}, nil
}

func (n *DelayNode) ID() string {
	return n.id
}

func (n *DelayNode) Type() string {
	return string(models.NodeTypeDelay)
}

func (n *DelayNode) Execute(ctx context.Context, ec *models.ExecutionContext) (models.Outcome, error) {
	wait := time.Duration(n.config.DurationMs) * time.Millisecond
	if wait > MaxDelay {
		wait = MaxDelay
	}

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return models.Fail{Err: ctx.Err()}, ctx.Err()
		case <-timer.C:
		}
	}

	ec.SetOutput(n.id, ec.LastOutput())

	return models.Continue{Output: ec.LastOutput()}, nil
}

// Factory creates DelayNode instances.
type Factory struct{}

func NewFactory() protocol.NodeFactory {
	return &Factory{}
}

func (f *Factory) Create(id string, config json.RawMessage) (protocol.Node, error) {
	return NewDelayNode(id, config)
}

func (f *Factory) ID() string {
	return string(models.NodeTypeDelay)
}

func (f *Factory) Name() string {
	return "Delay"
}

func (f *Factory) Description() string {
	return "Waits for a configured duration before continuing."
}
