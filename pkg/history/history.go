// Package history loads and records the conversation history consumed by
// llm nodes. Internal bookkeeping turns (system messages, suspension
// questions marked internal) never reach the model.
package history

import (
	"context"
	"time"

	"github.com/convflow/convflow/pkg/models"
)

// DefaultLimit is the history window handed to a model when the node config
// does not say otherwise.
const DefaultLimit = 10

// Entry is one stored conversation turn. Internal entries are kept for
// audit but filtered out of model prompts.
type Entry struct {
	Role      string    `json:"role"` // user / assistant / system
	Content   string    `json:"content"`
	Internal  bool      `json:"internal,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Loader provides the bounded history window for one session.
type Loader interface {
	// Load returns up to limit non-internal user/assistant turns recorded
	// strictly before the given time, oldest first.
	Load(ctx context.Context, sessionID string, limit int, before time.Time) ([]models.ChatHistoryItem, error)

	// Append records one turn.
	Append(ctx context.Context, sessionID string, entry Entry) error
}

// Filter drops entries a model must not see: internal turns and system
// messages.
func Filter(entries []Entry, limit int, before time.Time) []models.ChatHistoryItem {
	if limit <= 0 {
		limit = DefaultLimit
	}

	kept := make([]Entry, 0, len(entries))

	for _, entry := range entries {
		if entry.Internal || entry.Role == "system" {
			continue
		}

		if !before.IsZero() && !entry.Timestamp.Before(before) {
			continue
		}

		kept = append(kept, entry)
	}

	if len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}

	items := make([]models.ChatHistoryItem, 0, len(kept))
	for _, entry := range kept {
		items = append(items, models.ChatHistoryItem{
			Role:      entry.Role,
			Content:   entry.Content,
			Timestamp: entry.Timestamp.UnixMilli(),
		})
	}

	return items
}
