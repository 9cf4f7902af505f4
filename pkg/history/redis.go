package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/convflow/convflow/pkg/models"
)

const (
	keyPrefix = "convflow:history:"

	// maxStoredEntries bounds the per-session list; old turns are trimmed.
	maxStoredEntries = 200

	// DefaultSessionTTL expires idle session histories.
	DefaultSessionTTL = 72 * time.Hour
)

// RedisLoader stores conversation history in a Redis list per session,
// newest entry last, JSON encoded.
type RedisLoader struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// NewRedisLoader creates a Redis-backed history loader. A non-positive ttl
// falls back to the default.
func NewRedisLoader(logger *slog.Logger, client *redis.Client, ttl time.Duration) *RedisLoader {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	return &RedisLoader{
		client: client,
		logger: logger.With("module", "history"),
		ttl:    ttl,
	}
}

func sessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

// Load returns the filtered window for a session.
func (l *RedisLoader) Load(ctx context.Context, sessionID string, limit int, before time.Time) ([]models.ChatHistoryItem, error) {
	raw, err := l.client.LRange(ctx, sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history for session %s: %w", sessionID, err)
	}

	entries := make([]Entry, 0, len(raw))

	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			l.logger.WarnContext(ctx, "Skipping malformed history entry",
				"session_id", sessionID, "error", err)

			continue
		}

		entries = append(entries, entry)
	}

	return Filter(entries, limit, before), nil
}

// Append records one turn and refreshes the session TTL.
func (l *RedisLoader) Append(ctx context.Context, sessionID string, entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	key := sessionKey(sessionID)

	pipe := l.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, -maxStoredEntries, -1)
	pipe.Expire(ctx, key, l.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append history for session %s: %w", sessionID, err)
	}

	return nil
}

var _ Loader = (*RedisLoader)(nil)
