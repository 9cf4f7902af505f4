package file

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/convflow/convflow/pkg/models"
)

const executionLogKind = "execution_logs"

// SaveExecutionLog stores one per-turn execution record.
func (p *Persistence) SaveExecutionLog(_ context.Context, log *models.ExecutionLog) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	if log.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate execution log ID: %w", err)
		}

		log.ID = id.String()
	}

	return p.writeRecord(executionLogKind, log.ID, log)
}

// ExecutionLogs returns recent runs of a workflow, newest first.
func (p *Persistence) ExecutionLogs(_ context.Context, workflowID string, limit int) ([]*models.ExecutionLog, error) {
	return p.filterLogs(func(log *models.ExecutionLog) bool {
		return log.WorkflowID == workflowID
	}, limit)
}

// ExecutionLogsBySession returns recent runs of a session, newest first.
func (p *Persistence) ExecutionLogsBySession(_ context.Context, sessionID string, limit int) ([]*models.ExecutionLog, error) {
	return p.filterLogs(func(log *models.ExecutionLog) bool {
		return log.SessionID == sessionID
	}, limit)
}

func (p *Persistence) filterLogs(match func(*models.ExecutionLog) bool, limit int) ([]*models.ExecutionLog, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids, err := p.listRecordIDs(executionLogKind)
	if err != nil {
		return nil, err
	}

	logs := make([]*models.ExecutionLog, 0, len(ids))

	for _, id := range ids {
		var log models.ExecutionLog
		if err := p.readRecord(executionLogKind, id, &log); err != nil {
			return nil, fmt.Errorf("failed to read execution log %s: %w", id, err)
		}

		if match(&log) {
			logs = append(logs, &log)
		}
	}

	sort.Slice(logs, func(i, j int) bool {
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})

	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}

	return logs, nil
}
