package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/convflow/convflow/pkg/models"
	"github.com/convflow/convflow/pkg/persistence"
)

const pausedStateKind = "paused_states"

// SavePausedState upserts a suspension record, enforcing at most one
// pending record per session.
func (p *Persistence) SavePausedState(_ context.Context, state *models.WorkflowPausedState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now().UTC()

	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}

	state.UpdatedAt = now

	if state.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate paused state ID: %w", err)
		}

		state.ID = id.String()
	}

	if state.Status == models.PausedStatusWaitingUserInput {
		existing, err := p.pendingBySessionLocked(state.SessionID, time.Time{})
		if err != nil {
			return err
		}

		if existing != nil && existing.ID != state.ID {
			return &persistence.PausedStateError{
				Op:        "Save",
				SessionID: state.SessionID,
				Err:       persistence.ErrPausedStateConflict,
			}
		}
	}

	return p.writeRecord(pausedStateKind, state.ID, state)
}

// FindPendingBySession returns the session's pending record, excluding rows
// past their expiry that the sweep has not transitioned yet.
func (p *Persistence) FindPendingBySession(_ context.Context, sessionID string) (*models.WorkflowPausedState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	state, err := p.pendingBySessionLocked(sessionID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if state == nil {
		return nil, &persistence.PausedStateError{
			Op:        "FindPendingBySession",
			SessionID: sessionID,
			Err:       persistence.ErrPausedStateNotFound,
		}
	}

	return state, nil
}

// pendingBySessionLocked scans for the newest pending record of a session.
// A zero now skips the expiry filter.
func (p *Persistence) pendingBySessionLocked(sessionID string, now time.Time) (*models.WorkflowPausedState, error) {
	states, err := p.allPausedStatesLocked()
	if err != nil {
		return nil, err
	}

	var newest *models.WorkflowPausedState

	for _, state := range states {
		if state.SessionID != sessionID || state.Status != models.PausedStatusWaitingUserInput {
			continue
		}

		if !now.IsZero() && state.Expired(now) {
			continue
		}

		if newest == nil || state.CreatedAt.After(newest.CreatedAt) {
			newest = state
		}
	}

	return newest, nil
}

// PausedStateByID returns a suspension record by ID.
func (p *Persistence) PausedStateByID(_ context.Context, id string) (*models.WorkflowPausedState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var state models.WorkflowPausedState

	err := p.readRecord(pausedStateKind, id, &state)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &persistence.PausedStateError{
				Op:      "GetByID",
				StateID: id,
				Err:     persistence.ErrPausedStateNotFound,
			}
		}

		return nil, err
	}

	return &state, nil
}

// UpdatePausedStateStatus transitions one record's status.
func (p *Persistence) UpdatePausedStateStatus(_ context.Context, id string, status models.PausedStateStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var state models.WorkflowPausedState

	err := p.readRecord(pausedStateKind, id, &state)
	if err != nil {
		if os.IsNotExist(err) {
			return &persistence.PausedStateError{
				Op:      "UpdateStatus",
				StateID: id,
				Err:     persistence.ErrPausedStateNotFound,
			}
		}

		return err
	}

	state.Status = status
	state.UpdatedAt = time.Now().UTC()

	return p.writeRecord(pausedStateKind, id, &state)
}

// CancelPendingBySession transitions all pending records of a session to
// CANCELLED.
func (p *Persistence) CancelPendingBySession(_ context.Context, sessionID string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	states, err := p.allPausedStatesLocked()
	if err != nil {
		return 0, err
	}

	cancelled := 0

	for _, state := range states {
		if state.SessionID != sessionID || state.Status != models.PausedStatusWaitingUserInput {
			continue
		}

		state.Status = models.PausedStatusCancelled
		state.UpdatedAt = time.Now().UTC()

		if err := p.writeRecord(pausedStateKind, state.ID, state); err != nil {
			return cancelled, err
		}

		cancelled++
	}

	return cancelled, nil
}

// MarkExpired transitions overdue pending records to EXPIRED. Idempotent.
func (p *Persistence) MarkExpired(_ context.Context, now time.Time) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	states, err := p.allPausedStatesLocked()
	if err != nil {
		return 0, err
	}

	expired := 0

	for _, state := range states {
		if state.Status != models.PausedStatusWaitingUserInput || !state.Expired(now) {
			continue
		}

		state.Status = models.PausedStatusExpired
		state.UpdatedAt = time.Now().UTC()

		if err := p.writeRecord(pausedStateKind, state.ID, state); err != nil {
			return expired, err
		}

		expired++
	}

	return expired, nil
}

// DeleteTerminalBefore purges terminal records older than the cutoff.
func (p *Persistence) DeleteTerminalBefore(_ context.Context, cutoff time.Time) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	states, err := p.allPausedStatesLocked()
	if err != nil {
		return 0, err
	}

	purged := 0

	for _, state := range states {
		if state.Status == models.PausedStatusWaitingUserInput || !state.UpdatedAt.Before(cutoff) {
			continue
		}

		if err := os.Remove(filepath.Join(p.root, pausedStateKind, state.ID+".json")); err != nil {
			return purged, fmt.Errorf("failed to remove paused state %s: %w", state.ID, err)
		}

		purged++
	}

	return purged, nil
}

func (p *Persistence) allPausedStatesLocked() ([]*models.WorkflowPausedState, error) {
	ids, err := p.listRecordIDs(pausedStateKind)
	if err != nil {
		return nil, err
	}

	states := make([]*models.WorkflowPausedState, 0, len(ids))

	for _, id := range ids {
		var state models.WorkflowPausedState
		if err := p.readRecord(pausedStateKind, id, &state); err != nil {
			return nil, fmt.Errorf("failed to read paused state %s: %w", id, err)
		}

		states = append(states, &state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].CreatedAt.Before(states[j].CreatedAt)
	})

	return states, nil
}
