// Package tracker maintains the lifecycle state of submitted tests. State is
// held in memory for fast reads and persisted to the object store so a
// restarted server can pick up where it left off.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dialcheck/dialcheck/internal/models"
	"github.com/dialcheck/dialcheck/internal/storage"
)

// ErrNotFound is returned when a test ID is unknown.
var ErrNotFound = errors.New("tracker: test not found")

// ErrTerminal is returned when a status change is requested for a test that
// has already completed or failed.
var ErrTerminal = errors.New("tracker: test already in a terminal state")

// Tracker records test executions and their status transitions.
type Tracker struct {
	store storage.ObjectStore

	mu         sync.RWMutex
	executions map[string]*models.TestExecution
	loaded     bool
}

// New creates a Tracker backed by the given store.
func New(store storage.ObjectStore) *Tracker {
	return &Tracker{
		store:      store,
		executions: make(map[string]*models.TestExecution),
	}
}

// Create registers a new test execution in the starting state and persists
// both the submitted config and the initial state.
func (t *Tracker) Create(ctx context.Context, tc models.TestCase) (*models.TestExecution, error) {
	now := time.Now().UTC()
	exec := &models.TestExecution{
		TestID:    uuid.NewString(),
		TestCase:  tc,
		Status:    models.StatusStarting,
		CreatedAt: now,
		UpdatedAt: now,
		Details: []models.ExecutionDetail{
			{Timestamp: now, Status: models.StatusStarting, Message: "test created"},
		},
	}

	configData, err := json.MarshalIndent(tc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling test config: %w", err)
	}

	if err := t.store.Put(ctx, storage.TestConfigKey(exec.TestID), configData, "application/json"); err != nil {
		return nil, fmt.Errorf("persisting test config: %w", err)
	}

	if err := t.persist(ctx, exec); err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.executions[exec.TestID] = exec
	t.mu.Unlock()

	return clone(exec), nil
}

// Get returns the current state of a test.
func (t *Tracker) Get(ctx context.Context, testID string) (*models.TestExecution, error) {
	if err := t.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	exec, ok := t.executions[testID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(exec), nil
}

// List returns all tracked tests, newest first.
func (t *Tracker) List(ctx context.Context) ([]*models.TestExecution, error) {
	if err := t.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*models.TestExecution, 0, len(t.executions))
	for _, exec := range t.executions {
		out = append(out, clone(exec))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SetStatus transitions a test to a new status and appends an audit trail
// entry. Transitions out of a terminal state are rejected.
func (t *Tracker) SetStatus(ctx context.Context, testID string, status models.ExecutionStatus, message string) error {
	return t.update(ctx, testID, func(exec *models.TestExecution) error {
		if exec.Status.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrTerminal, testID, exec.Status)
		}
		exec.Status = status
		exec.Details = append(exec.Details, models.ExecutionDetail{
			Timestamp: time.Now().UTC(),
			Status:    status,
			Message:   message,
		})
		if status == models.StatusFailed && message != "" {
			exec.Error = message
		}
		return nil
	})
}

// SetCallID associates the phone call handling this test.
func (t *Tracker) SetCallID(ctx context.Context, testID, callID string) error {
	return t.update(ctx, testID, func(exec *models.TestExecution) error {
		exec.CallID = callID
		return nil
	})
}

// SetReportID associates the evaluation report produced for this test.
func (t *Tracker) SetReportID(ctx context.Context, testID, reportID string) error {
	return t.update(ctx, testID, func(exec *models.TestExecution) error {
		exec.ReportID = reportID
		return nil
	})
}

// Delete removes a test and everything stored under it, including call audio.
func (t *Tracker) Delete(ctx context.Context, testID string) error {
	if err := t.ensureLoaded(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	_, ok := t.executions[testID]
	delete(t.executions, testID)
	t.mu.Unlock()

	if !ok {
		return ErrNotFound
	}

	keys, err := t.store.List(ctx, storage.TestPrefix(testID))
	if err != nil {
		return fmt.Errorf("listing test objects: %w", err)
	}
	for _, key := range keys {
		if err := t.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("deleting %s: %w", key, err)
		}
	}
	return nil
}

func (t *Tracker) update(ctx context.Context, testID string, fn func(*models.TestExecution) error) error {
	if err := t.ensureLoaded(ctx); err != nil {
		return err
	}

	t.mu.Lock()
	exec, ok := t.executions[testID]
	if !ok {
		t.mu.Unlock()
		return ErrNotFound
	}
	if err := fn(exec); err != nil {
		t.mu.Unlock()
		return err
	}
	exec.UpdatedAt = time.Now().UTC()
	snapshot := clone(exec)
	t.mu.Unlock()

	return t.persist(ctx, snapshot)
}

func (t *Tracker) persist(ctx context.Context, exec *models.TestExecution) error {
	data, err := json.MarshalIndent(exec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling test state: %w", err)
	}
	if err := t.store.Put(ctx, storage.TestStateKey(exec.TestID), data, "application/json"); err != nil {
		return fmt.Errorf("persisting test state: %w", err)
	}
	return nil
}

// ensureLoaded hydrates the in-memory map from the store on first use.
func (t *Tracker) ensureLoaded(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.loaded {
		return nil
	}

	keys, err := t.store.List(ctx, "tests/")
	if err != nil {
		return fmt.Errorf("listing tests: %w", err)
	}

	for _, key := range keys {
		if !strings.HasSuffix(key, "/state.json") {
			continue
		}
		data, err := t.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return fmt.Errorf("loading %s: %w", key, err)
		}
		var exec models.TestExecution
		if err := json.Unmarshal(data, &exec); err != nil {
			// Skip unreadable state rather than wedging the server.
			continue
		}
		if _, exists := t.executions[exec.TestID]; !exists {
			t.executions[exec.TestID] = &exec
		}
	}

	t.loaded = true
	return nil
}

func clone(exec *models.TestExecution) *models.TestExecution {
	out := *exec
	out.Details = append([]models.ExecutionDetail(nil), exec.Details...)
	return &out
}
