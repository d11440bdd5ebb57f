// Package state persists each project's execution history as an ordered
// stack of snapshots, one sqlite row per project holding the serialized
// stack. The store owns the canonical copy; callers always receive deep
// copies, and every read-modify-write is serialized per project.
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lumenlab/axon/pkg/events"
	"github.com/lumenlab/axon/pkg/logging"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store is the durable project-state store.
type Store struct {
	db      *sql.DB
	emitter events.Emitter
	logger  *logging.Logger
	clock   func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source. Test hook.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// NewStore opens (or creates) the state database at dbPath.
func NewStore(dbPath string, emitter events.Emitter, logger *logging.Logger, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	store := &Store{
		db:      db,
		emitter: emitter,
		logger:  logger,
		clock:   time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(store)
	}

	if err := store.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create agent_state table: %w", err)
	}
	return store, nil
}

func (s *Store) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS agent_state (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project TEXT NOT NULL UNIQUE,
		state_stack_json TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// projectLock returns the mutex guarding one project's read-modify-write
// cycles. Different projects never contend.
func (s *Store) projectLock(project string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	if mu, ok := s.locks[project]; ok {
		return mu
	}
	mu := &sync.Mutex{}
	s.locks[project] = mu
	return mu
}

// loadStack reads a project's stack. exists is false when the project has no
// row.
func (s *Store) loadStack(project string) ([]Snapshot, bool, error) {
	var blob string
	err := s.db.QueryRow(
		`SELECT state_stack_json FROM agent_state WHERE project = ?`, project,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var stack []Snapshot
	if err := json.Unmarshal([]byte(blob), &stack); err != nil {
		return nil, false, fmt.Errorf("corrupt state stack for project %s: %w", project, err)
	}
	return stack, true, nil
}

// saveStack writes a project's stack, inserting the row on first write.
func (s *Store) saveStack(project string, stack []Snapshot, exists bool) error {
	blob, err := json.Marshal(stack)
	if err != nil {
		return err
	}
	if exists {
		_, err = s.db.Exec(
			`UPDATE agent_state SET state_stack_json = ? WHERE project = ?`, string(blob), project)
	} else {
		_, err = s.db.Exec(
			`INSERT INTO agent_state (project, state_stack_json) VALUES (?, ?)`, project, string(blob))
	}
	return err
}

// broadcast publishes a copy of the full current stack, never a delta.
func (s *Store) broadcast(project string, stack []Snapshot) {
	s.emitter.Emit(events.TopicAgentState, copyStack(stack))
	s.logger.Debug("broadcast state stack",
		zap.String("project", project), zap.Int("depth", len(stack)))
}

func copyStack(stack []Snapshot) []Snapshot {
	out := make([]Snapshot, len(stack))
	copy(out, stack)
	return out
}

// mutate runs fn against the project's current stack under the project lock
// and persists the result. fn receives the loaded stack (nil when the
// project does not exist) and returns the stack to store.
func (s *Store) mutate(project string, broadcast bool, fn func(stack []Snapshot, exists bool) []Snapshot) error {
	mu := s.projectLock(project)
	mu.Lock()
	defer mu.Unlock()

	stack, exists, err := s.loadStack(project)
	if err != nil {
		return err
	}
	next := fn(stack, exists)
	if err := s.saveStack(project, next, exists); err != nil {
		return err
	}
	if broadcast {
		s.broadcast(project, next)
	}
	return nil
}

// CreateState initializes a project with a one-element stack.
func (s *Store) CreateState(project string) error {
	return s.mutate(project, true, func(stack []Snapshot, exists bool) []Snapshot {
		if exists {
			return stack
		}
		return []Snapshot{initialSnapshot(s.clock())}
	})
}

// PushState appends a snapshot, creating the project if needed.
func (s *Store) PushState(project string, snapshot Snapshot) error {
	return s.mutate(project, true, func(stack []Snapshot, _ bool) []Snapshot {
		return append(stack, snapshot)
	})
}

// ReplaceTop overwrites the top snapshot, creating the project with a
// one-element stack if needed.
func (s *Store) ReplaceTop(project string, snapshot Snapshot) error {
	return s.mutate(project, true, func(stack []Snapshot, exists bool) []Snapshot {
		if !exists || len(stack) == 0 {
			return []Snapshot{snapshot}
		}
		stack[len(stack)-1] = snapshot
		return stack
	})
}

// GetStack returns a copy of the project's stack, or ok=false when the
// project does not exist.
func (s *Store) GetStack(project string) ([]Snapshot, bool, error) {
	stack, exists, err := s.loadStack(project)
	if err != nil || !exists {
		return nil, false, err
	}
	return copyStack(stack), true, nil
}

// GetTop returns a copy of the project's top snapshot, or ok=false when the
// project does not exist.
func (s *Store) GetTop(project string) (Snapshot, bool, error) {
	stack, exists, err := s.loadStack(project)
	if err != nil || !exists || len(stack) == 0 {
		return Snapshot{}, false, err
	}
	return stack[len(stack)-1], true, nil
}

// SetActive flips the top snapshot's active flag, auto-vivifying the project.
func (s *Store) SetActive(project string, active bool) error {
	return s.mutate(project, true, func(stack []Snapshot, exists bool) []Snapshot {
		if !exists || len(stack) == 0 {
			stack = []Snapshot{NewSnapshot(s.clock())}
		}
		stack[len(stack)-1].AgentIsActive = active
		return stack
	})
}

// SetCompleted flips the top snapshot's completed flag and sets the fixed
// completion monologue, auto-vivifying the project.
func (s *Store) SetCompleted(project string, completed bool) error {
	return s.mutate(project, true, func(stack []Snapshot, exists bool) []Snapshot {
		if !exists || len(stack) == 0 {
			stack = []Snapshot{NewSnapshot(s.clock())}
		}
		top := &stack[len(stack)-1]
		top.InternalMonologue = completedMonologue
		top.Completed = completed
		return stack
	})
}

// IsActive reports the top snapshot's active flag; ok is false when the
// project does not exist.
func (s *Store) IsActive(project string) (bool, bool, error) {
	top, ok, err := s.GetTop(project)
	if err != nil || !ok {
		return false, false, err
	}
	return top.AgentIsActive, true, nil
}

// IsCompleted reports the top snapshot's completed flag; ok is false when the
// project does not exist.
func (s *Store) IsCompleted(project string) (bool, bool, error) {
	top, ok, err := s.GetTop(project)
	if err != nil || !ok {
		return false, false, err
	}
	return top.Completed, true, nil
}

// AddTokenUsage increments the top snapshot's token counter, auto-vivifying
// the project with the delta as its initial count. Does not broadcast.
func (s *Store) AddTokenUsage(project string, delta int) error {
	return s.mutate(project, false, func(stack []Snapshot, exists bool) []Snapshot {
		if !exists || len(stack) == 0 {
			snap := NewSnapshot(s.clock())
			snap.TokenUsage = delta
			return []Snapshot{snap}
		}
		stack[len(stack)-1].TokenUsage += delta
		return stack
	})
}

// GetLatestTokenUsage returns the top snapshot's token counter, or 0 when
// the project does not exist.
func (s *Store) GetLatestTokenUsage(project string) (int, error) {
	stack, exists, err := s.loadStack(project)
	if err != nil {
		return 0, err
	}
	if !exists || len(stack) == 0 {
		return 0, nil
	}
	return stack[len(stack)-1].TokenUsage, nil
}

// DeleteProject removes all persisted state for the project. Deleting a
// project that does not exist is a no-op.
func (s *Store) DeleteProject(project string) error {
	mu := s.projectLock(project)
	mu.Lock()
	defer mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM agent_state WHERE project = ?`, project)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
