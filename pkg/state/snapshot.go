package state

import "time"

const (
	timestampFormat     = "2006-01-02 15:04:05"
	startingMonologue   = "I'm starting the work..."
	completedMonologue  = "Agent has completed the task."
	initialSnapshotStep = 1
)

// BrowserSession is the browser portion of a snapshot.
type BrowserSession struct {
	URL        *string `json:"url"`
	Screenshot *string `json:"screenshot"`
}

// TerminalSession is the terminal portion of a snapshot.
type TerminalSession struct {
	Command *string `json:"command"`
	Output  *string `json:"output"`
	Title   *string `json:"title"`
}

// Snapshot is one step of a project's execution history. The top snapshot of
// a project's stack is the current step and the only one ever mutated; all
// earlier snapshots are immutable once superseded.
type Snapshot struct {
	InternalMonologue string          `json:"internal_monologue"`
	BrowserSession    BrowserSession  `json:"browser_session"`
	TerminalSession   TerminalSession `json:"terminal_session"`
	Step              int             `json:"step"`
	Message           *string         `json:"message"`
	Completed         bool            `json:"completed"`
	AgentIsActive     bool            `json:"agent_is_active"`
	TokenUsage        int             `json:"token_usage"`
	Timestamp         string          `json:"timestamp"`
}

// NewSnapshot returns a blank snapshot stamped with the current time.
func NewSnapshot(now time.Time) Snapshot {
	return Snapshot{
		AgentIsActive: true,
		Timestamp:     now.Format(timestampFormat),
	}
}

// initialSnapshot is the one-element stack content for a freshly created
// project.
func initialSnapshot(now time.Time) Snapshot {
	s := NewSnapshot(now)
	s.Step = initialSnapshotStep
	s.InternalMonologue = startingMonologue
	return s
}
