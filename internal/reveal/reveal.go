// Package reveal exposes a target string one character at a time to drive a
// "live typing" presentation.
//
// A Scheduler is a small state machine (Idle, Revealing, Complete) that owns
// the identity of its running sequence. Ticks are delivered as TickMsg
// values through the bubbletea runtime; a tick from a superseded or
// canceled sequence carries an old ID and is ignored.
package reveal

import (
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
)

// DefaultInterval is the delay between two revealed characters.
const DefaultInterval = 20 * time.Millisecond

// State is the scheduler's position in its lifecycle.
type State int

const (
	Idle State = iota
	Revealing
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Revealing:
		return "revealing"
	case Complete:
		return "complete"
	}
	return "unknown"
}

// TickMsg asks the scheduler owning sequence ID to reveal one more
// character.
type TickMsg struct {
	ID uint64
}

// Scheduler reveals a target string rune by rune. The revealed text is
// always a byte prefix of the target; an invalid UTF-8 byte counts as one
// character.
type Scheduler struct {
	interval time.Duration
	target   string
	pos      int // byte offset
	shown    int // characters up to pos
	total    int
	state    State
	id       uint64
}

// New returns an idle scheduler. A non-positive interval uses
// DefaultInterval.
func New(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{interval: interval}
}

// SetInterval changes the tick cadence for ticks scheduled from now on.
func (s *Scheduler) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// Interval returns the tick cadence.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start supersedes any running sequence and begins revealing text from its
// first character. Empty text leaves the scheduler Idle and returns nil.
func (s *Scheduler) Start(text string) tea.Cmd {
	s.Cancel()
	if text == "" {
		return nil
	}
	s.target = text
	s.total = utf8.RuneCountInString(text)
	s.state = Revealing
	return s.schedule()
}

// Cancel returns the scheduler to Idle with nothing revealed. Any tick
// already scheduled becomes stale.
func (s *Scheduler) Cancel() {
	s.id++
	s.target = ""
	s.pos = 0
	s.shown = 0
	s.total = 0
	s.state = Idle
}

// Tick appends exactly one character to the revealed text. It reports
// whether more ticks are due.
func (s *Scheduler) Tick() bool {
	if s.state != Revealing {
		return false
	}
	_, size := utf8.DecodeRuneInString(s.target[s.pos:])
	s.pos += size
	s.shown++
	if s.pos >= len(s.target) {
		s.pos = len(s.target)
		s.shown = s.total
		s.state = Complete
		return false
	}
	return true
}

// Update applies a scheduled tick and returns the command for the next one.
// Ticks for other sequences are dropped.
func (s *Scheduler) Update(msg TickMsg) tea.Cmd {
	if msg.ID != s.id || s.state != Revealing {
		return nil
	}
	if s.Tick() {
		return s.schedule()
	}
	return nil
}

// Finish reveals the whole target at once.
func (s *Scheduler) Finish() {
	if s.state != Revealing {
		return
	}
	s.pos = len(s.target)
	s.shown = s.total
	s.state = Complete
}

func (s *Scheduler) schedule() tea.Cmd {
	id := s.id
	return tea.Tick(s.interval, func(time.Time) tea.Msg {
		return TickMsg{ID: id}
	})
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return s.state
}

// Revealed returns the prefix of the target shown so far.
func (s *Scheduler) Revealed() string {
	return s.target[:s.pos]
}

// Progress returns how many characters are revealed out of the total.
func (s *Scheduler) Progress() (revealed, total int) {
	return s.shown, s.total
}

// ID identifies the current sequence.
func (s *Scheduler) ID() uint64 {
	return s.id
}
