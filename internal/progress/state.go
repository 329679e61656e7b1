package progress

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// StageStatus is the display status of one stage.
type StageStatus string

const (
	StatusRunning StageStatus = "running"
	StatusDone    StageStatus = "done"
	StatusFailed  StageStatus = "failed"
)

// State tracks stage progress for one request.
type State struct {
	// Order preserves the sequence in which stages first started
	Order []string
	// Status maps stage to its latest status
	Status map[string]StageStatus
	// Failed maps stage to its failure reason
	Failed map[string]string
	// Runs counts how many times each stage started
	Runs map[string]int
	// Retries counts loop backs by reason
	Retries map[string]int
	mu      sync.Mutex
}

// NewState creates a State with initialized maps.
func NewState() *State {
	return &State{
		Status:  make(map[string]StageStatus),
		Failed:  make(map[string]string),
		Runs:    make(map[string]int),
		Retries: make(map[string]int),
	}
}

// Apply folds ev into the state.
func (s *State) Apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Type {
	case EventStageStarted:
		if _, seen := s.Status[ev.Stage]; !seen {
			s.Order = append(s.Order, ev.Stage)
		}
		s.Status[ev.Stage] = StatusRunning
		s.Runs[ev.Stage]++
	case EventStageDone:
		s.Status[ev.Stage] = StatusDone
	case EventStageFailed:
		s.Status[ev.Stage] = StatusFailed
		s.Failed[ev.Stage] = ev.Message
	case EventRetry:
		s.Retries[ev.Reason]++
	}
}

// Observer returns an Observer that applies events to s.
func (s *State) Observer() Observer { return s.Apply }

// StatusOf returns the latest status of stage, or "" when it never ran.
func (s *State) StatusOf(stage string) StageStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status[stage]
}

// RunCount returns how many times stage started.
func (s *State) RunCount(stage string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Runs[stage]
}

// RetryCount returns the number of retries with the given reason.
func (s *State) RetryCount(reason string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Retries[reason]
}

// HasFailures reports whether any stage failed.
func (s *State) HasFailures() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Failed) > 0
}

// Stages returns the stage order.
func (s *State) Stages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Order))
	copy(out, s.Order)
	return out
}

// RenderState holds the UI rendering state for the live stage line.
type RenderState struct {
	// FrameIdx is the current animation frame index for spinners
	FrameIdx int
	// MaxLineLen tracks the maximum line length to prevent flickering
	MaxLineLen int
	mu         sync.Mutex
}

// NewRenderState creates a new RenderState with default values.
func NewRenderState() *RenderState { return &RenderState{} }

// IncrementFrame advances the animation frame index.
func (rs *RenderState) IncrementFrame() int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.FrameIdx++
	return rs.FrameIdx
}

// FormatLine pads line to the longest line seen so far.
func (rs *RenderState) FormatLine(line string) string {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	lineLen := utf8.RuneCountInString(line)
	if lineLen > rs.MaxLineLen {
		rs.MaxLineLen = lineLen
	}
	if pad := rs.MaxLineLen - lineLen; pad > 0 {
		return line + strings.Repeat(" ", pad)
	}
	return line
}

// Reset clears the rendering state.
func (rs *RenderState) Reset() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.FrameIdx = 0
	rs.MaxLineLen = 0
}
