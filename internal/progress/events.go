// Package progress defines the stage events emitted by the query pipelines and
// the state and rendering helpers the CLI uses to show them as a live list.
package progress

// EventType enumerates known progress event kinds.
type EventType string

const (
	// EventStageStarted marks a pipeline node starting.
	EventStageStarted EventType = "stage_started"
	// EventStageDone marks a pipeline node finishing.
	EventStageDone EventType = "stage_done"
	// EventStageFailed marks a pipeline node failing.
	EventStageFailed EventType = "stage_failed"
	// EventRetry announces a loop back (empty result or correction).
	EventRetry EventType = "retry"
	// EventLog carries a free-form line.
	EventLog EventType = "log"
)

// Stage names shared by the pipelines.
const (
	StageEnhance         = "enhance"
	StageGenerate        = "generate"
	StageValidate        = "validate"
	StageRefine          = "refine"
	StageValidateRefined = "validate_refined"
	StageExecute         = "execute"
	StageCorrect         = "correct"
	StageExplain         = "explain"
	StageAnalyze         = "analyze"
	StageTarget          = "target"
	StageControl         = "control"
)

// Event is a generic container for pipeline UI events.
// Only a subset of fields is set depending on Type.
type Event struct {
	Type EventType `json:"type"`

	// Pipeline is "text2sql" or "segmentation".
	Pipeline string `json:"pipeline,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Message  string `json:"message,omitempty"`

	// Retry
	Attempt int    `json:"attempt,omitempty"` // 1-based
	Reason  string `json:"reason,omitempty"`  // empty|error
}

// Observer receives events. Implementations must not block.
type Observer func(Event)

// Emit sends ev to obs when obs is set.
func Emit(obs Observer, ev Event) {
	if obs != nil {
		obs(ev)
	}
}

// Tee fans events out to every non-nil observer.
func Tee(observers ...Observer) Observer {
	return func(ev Event) {
		for _, o := range observers {
			Emit(o, ev)
		}
	}
}
