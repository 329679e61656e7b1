package progress

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pterm/pterm"
)

var stageLabels = map[string]string{
	StageEnhance:         "Understanding question",
	StageGenerate:        "Generating SQL",
	StageValidate:        "Validating SQL",
	StageRefine:          "Refining SQL",
	StageValidateRefined: "Validating refined SQL",
	StageExecute:         "Running query",
	StageCorrect:         "Correcting SQL",
	StageExplain:         "Explaining result",
	StageAnalyze:         "Analyzing request",
	StageTarget:          "Querying target group",
	StageControl:         "Querying control group",
}

// Label returns the human-readable name of stage.
func Label(stage string) string {
	if l, ok := stageLabels[stage]; ok {
		return l
	}
	return stage
}

// Renderer prints finished stages as a docker-compose-like list.
// Started events are suppressed to keep the output clean.
type Renderer struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
	rs      *RenderState
}

// NewRenderer renders to stdout.
func NewRenderer(verbose bool) *Renderer { return NewRendererTo(os.Stdout, verbose) }

// NewRendererTo renders to w.
func NewRendererTo(w io.Writer, verbose bool) *Renderer {
	return &Renderer{out: w, verbose: verbose, rs: NewRenderState()}
}

// Observer returns r.Render as an Observer.
func (r *Renderer) Observer() Observer { return r.Render }

// Render processes a single event.
func (r *Renderer) Render(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var line string
	switch ev.Type {
	case EventStageDone:
		line = pterm.FgGreen.Sprint("  ✓ ") + Label(ev.Stage)
	case EventStageFailed:
		line = pterm.FgRed.Sprint("  ✗ ") + Label(ev.Stage)
		if ev.Message != "" {
			line += pterm.FgGray.Sprint(" (" + ev.Message + ")")
		}
	case EventRetry:
		msg := "retrying after empty result"
		if ev.Reason == "error" {
			msg = "retrying after database error"
		}
		line = pterm.FgYellow.Sprintf("  ↻ %s (attempt %d)", msg, ev.Attempt)
	case EventLog:
		if !r.verbose {
			return
		}
		line = pterm.FgGray.Sprint("    " + ev.Message)
	default:
		return
	}
	_, _ = fmt.Fprintln(r.out, r.rs.FormatLine(line))
}
