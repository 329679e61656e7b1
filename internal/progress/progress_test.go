package progress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateTracksStages(t *testing.T) {
	s := NewState()
	obs := s.Observer()

	Emit(obs, Event{Type: EventStageStarted, Stage: StageGenerate})
	Emit(obs, Event{Type: EventStageDone, Stage: StageGenerate})
	Emit(obs, Event{Type: EventStageStarted, Stage: StageExecute})
	Emit(obs, Event{Type: EventRetry, Reason: "empty", Attempt: 1})
	Emit(obs, Event{Type: EventStageStarted, Stage: StageGenerate})
	Emit(obs, Event{Type: EventStageFailed, Stage: StageGenerate, Message: "boom"})

	assert.Equal(t, []string{StageGenerate, StageExecute}, s.Stages())
	assert.Equal(t, 2, s.RunCount(StageGenerate))
	assert.Equal(t, StatusFailed, s.StatusOf(StageGenerate))
	assert.Equal(t, StatusRunning, s.StatusOf(StageExecute))
	assert.Equal(t, StageStatus(""), s.StatusOf(StageExplain))
	assert.Equal(t, 1, s.RetryCount("empty"))
	assert.True(t, s.HasFailures())
}

func TestEmitNilObserver(t *testing.T) {
	assert.NotPanics(t, func() { Emit(nil, Event{Type: EventLog}) })
}

func TestTee(t *testing.T) {
	a, b := NewState(), NewState()
	Tee(a.Observer(), nil, b.Observer())(Event{Type: EventStageStarted, Stage: StageRefine})
	assert.Equal(t, 1, a.RunCount(StageRefine))
	assert.Equal(t, 1, b.RunCount(StageRefine))
}

func TestRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererTo(&buf, false)

	r.Render(Event{Type: EventStageStarted, Stage: StageGenerate})
	r.Render(Event{Type: EventStageDone, Stage: StageGenerate})
	r.Render(Event{Type: EventRetry, Reason: "error", Attempt: 2})
	r.Render(Event{Type: EventStageFailed, Stage: StageExecute, Message: "syntax error"})
	r.Render(Event{Type: EventLog, Message: "hidden"})

	out := buf.String()
	assert.Contains(t, out, "Generating SQL")
	assert.Contains(t, out, "retrying after database error")
	assert.Contains(t, out, "syntax error")
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 3, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestFormatLinePads(t *testing.T) {
	rs := NewRenderState()
	assert.Equal(t, "long line", rs.FormatLine("long line"))
	assert.Equal(t, "short    ", rs.FormatLine("short"))
	rs.Reset()
	assert.Equal(t, "x", rs.FormatLine("x"))
}
