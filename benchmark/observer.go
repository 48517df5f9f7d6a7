package benchmark

import "log/slog"

// Phase names a stage of a run.
type Phase string

const (
	PhaseOpen    Phase = "open"
	PhaseWarmup  Phase = "warmup"
	PhaseMeasure Phase = "measure"
)

// Observer receives coarse progress of a run. Callbacks happen on the
// goroutine calling Run.
type Observer interface {
	PhaseStarted(phase Phase, total int)
	Progress(phase Phase, done, total int)
	PhaseFinished(phase Phase)
}

type NopObserver struct{}

func (NopObserver) PhaseStarted(Phase, int) {}
func (NopObserver) Progress(Phase, int, int) {}
func (NopObserver) PhaseFinished(Phase) {}

// LogObserver reports progress through a structured logger.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) PhaseStarted(phase Phase, total int) {
	o.Logger.Info("phase started", "phase", phase, "iterations", total)
}

func (o LogObserver) Progress(phase Phase, done, total int) {
	o.Logger.Info("progress", "phase", phase, "done", done, "total", total)
}

func (o LogObserver) PhaseFinished(phase Phase) {
	o.Logger.Info("phase finished", "phase", phase)
}
