package cmd

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/chalk-ai/batch-loader-benchmark/benchmark"
)

// progressObserver renders one progress bar per runner phase.
type progressObserver struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func newProgressObserver(out io.Writer) *progressObserver {
	return &progressObserver{out: out}
}

func (p *progressObserver) PhaseStarted(phase benchmark.Phase, total int) {
	if total == 0 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(fmt.Sprintf("%-8s", phase)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(0),
	)
}

func (p *progressObserver) Progress(_ benchmark.Phase, done, _ int) {
	if p.bar != nil {
		_ = p.bar.Set(done)
	}
}

func (p *progressObserver) PhaseFinished(benchmark.Phase) {
	if p.bar != nil {
		_ = p.bar.Finish()
		fmt.Fprintln(p.out)
		p.bar = nil
	}
}
