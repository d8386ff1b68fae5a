package train

import (
	"io"
	"sync"

	"github.com/cheggaaa/pb/v3"
	"github.com/opst/backorder/pkg/domain"
)

const progressTemplate pb.ProgressBarTemplate = `{{counters . }} {{bar . "[" "=" ">" " " "]"}} {{string . "stage"}} {{etime . }}`

// progress shows stages of a run in a progress bar.
type progress struct {
	mu  sync.Mutex
	bar *pb.ProgressBar
}

func newProgress(w io.Writer) *progress {
	bar := progressTemplate.New(len(domain.Stages()))
	bar.SetWriter(w)
	return &progress{bar: bar}
}

func (p *progress) StageStarted(_ string, stage domain.Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.bar.IsStarted() {
		p.bar.Start()
	}
	p.bar.Set("stage", stage.String())
}

func (p *progress) StageFinished(_ string, stage domain.Stage, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.bar.Set("stage", stage.String()+" failed")
		return
	}
	p.bar.Increment()
}

// Done stops the bar.
func (p *progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar.IsStarted() {
		p.bar.Finish()
	}
}
