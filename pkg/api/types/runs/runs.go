package runs

import (
	"time"

	"github.com/opst/backorder/pkg/journal"
)

// TrainRequest is the body of POST /api/train. It may be empty.
type TrainRequest struct {
	// source table overriding the configured one
	Source string `json:"source,omitempty"`
}

type Scores struct {
	Train *float64 `json:"train,omitempty"`
	Test  *float64 `json:"test,omitempty"`
	Delta *float64 `json:"delta,omitempty"`
}

type Summary struct {
	RunId       string    `json:"runId"`
	Source      string    `json:"source"`
	Status      string    `json:"status"`
	FailedStage string    `json:"failedStage,omitempty"`
	Message     string    `json:"message,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Scores      Scores    `json:"scores"`

	// promoted version
	Version *int `json:"version,omitempty"`
}

func ComposeSummary(r journal.RunRecord) Summary {
	return Summary{
		RunId:       r.RunId,
		Source:      r.Source,
		Status:      string(r.Status),
		FailedStage: string(r.FailedStage),
		Message:     r.Message,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Scores: Scores{
			Train: r.TrainScore,
			Test:  r.TestScore,
			Delta: r.ScoreDelta,
		},
		Version: r.Version,
	}
}

func (s *Summary) Equal(o *Summary) bool {
	if s == nil || o == nil {
		return s == nil && o == nil
	}
	return s.RunId == o.RunId &&
		s.Source == o.Source &&
		s.Status == o.Status &&
		s.FailedStage == o.FailedStage &&
		s.Message == o.Message &&
		s.StartedAt.Equal(o.StartedAt) &&
		s.FinishedAt.Equal(o.FinishedAt) &&
		eqPtr(s.Scores.Train, o.Scores.Train) &&
		eqPtr(s.Scores.Test, o.Scores.Test) &&
		eqPtr(s.Scores.Delta, o.Scores.Delta) &&
		eqPtr(s.Version, o.Version)
}

func eqPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
