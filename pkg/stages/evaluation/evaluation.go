// Package evaluation is the gate between training and promotion.
//
// It compares the new model with the latest deployed model on the held-out test table.
// Each model is scored with its own frozen transformer and target encoder.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/opst/backorder/pkg/bundle"
	"github.com/opst/backorder/pkg/classifier"
	"github.com/opst/backorder/pkg/domain"
	xe "github.com/opst/backorder/pkg/errors"
	"github.com/opst/backorder/pkg/preprocess"
	"github.com/opst/backorder/pkg/registry"
	"github.com/opst/backorder/pkg/table"
	"github.com/opst/backorder/pkg/utils/yamler"
	"gopkg.in/yaml.v3"
)

type Config struct {
	TargetColumn string

	// the new model is accepted only when it beats the deployed one by more than this.
	MinImprovement float64

	// held-out test table, as ingested
	TestPath string

	ModelPath         string
	TransformerPath   string
	TargetEncoderPath string

	VerdictPath string
}

func Run(ctx context.Context, conf Config, reg *registry.Registry, logger *log.Logger) (domain.EvaluationArtifact, error) {
	candidate, err := bundle.LoadFiles(conf.ModelPath, conf.TransformerPath, conf.TargetEncoderPath)
	if err != nil {
		return domain.EvaluationArtifact{}, err
	}
	test, err := table.Read(conf.TestPath)
	if err != nil {
		return domain.EvaluationArtifact{}, xe.Wrap(err)
	}

	newScore, err := Score(candidate, test, conf.TargetColumn)
	if err != nil {
		return domain.EvaluationArtifact{}, err
	}
	verdict := domain.EvaluationArtifact{
		VerdictPath: conf.VerdictPath,
		Accepted:    true,
		NewScore:    newScore,
	}

	deployed, version, err := reg.LoadLatest()
	switch {
	case err == nil:
		if err := ctx.Err(); err != nil {
			return domain.EvaluationArtifact{}, err
		}
		oldScore, err := Score(deployed, test, conf.TargetColumn)
		if err != nil {
			return domain.EvaluationArtifact{}, fmt.Errorf("deployed version %d: %w", version, err)
		}
		verdict.DeployedScore = &oldScore
		verdict.DeployedVersion = &version
		verdict.ScoreDelta = newScore - oldScore
		verdict.Accepted = conf.MinImprovement < verdict.ScoreDelta
		logger.Printf(
			"accuracy: new=%.4f deployed(version %d)=%.4f delta=%+.4f", newScore, version, oldScore, verdict.ScoreDelta,
		)
	case errors.Is(err, domain.ErrModelUnavailable):
		logger.Printf("no model has been deployed. accuracy: new=%.4f", newScore)
	default:
		return domain.EvaluationArtifact{}, err
	}

	if err := WriteVerdict(conf.VerdictPath, verdict); err != nil {
		return domain.EvaluationArtifact{}, err
	}
	if !verdict.Accepted {
		return verdict, fmt.Errorf(
			"%w: score delta %+.4f is not greater than %.4f",
			domain.ErrModelNotImproved, verdict.ScoreDelta, conf.MinImprovement,
		)
	}
	return verdict, nil
}

// Score is the accuracy of b on test, compared in label space.
func Score(b bundle.Bundle, test *table.Table, target string) (float64, error) {
	col, ok := test.Column(target)
	if !ok {
		return 0, fmt.Errorf("%w: target %s is not in test", domain.ErrFeatureSchemaMismatch, target)
	}
	truth, err := preprocess.Labels(col)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	pred, err := b.Predict(test)
	if err != nil {
		return 0, err
	}
	acc, err := classifier.Accuracy(truth, pred)
	if err != nil {
		return 0, xe.Wrap(err)
	}
	return acc, nil
}

// WriteVerdict writes a verdict as YAML into a new file.
func WriteVerdict(path string, v domain.EvaluationArtifact) (err error) {
	entries := []yamler.MapEntry{
		yamler.Entry("accepted", yamler.Bool(v.Accepted)),
		yamler.Entry("score_delta", yamler.Float(v.ScoreDelta)),
		yamler.Entry("new_score", yamler.Float(v.NewScore)),
	}
	if v.DeployedScore != nil && v.DeployedVersion != nil {
		entries = append(
			entries,
			yamler.Entry("deployed_score", yamler.Float(*v.DeployedScore)),
			yamler.Entry("deployed_version", yamler.Int(*v.DeployedVersion)),
		)
	} else {
		entries = append(
			entries,
			yamler.Entry("deployed_score", yamler.Null()),
			yamler.Entry("deployed_version", yamler.Null()),
		)
	}

	if err := os.MkdirAll(filepath.Dir(path), os.FileMode(0o755)); err != nil {
		return xe.Wrap(err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, os.FileMode(0o644))
	if err != nil {
		return xe.Wrap(err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = xe.Wrap(cerr)
		}
	}()

	enc := yaml.NewEncoder(f)
	if err := enc.Encode(yamler.Map(entries...)); err != nil {
		return xe.Wrap(err)
	}
	if err := enc.Close(); err != nil {
		return xe.Wrap(err)
	}
	return nil
}

// Verdict is a verdict read from a file written by WriteVerdict.
type Verdict struct {
	Accepted        bool     `yaml:"accepted"`
	ScoreDelta      float64  `yaml:"score_delta"`
	NewScore        float64  `yaml:"new_score"`
	DeployedScore   *float64 `yaml:"deployed_score"`
	DeployedVersion *int     `yaml:"deployed_version"`
}

func ReadVerdict(path string) (Verdict, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Verdict{}, xe.Wrap(err)
	}
	v := Verdict{}
	if err := yaml.Unmarshal(content, &v); err != nil {
		return Verdict{}, xe.WrapWithNote(path, err)
	}
	return v, nil
}
