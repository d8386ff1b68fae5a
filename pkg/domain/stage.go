package domain

import "fmt"

type Stage string

const (
	Ingestion      Stage = "ingestion"
	Validation     Stage = "validation"
	Transformation Stage = "transformation"
	Training       Stage = "training"
	Evaluation     Stage = "evaluation"
	Promotion      Stage = "promotion"
)

// Stages in the order the pipeline runs them.
func Stages() []Stage {
	return []Stage{
		Ingestion, Validation, Transformation, Training, Evaluation, Promotion,
	}
}

func AsStage(s string) (Stage, error) {
	for _, st := range Stages() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage: %s", s)
}

func (s Stage) String() string {
	return string(s)
}

type RunStatus string

const (
	// every stage has completed and a new version is promoted.
	Succeeded RunStatus = "succeeded"

	// the evaluation gate rejected the model.
	Rejected RunStatus = "rejected"

	// a stage has failed.
	Failed RunStatus = "failed"
)

// StatusOf returns the run status for the error returned by a pipeline run.
func StatusOf(err error) RunStatus {
	switch {
	case err == nil:
		return Succeeded
	case IsRejection(err):
		return Rejected
	default:
		return Failed
	}
}

func AsRunStatus(s string) (RunStatus, error) {
	switch st := RunStatus(s); st {
	case Succeeded, Rejected, Failed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown run status: %s", s)
	}
}
