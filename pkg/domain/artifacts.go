package domain

import "time"

type IngestionArtifact struct {
	// cleaned table before partitioning
	FeatureStorePath string

	TrainPath string
	TestPath  string

	CleanedRows int
	TrainRows   int
	TestRows    int
}

type ValidationArtifact struct {
	ReportPath string

	// train/test tables after dropping columns with too many missing values
	TrainPath string
	TestPath  string

	// columns dropped from train or test, sorted
	DroppedColumns []string
}

type TransformationArtifact struct {
	TransformerPath   string
	TargetEncoderPath string

	// encoded matrices. The target is the last column.
	TrainArrayPath string
	TestArrayPath  string
}

// TrainingArtifact is the record of a fitted model which has passed the quality gates.
type TrainingArtifact struct {
	ModelPath  string
	TrainScore float64
	TestScore  float64
}

// EvaluationArtifact is the verdict of the evaluation gate.
type EvaluationArtifact struct {
	VerdictPath string
	Accepted    bool

	// score of the new model on the held-out test table.
	NewScore float64

	// score of the new model minus score of the deployed model.
	//
	// 0 when no model has been deployed.
	ScoreDelta float64

	// score of the deployed model, if any.
	DeployedScore *float64

	// version of the model compared with, if any.
	DeployedVersion *int
}

type PromotionArtifact struct {
	Version int

	// registry directory of the version.
	VersionDir string

	// copy of the bundle in the run directory.
	ModelPath         string
	TransformerPath   string
	TargetEncoderPath string
}

// RunResult is what a pipeline run has produced.
//
// Artifacts of stages which have not been reached are nil.
type RunResult struct {
	RunId  string
	RunDir string

	// source table the run has trained with
	Source string

	StartedAt  time.Time
	FinishedAt time.Time

	Ingestion      *IngestionArtifact
	Validation     *ValidationArtifact
	Transformation *TransformationArtifact
	Training       *TrainingArtifact
	Evaluation     *EvaluationArtifact
	Promotion      *PromotionArtifact
}
