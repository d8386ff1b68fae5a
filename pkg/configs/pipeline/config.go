// Package pipeline holds configuration of the training pipeline, registry and
// prediction service.
//
// To get a Config, write YAML and Unmarshal it, or use Default().
package pipeline

// Config is a sealed configuration. It is passed by value.
type Config struct {
	// root directory of run directories
	ArtifactRoot string

	// root directory of registry versions
	RegistryRoot string

	// directory where batch prediction results are written
	PredictionRoot string

	// raw table to train with
	Source string

	// reference table for data drift detection. The source of each run is used when empty.
	BaseData string

	TargetColumn string

	Ingestion      Ingestion
	Validation     Validation
	Transformation Transformation
	Training       Training
	Evaluation     Evaluation
	Journal        Journal
	Server         Server
}

type Ingestion struct {
	// identifier columns dropped before training and prediction
	DropColumns []string

	// rows dropped from the tail of the source
	DropTrailingRows int

	TestFraction float64

	// upsample minority classes of the train split
	Upsample bool

	Seed int64

	// sources larger than this are rejected
	MaxSourceBytes int64
}

type Validation struct {
	// columns with missing fraction above this are dropped
	MissingThreshold float64

	// distributions are the same when p-value is above this
	Significance float64
}

type Transformation struct {
	// inferred from the train table when both are empty
	NumericColumns     []string
	CategoricalColumns []string
}

type Training struct {
	ExpectedScore        float64
	OverfittingThreshold float64
	Forest               Forest
}

type Forest struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Bootstrap       bool
	Seed            int64
}

type Evaluation struct {
	// new model is accepted only when it beats the deployed one by more than this
	MinImprovement float64
}

type Journal struct {
	// PostgreSQL connection string. Run records are written in run directories when empty.
	Database string
}

type Server struct {
	Port     int
	LogLevel string
}
