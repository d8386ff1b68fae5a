package pipeline

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/resource"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type ConfigMarshall struct {
	ArtifactRoot   string `yaml:"artifact_root"`
	RegistryRoot   string `yaml:"registry_root"`
	PredictionRoot string `yaml:"prediction_root"`
	Source         string `yaml:"source"`
	BaseData       string `yaml:"base_data,omitempty"`
	TargetColumn   string `yaml:"target_column"`

	Ingestion      IngestionMarshall      `yaml:"ingestion"`
	Validation     ValidationMarshall     `yaml:"validation"`
	Transformation TransformationMarshall `yaml:"transformation"`
	Training       TrainingMarshall       `yaml:"training"`
	Evaluation     EvaluationMarshall     `yaml:"evaluation"`
	Journal        JournalMarshall        `yaml:"journal"`
	Server         ServerMarshall         `yaml:"server"`
}

type IngestionMarshall struct {
	DropColumns      []string `yaml:"drop_columns"`
	DropTrailingRows int      `yaml:"drop_trailing_rows"`
	TestFraction     float64  `yaml:"test_fraction"`
	Upsample         bool     `yaml:"upsample"`
	Seed             int64    `yaml:"seed"`
	MaxSourceSize    string   `yaml:"max_source_size"`
}

type ValidationMarshall struct {
	MissingThreshold float64 `yaml:"missing_threshold"`
	Significance     float64 `yaml:"significance"`
}

type TransformationMarshall struct {
	NumericColumns     []string `yaml:"numeric_columns,omitempty"`
	CategoricalColumns []string `yaml:"categorical_columns,omitempty"`
}

type TrainingMarshall struct {
	ExpectedScore        float64        `yaml:"expected_score"`
	OverfittingThreshold float64        `yaml:"overfitting_threshold"`
	Forest               ForestMarshall `yaml:"forest"`
}

type ForestMarshall struct {
	Trees           int   `yaml:"trees"`
	MaxDepth        int   `yaml:"max_depth"`
	MinSamplesSplit int   `yaml:"min_samples_split"`
	MinSamplesLeaf  int   `yaml:"min_samples_leaf"`
	MaxFeatures     int   `yaml:"max_features"`
	Bootstrap       bool  `yaml:"bootstrap"`
	Seed            int64 `yaml:"seed"`
}

type EvaluationMarshall struct {
	MinImprovement float64 `yaml:"min_improvement"`
}

type JournalMarshall struct {
	Database string `yaml:"database,omitempty"`
}

type ServerMarshall struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"loglevel"`
}

// DefaultMarshall is the configuration used for keys absent from YAML.
func DefaultMarshall() ConfigMarshall {
	return ConfigMarshall{
		ArtifactRoot:   "artifacts",
		RegistryRoot:   "saved_models",
		PredictionRoot: "prediction",
		Source:         "data/backorder.parquet",
		TargetColumn:   "went_on_backorder",
		Ingestion: IngestionMarshall{
			DropColumns:      []string{"sku"},
			DropTrailingRows: 1,
			TestFraction:     0.2,
			Upsample:         true,
			Seed:             42,
			MaxSourceSize:    "1Gi",
		},
		Validation: ValidationMarshall{
			MissingThreshold: 0.2,
			Significance:     0.05,
		},
		Training: TrainingMarshall{
			ExpectedScore:        0.7,
			OverfittingThreshold: 0.3,
			Forest: ForestMarshall{
				Trees:           100,
				MaxDepth:        0,
				MinSamplesSplit: 2,
				MinSamplesLeaf:  1,
				MaxFeatures:     0,
				Bootstrap:       true,
				Seed:            42,
			},
		},
		Evaluation: EvaluationMarshall{MinImprovement: 0},
		Server:     ServerMarshall{Port: 8080, LogLevel: "info"},
	}
}

// Default returns the default configuration.
func Default() Config {
	c, err := DefaultMarshall().Seal()
	if err != nil {
		panic(err) // defaults should be valid
	}
	return c
}

// Load reads a configuration file.
func Load(filepath string) (Config, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return Config{}, err
	}
	return Unmarshal(content)
}

// Unmarshal parses YAML. Absent keys take default values.
func Unmarshal(conf []byte) (Config, error) {
	m := DefaultMarshall()
	if err := yaml.Unmarshal(conf, &m); err != nil {
		return Config{}, err
	}
	return m.Seal()
}

// Seal validates m and converts it into Config.
func (m ConfigMarshall) Seal() (Config, error) {
	maxSource, err := resource.ParseQuantity(m.Ingestion.MaxSourceSize)
	if err != nil {
		return Config{}, fmt.Errorf(
			"%w: ingestion.max_source_size can not be parsed: %w", ErrInvalidConfig, err,
		)
	}

	checks := []struct {
		ok   bool
		path string
		want string
	}{
		{m.ArtifactRoot != "", "artifact_root", "required"},
		{m.RegistryRoot != "", "registry_root", "required"},
		{m.PredictionRoot != "", "prediction_root", "required"},
		{m.TargetColumn != "", "target_column", "required"},
		{0 <= m.Ingestion.DropTrailingRows, "ingestion.drop_trailing_rows", "should be >= 0"},
		{0 < m.Ingestion.TestFraction && m.Ingestion.TestFraction < 1, "ingestion.test_fraction", "should be in (0, 1)"},
		{0 < maxSource.Value(), "ingestion.max_source_size", "should be positive"},
		{0 <= m.Validation.MissingThreshold && m.Validation.MissingThreshold <= 1, "validation.missing_threshold", "should be in [0, 1]"},
		{0 < m.Validation.Significance && m.Validation.Significance < 1, "validation.significance", "should be in (0, 1)"},
		{0 <= m.Training.ExpectedScore && m.Training.ExpectedScore <= 1, "training.expected_score", "should be in [0, 1]"},
		{0 <= m.Training.OverfittingThreshold, "training.overfitting_threshold", "should be >= 0"},
		{0 < m.Training.Forest.Trees, "training.forest.trees", "should be positive"},
		{0 <= m.Training.Forest.MaxDepth, "training.forest.max_depth", "should be >= 0"},
		{0 <= m.Evaluation.MinImprovement, "evaluation.min_improvement", "should be >= 0"},
		{0 < m.Server.Port && m.Server.Port < 65536, "server.port", "should be a port number"},
	}
	for _, c := range checks {
		if !c.ok {
			return Config{}, fmt.Errorf("%w: %s %s", ErrInvalidConfig, c.path, c.want)
		}
	}

	f := m.Training.Forest
	return Config{
		ArtifactRoot:   m.ArtifactRoot,
		RegistryRoot:   m.RegistryRoot,
		PredictionRoot: m.PredictionRoot,
		Source:         m.Source,
		BaseData:       m.BaseData,
		TargetColumn:   m.TargetColumn,
		Ingestion: Ingestion{
			DropColumns:      append([]string{}, m.Ingestion.DropColumns...),
			DropTrailingRows: m.Ingestion.DropTrailingRows,
			TestFraction:     m.Ingestion.TestFraction,
			Upsample:         m.Ingestion.Upsample,
			Seed:             m.Ingestion.Seed,
			MaxSourceBytes:   maxSource.Value(),
		},
		Validation: Validation{
			MissingThreshold: m.Validation.MissingThreshold,
			Significance:     m.Validation.Significance,
		},
		Transformation: Transformation{
			NumericColumns:     append([]string{}, m.Transformation.NumericColumns...),
			CategoricalColumns: append([]string{}, m.Transformation.CategoricalColumns...),
		},
		Training: Training{
			ExpectedScore:        m.Training.ExpectedScore,
			OverfittingThreshold: m.Training.OverfittingThreshold,
			Forest: Forest{
				Trees: f.Trees, MaxDepth: f.MaxDepth,
				MinSamplesSplit: f.MinSamplesSplit, MinSamplesLeaf: f.MinSamplesLeaf,
				MaxFeatures: f.MaxFeatures, Bootstrap: f.Bootstrap, Seed: f.Seed,
			},
		},
		Evaluation: Evaluation{MinImprovement: m.Evaluation.MinImprovement},
		Journal:    Journal{Database: m.Journal.Database},
		Server:     Server{Port: m.Server.Port, LogLevel: m.Server.LogLevel},
	}, nil
}
