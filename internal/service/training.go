package service

import (
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/ZanzyTHEbar/belief-engine/internal/bayes"
)

// TrainingRecord is one (feature, value) count pair.
type TrainingRecord struct {
	Feature  string      `yaml:"feature" json:"feature"`
	Value    bayes.Value `yaml:"value" json:"value"`
	Positive int         `yaml:"positive" json:"positive"`
	Total    int         `yaml:"total" json:"total"`
}

// TrainingTable is a YAML training file for a predictor.
type TrainingTable struct {
	Name    string           `yaml:"name" json:"name"`
	Prior   float64          `yaml:"prior" json:"prior"`
	Records []TrainingRecord `yaml:"records" json:"records"`
}

//go:embed tables/dating.yaml
var datingTable []byte

// DefaultTrainingTable is the dating compatibility example.
func DefaultTrainingTable() TrainingTable {
	t, err := ParseTrainingTable(datingTable)
	if err != nil {
		panic(fmt.Sprintf("embedded training table: %v", err))
	}
	return t
}

func ParseTrainingTable(data []byte) (TrainingTable, error) {
	var t TrainingTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return TrainingTable{}, fmt.Errorf("failed to parse training table: %w", err)
	}
	if len(t.Records) == 0 {
		return TrainingTable{}, fmt.Errorf("%w: training table has no records", bayes.ErrInvalidInput)
	}
	return t, nil
}

func LoadTrainingTable(r io.Reader) (TrainingTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return TrainingTable{}, err
	}
	return ParseTrainingTable(data)
}
