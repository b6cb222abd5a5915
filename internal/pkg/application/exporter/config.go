package exporter

import (
	"fmt"
	"io"

	"github.com/diwise/bubble-client/pkg/bubble/objects"
	yaml "gopkg.in/yaml.v2"
)

type ConstraintConfig struct {
	Key   string `yaml:"key"`
	Type  string `yaml:"type"`
	Value any    `yaml:"value"`
}

type JoinConfig struct {
	Field string `yaml:"field"`
	Type  string `yaml:"type"`
	// Scan resolves references by scanning all objects of Type instead of
	// reading them one by one
	Scan bool `yaml:"scan"`
}

type ExportConfig struct {
	Type        string             `yaml:"type"`
	Constraints []ConstraintConfig `yaml:"constraints"`
	SortField   string             `yaml:"sortField"`
	Descending  bool               `yaml:"descending"`
	Limit       int                `yaml:"limit"`
	Joins       []JoinConfig       `yaml:"joins"`
	// Omit lists fields that are removed from every exported object
	Omit []string `yaml:"omit"`
}

type Config struct {
	Exports []ExportConfig `yaml:"exports"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(buf, &cfg)
	if err != nil {
		return nil, err
	}

	for _, export := range cfg.Exports {
		if export.Type == "" {
			return nil, fmt.Errorf("export configuration without type")
		}

		for _, join := range export.Joins {
			if join.Field == "" || join.Type == "" {
				return nil, fmt.Errorf("join configuration for %s requires both field and type", export.Type)
			}
		}
	}

	return cfg, nil
}

// Params returns the query parameters of the export
func (ec ExportConfig) Params() objects.Params {
	decorators := []objects.ParamsDecoratorFunc{}

	for _, c := range ec.Constraints {
		decorators = append(decorators, objects.Where(c.Key, objects.ConstraintType(c.Type), c.Value))
	}

	if ec.SortField != "" {
		decorators = append(decorators, objects.SortBy(ec.SortField, ec.Descending))
	}

	if ec.Limit > 0 {
		decorators = append(decorators, objects.Limit(ec.Limit))
	}

	return objects.NewParams(decorators...)
}
