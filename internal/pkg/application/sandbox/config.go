package sandbox

import (
	"fmt"
	"io"

	yaml "gopkg.in/yaml.v2"
)

const (
	DefaultPageSize int = 100
	MaxPageSize     int = 100
)

type TypeSeed struct {
	Type    string           `yaml:"type"`
	Objects []map[string]any `yaml:"objects"`
}

type Config struct {
	PageSize int        `yaml:"pageSize"`
	Seed     []TypeSeed `yaml:"seed"`
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

	for _, seed := range cfg.Seed {
		for i, obj := range seed.Objects {
			seed.Objects[i] = fromYAML(obj).(map[string]any)
		}
	}

	return cfg, nil
}

// fromYAML converts the map[any]any values produced by the yaml decoder into
// the map[string]any form used for objects
func fromYAML(value any) any {
	switch v := value.(type) {
	case map[any]any:
		m := make(map[string]any, len(v))
		for key, item := range v {
			m[fmt.Sprint(key)] = fromYAML(item)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(v))
		for key, item := range v {
			m[key] = fromYAML(item)
		}
		return m
	case []any:
		list := make([]any, 0, len(v))
		for _, item := range v {
			list = append(list, fromYAML(item))
		}
		return list
	default:
		return value
	}
}
