package config

import (
	"fmt"
	"os"

	"github.com/godilite/insighter/internal/repository/models"
	"gopkg.in/yaml.v3"
)

// LoadRubric reads a yaml rubric and merges it over the default one. An empty
// path returns the default rubric.
func LoadRubric(path string) (models.Rubric, error) {
	rubric := models.DefaultRubric()
	if path == "" {
		return rubric, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return models.Rubric{}, fmt.Errorf("read rubric: %w", err)
	}

	var file models.Rubric
	if err := yaml.Unmarshal(data, &file); err != nil {
		return models.Rubric{}, fmt.Errorf("parse rubric %s: %w", path, err)
	}

	if file.System != "" {
		rubric.System = file.System
	}
	for d, desc := range file.Descriptions {
		if !d.Known() || d == models.DimensionOther {
			return models.Rubric{}, fmt.Errorf("rubric %s: unknown dimension %q", path, d)
		}
		if desc != "" {
			rubric.Descriptions[d] = desc
		}
	}
	return rubric, nil
}
