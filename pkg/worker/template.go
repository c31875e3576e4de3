package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// JobTemplate is the body sent to /job/generate.
type JobTemplate struct {
	Type      string         `json:"type" yaml:"type"`
	Arguments map[string]any `json:"arguments" yaml:"arguments"`
}

// DefaultJobTemplate returns the twitter search job used when no template
// file is configured.
func DefaultJobTemplate() JobTemplate {
	return JobTemplate{
		Type: "twitter-scraper",
		Arguments: map[string]any{
			"max_results": 22,
			"query":       "#AI trending",
			"type":        "searchbyquery",
		},
	}
}

// LoadTemplate reads a job template from a YAML or JSON file.
//
// The format is chosen by extension; unknown extensions are parsed as
// YAML, which also accepts JSON. A missing type falls back to the default
// template's type.
func LoadTemplate(path string) (JobTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return JobTemplate{}, fmt.Errorf("template file not found: %s", path)
		}
		return JobTemplate{}, fmt.Errorf("failed to read template file: %w", err)
	}
	return ParseTemplate(data, path)
}

// ParseTemplate parses a job template from raw bytes. The path is only
// used for format detection.
func ParseTemplate(data []byte, path string) (JobTemplate, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return JobTemplate{}, errors.New("template is empty")
	}

	var tmpl JobTemplate
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &tmpl); err != nil {
			return JobTemplate{}, fmt.Errorf("failed to parse JSON template: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			return JobTemplate{}, fmt.Errorf("failed to parse YAML template: %w", err)
		}
	}

	if tmpl.Type == "" {
		tmpl.Type = DefaultJobTemplate().Type
	}
	if tmpl.Arguments == nil {
		tmpl.Arguments = map[string]any{}
	}
	return tmpl, nil
}
