package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CouncilFile is the optional YAML description of the council, e.g.
//
//	council:
//	  - openai/gpt-5.1
//	  - anthropic/claude-sonnet-4.5
//	chairman: google/gemini-3-pro-preview
//	title_model: google/gemini-2.5-flash
//	model_timeout: 90s
type CouncilFile struct {
	Council      []string `yaml:"council"`
	Chairman     string   `yaml:"chairman"`
	TitleModel   string   `yaml:"title_model"`
	ModelTimeout string   `yaml:"model_timeout"`
	TitleTimeout string   `yaml:"title_timeout"`

	modelTimeout time.Duration
	titleTimeout time.Duration
}

// LoadCouncilFile reads and parses a council file.
func LoadCouncilFile(path string) (*CouncilFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read council file: %w", err)
	}

	var file CouncilFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse council file %s: %w", path, err)
	}

	if file.ModelTimeout != "" {
		if file.modelTimeout, err = time.ParseDuration(file.ModelTimeout); err != nil {
			return nil, fmt.Errorf("invalid model_timeout %q: %w", file.ModelTimeout, err)
		}
	}
	if file.TitleTimeout != "" {
		if file.titleTimeout, err = time.ParseDuration(file.TitleTimeout); err != nil {
			return nil, fmt.Errorf("invalid title_timeout %q: %w", file.TitleTimeout, err)
		}
	}
	return &file, nil
}

// Apply overrides cfg with every non-empty field of the file.
func (f *CouncilFile) Apply(cfg *Config) {
	if len(f.Council) > 0 {
		cfg.CouncilModels = append([]string(nil), f.Council...)
	}
	if f.Chairman != "" {
		cfg.ChairmanModel = f.Chairman
	}
	if f.TitleModel != "" {
		cfg.TitleModel = f.TitleModel
	}
	if f.modelTimeout > 0 {
		cfg.ModelTimeout = f.modelTimeout
	}
	if f.titleTimeout > 0 {
		cfg.TitleTimeout = f.titleTimeout
	}
}
