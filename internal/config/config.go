// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads arcbuilder settings from a YAML file, a .env file and
// the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/arcbuilder/internal/utils"
	"github.com/cloudwego/arcbuilder/llm"
	"github.com/cloudwego/arcbuilder/llm/log"
	"github.com/cloudwego/arcbuilder/llm/tool"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModelType         = llm.ModelTypeGroq
	DefaultModelName         = "openai/gpt-oss-120b"
	DefaultTemperature       = float32(0.1)
	DefaultMaxTokens         = 4000
	DefaultTimeout           = 60 * time.Second
	DefaultRecursionLimit    = 100
	DefaultCoderMaxSteps     = 40
	DefaultStructuredRetries = 0
)

var (
	ErrUnknownModelType        = errors.New("unknown model type")
	ErrMissingAPIKey           = errors.New("missing api key")
	ErrInvalidRecursionLimit   = errors.New("recursion limit must be positive")
	ErrInvalidCoderMaxSteps    = errors.New("coder max steps must be positive")
	ErrNegativeStructuredRetry = errors.New("structured retries must not be negative")
)

type Config struct {
	Model    ModelSection    `yaml:"model"`
	Pipeline PipelineSection `yaml:"pipeline"`
	Coder    CoderSection    `yaml:"coder"`
	Log      log.Options     `yaml:"log"`
	// PromptsDir overrides the embedded prompt templates when set.
	PromptsDir string `yaml:"prompts_dir"`
	// MetricsFile is where the CLI writes prometheus textfile metrics.
	MetricsFile string `yaml:"metrics_file"`
	Verbose     bool   `yaml:"verbose"`
}

type ModelSection struct {
	Type        string        `yaml:"type"`
	Name        string        `yaml:"name"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type PipelineSection struct {
	RecursionLimit    int `yaml:"recursion_limit"`
	StructuredRetries int `yaml:"structured_retries"`
}

type CoderSection struct {
	MaxSteps   int              `yaml:"max_steps"`
	MCPServers []tool.MCPConfig `yaml:"mcp_servers"`
}

// Default mirrors the settings the generator was tuned with.
func Default() Config {
	return Config{
		Model: ModelSection{
			Type:        string(DefaultModelType),
			Name:        DefaultModelName,
			Temperature: DefaultTemperature,
			MaxTokens:   DefaultMaxTokens,
			Timeout:     DefaultTimeout,
		},
		Pipeline: PipelineSection{
			RecursionLimit:    DefaultRecursionLimit,
			StructuredRetries: DefaultStructuredRetries,
		},
		Coder: CoderSection{
			MaxSteps: DefaultCoderMaxSteps,
		},
		Log: log.Options{
			Level: log.InfoLevel,
		},
	}
}

// Load builds a Config from defaults, then path (optional), then envFile
// (optional, missing is fine), then the environment.
func Load(path string, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, utils.WrapError(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(bs, &cfg); err != nil {
			return nil, utils.WrapError(err, "parse config %s", path)
		}
	}
	if envFile != "" {
		// godotenv never overrides variables already set in the process
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, utils.WrapError(err, "load env file %s", envFile)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("API_TYPE"); ok && v != "" {
		c.Model.Type = v
	}
	if v, ok := lookup("API_KEY"); ok && v != "" {
		c.Model.APIKey = v
	}
	if v, ok := lookup("MODEL_NAME"); ok && v != "" {
		c.Model.Name = v
	}
	if v, ok := lookup("BASE_URL"); ok && v != "" {
		c.Model.BaseURL = v
	}
	if c.Model.APIKey == "" && llm.NewModelType(c.Model.Type) == llm.ModelTypeGroq {
		if v, ok := lookup("GROQ_API_KEY"); ok {
			c.Model.APIKey = v
		}
	}
	if v, ok := lookup("ARCBUILDER_DEBUG"); ok && v != "" {
		debug, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return utils.WrapError(err, "parse ARCBUILDER_DEBUG")
		}
		c.Verbose = c.Verbose || debug
	}
	if c.Verbose {
		c.Log.Level = log.DebugLevel
	}
	return nil
}

func (c *Config) Validate() error {
	t := llm.NewModelType(c.Model.Type)
	if t == llm.ModelTypeUnknown {
		return fmt.Errorf("%w: %q", ErrUnknownModelType, c.Model.Type)
	}
	if t.NeedsAPIKey() && c.Model.APIKey == "" {
		return fmt.Errorf("%w for %s, set API_KEY", ErrMissingAPIKey, t)
	}
	if c.Pipeline.RecursionLimit <= 0 {
		return ErrInvalidRecursionLimit
	}
	if c.Coder.MaxSteps <= 0 {
		return ErrInvalidCoderMaxSteps
	}
	if c.Pipeline.StructuredRetries < 0 {
		return ErrNegativeStructuredRetry
	}
	return nil
}

// ModelConfig converts the model section for llm.NewChatModel.
func (c *Config) ModelConfig() llm.ModelConfig {
	temp := c.Model.Temperature
	return llm.ModelConfig{
		Name:        "arcbuilder",
		APIType:     llm.NewModelType(c.Model.Type),
		BaseURL:     c.Model.BaseURL,
		APIKey:      c.Model.APIKey,
		ModelName:   c.Model.Name,
		Temperature: &temp,
		MaxTokens:   c.Model.MaxTokens,
		Timeout:     c.Model.Timeout,
	}
}
