/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package prompt

import (
	"bytes"
	_ "embed"
	"os"
	"path/filepath"
	"text/template"

	"github.com/cloudwego/arcbuilder/internal/utils"
)

type Prompt interface {
	String() string
}

type FilePrompt struct {
	Type PromptType `json:"type" yaml:"type"`
	Path string     `json:"path" yaml:"path"`
	Data any        `json:"data" yaml:"-"`
	text string
}

type PromptType string

const (
	PromptTypePlainText  PromptType = "text"
	PromptTypeDummy      PromptType = "dummy"
	PromptTypeGoTemplate PromptType = "go-template"
)

func (p *FilePrompt) String() string {
	return p.text
}

// NewFilePrompt loads c.Path and, for go-template prompts, renders it with
// c.Data.
func NewFilePrompt(c *FilePrompt) (Prompt, error) {
	switch c.Type {
	case PromptTypePlainText:
		bs, err := os.ReadFile(c.Path)
		if err != nil {
			return nil, utils.WrapError(err, "read prompt %s", c.Path)
		}
		c.text = string(bs)
		return c, nil
	case PromptTypeDummy:
		return TextPrompt(""), nil
	case PromptTypeGoTemplate:
		bs, err := os.ReadFile(c.Path)
		if err != nil {
			return nil, utils.WrapError(err, "read prompt %s", c.Path)
		}
		out, err := Render(filepath.Base(c.Path), string(bs), c.Data)
		if err != nil {
			return nil, err
		}
		c.text = out
		return c, nil
	default:
		return nil, utils.WrapError(ErrUnsupportedPromptType, "%q", string(c.Type))
	}
}

type TextPrompt string

func (p TextPrompt) String() string {
	return string(p)
}

func NewTextPrompt(content string) Prompt {
	return TextPrompt(content)
}

//go:embed planner.md
var PromptPlanner string

//go:embed architect.md
var PromptArchitect string

//go:embed coder_system.md
var PromptCoderSystem string

//go:embed coder_task.md
var PromptCoderTask string

// Render executes a text/template. Missing keys are errors.
func Render(name, tpl string, data any) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(tpl)
	if err != nil {
		return "", utils.WrapError(err, "parse template %s", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", utils.WrapError(err, "render template %s", name)
	}
	return buf.String(), nil
}
