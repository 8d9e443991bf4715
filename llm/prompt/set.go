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
	"errors"
	"os"
	"path/filepath"

	"github.com/cloudwego/arcbuilder/internal/utils"
)

var ErrUnsupportedPromptType = errors.New("unsupported prompt type")

// Set holds the four pipeline templates.
type Set struct {
	Planner     string
	Architect   string
	CoderSystem string
	CoderTask   string
}

type PlannerData struct {
	UserPrompt string
}

type ArchitectData struct {
	Plan string
}

type CoderTaskData struct {
	Task     string
	File     string
	Existing string
}

// Default returns the embedded templates.
func Default() Set {
	return Set{
		Planner:     PromptPlanner,
		Architect:   PromptArchitect,
		CoderSystem: PromptCoderSystem,
		CoderTask:   PromptCoderTask,
	}
}

// LoadDir returns the embedded templates overridden by planner.md,
// architect.md, coder_system.md and coder_task.md found in dir.
func LoadDir(dir string) (Set, error) {
	s := Default()
	if dir == "" {
		return s, nil
	}
	for name, dst := range map[string]*string{
		"planner.md":      &s.Planner,
		"architect.md":    &s.Architect,
		"coder_system.md": &s.CoderSystem,
		"coder_task.md":   &s.CoderTask,
	} {
		bs, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Set{}, utils.WrapError(err, "read prompt override %s", name)
		}
		*dst = string(bs)
	}
	return s, nil
}

func (s Set) RenderPlanner(userPrompt string) (string, error) {
	return Render("planner", s.Planner, PlannerData{UserPrompt: userPrompt})
}

func (s Set) RenderArchitect(planJSON string) (string, error) {
	return Render("architect", s.Architect, ArchitectData{Plan: planJSON})
}

func (s Set) RenderCoderTask(task, file, existing string) (string, error) {
	return Render("coder_task", s.CoderTask, CoderTaskData{Task: task, File: file, Existing: existing})
}
