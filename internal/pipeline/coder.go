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

package pipeline

import (
	"context"
	"errors"

	"github.com/cloudwego/arcbuilder/llm"
	"github.com/cloudwego/arcbuilder/llm/log"
	"github.com/cloudwego/arcbuilder/llm/prompt"
	"github.com/cloudwego/arcbuilder/llm/tool"
)

// Coder implements exactly one step of the TaskPlan per visit.
//
// Reads: TaskPlan, Coder, Status. Writes: Coder, Status.
type Coder struct {
	agent    llm.Generator
	sandbox  *tool.Sandbox
	prompts  prompt.Set
	observer Observer
}

func (c *Coder) Name() string { return NodeCoder }

func (c *Coder) Run(ctx context.Context, st *RunState, rec *StepRecord) error {
	if st.Status == StatusDone {
		rec.Status = StepSkipped
		return nil
	}
	if st.Coder == nil {
		if st.TaskPlan == nil {
			return errors.New("coder needs a task plan")
		}
		st.Coder = &CoderState{TaskPlan: st.TaskPlan}
	}

	steps := st.Coder.TaskPlan.ImplementationSteps
	idx := st.Coder.CurrentStepIdx
	rec.StepIndex = idx
	if idx >= len(steps) {
		st.Status = StatusDone
		rec.Status = StepDone
		log.Info("[coder] all %d steps done", len(steps))
		return nil
	}

	step := steps[idx]
	rec.Filepath = step.Filepath
	existing := ""
	if res := c.sandbox.ReadFile(ctx, step.Filepath); res.Error != "" {
		log.Warn("[coder] step %d: read %s: %s", idx, step.Filepath, res.Error)
	} else {
		existing = res.Content
	}

	task, err := c.prompts.RenderCoderTask(step.TaskDescription, step.Filepath, existing)
	if err != nil {
		return err
	}
	observePrompt(c.observer, NodeCoder, task)

	log.Info("[coder] step %d/%d: %s", idx+1, len(steps), step.Filepath)
	j := &tool.Journal{}
	_, err = c.agent.Call(tool.WithJournal(ctx, j), task)
	rec.ToolCalls, rec.FailedToolCalls = j.Summary()
	switch {
	case errors.Is(err, llm.ErrStepBudgetExhausted):
		log.Warn("[coder] step %d: tool loop ran out of steps after %d tool calls", idx, rec.ToolCalls)
		rec.Status = StepBudgetExhausted
	case err != nil:
		return err
	}

	st.Coder.CurrentStepIdx++
	return nil
}
