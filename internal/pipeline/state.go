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
	"time"
)

// RunState is the single source of truth of one run. It is threaded by
// pointer through every stage; each stage documents what it reads and
// writes.
type RunState struct {
	RunID      string `json:"run_id"`
	UserPrompt string `json:"user_prompt"`

	// Plan is written by the planner.
	Plan *Plan `json:"plan,omitempty"`
	// TaskPlan is written by the architect and shares Plan.
	TaskPlan *TaskPlan `json:"task_plan,omitempty"`
	// Coder is created on the first coder visit.
	Coder  *CoderState `json:"coder_state,omitempty"`
	Status Status      `json:"status,omitempty"`

	// Visits counts stage visits against the recursion limit.
	Visits int `json:"visits"`

	PlanSnapshot     *Snapshot `json:"plan_snapshot,omitempty"`
	TaskPlanSnapshot *Snapshot `json:"task_plan_snapshot,omitempty"`

	History []StepRecord `json:"history"`

	cfg     RunConfig
	failure error
}

// Status is empty while the run is in progress.
type Status string

const (
	StatusRunning Status = ""
	StatusDone    Status = "DONE"
)

// Plan is the high-level description of the website to build.
type Plan struct {
	Name        string     `json:"name" jsonschema:"description=Short name of the website"`
	Description string     `json:"description" jsonschema:"description=One sentence describing the website"`
	TechStack   []string   `json:"tech_stack,omitempty" jsonschema:"description=Technologies to use such as html or css or javascript"`
	Features    []string   `json:"features,omitempty" jsonschema:"description=User facing features"`
	Files       []FileSpec `json:"files" jsonschema:"description=Files the website consists of,minItems=1"`
}

type FileSpec struct {
	Path    string `json:"path" jsonschema:"description=Path relative to the project root"`
	Purpose string `json:"purpose" jsonschema:"description=What the file is for"`
}

// TaskPlan is the ordered list of file-level edits derived from a Plan.
// Steps run in order, one per coder visit.
type TaskPlan struct {
	ImplementationSteps []ImplementationStep `json:"implementation_steps" jsonschema:"description=Ordered steps; each edits exactly one file"`
	Plan                *Plan                `json:"plan,omitempty" jsonschema:"-"`
}

type ImplementationStep struct {
	Filepath        string `json:"filepath" jsonschema:"description=Path of the file to create or edit"`
	TaskDescription string `json:"task_description" jsonschema:"description=Detailed description of the change"`
}

// CoderState is the cursor of the coder stage over a TaskPlan.
type CoderState struct {
	TaskPlan       *TaskPlan `json:"-"`
	CurrentStepIdx int       `json:"current_step_idx"`
}

// StepRecord is an immutable log entry for one stage attempt.
type StepRecord struct {
	Stage   string     `json:"stage"`
	Visit   int        `json:"visit"`
	Attempt int        `json:"attempt"`
	Status  StepStatus `json:"status"`
	Error   string     `json:"error,omitempty"`

	// coder only
	StepIndex       int    `json:"step_index,omitempty"`
	Filepath        string `json:"filepath,omitempty"`
	ToolCalls       int    `json:"tool_calls,omitempty"`
	FailedToolCalls int    `json:"failed_tool_calls,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// StepStatus is the outcome of a stage attempt.
type StepStatus string

const (
	StepOK     StepStatus = "ok"
	StepFailed StepStatus = "failed"
	StepRetry  StepStatus = "retry"
	// StepBudgetExhausted marks a coder step whose tool loop ran out of steps.
	StepBudgetExhausted StepStatus = "budget_exhausted"
	StepDone            StepStatus = "done"
	// StepSkipped attempts are not recorded.
	StepSkipped StepStatus = "skipped"
)

// Err returns the fatal error of the run, if any.
func (st *RunState) Err() error {
	return st.failure
}

func (st *RunState) fail(stage string, err error) error {
	st.failure = &StageError{Stage: stage, Err: err}
	return st.failure
}
