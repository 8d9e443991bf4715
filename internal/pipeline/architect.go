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

	"github.com/cloudwego/arcbuilder/internal/utils"
	"github.com/cloudwego/arcbuilder/llm/log"
	"github.com/cloudwego/arcbuilder/llm/prompt"
	"github.com/cloudwego/arcbuilder/llm/structured"
	"github.com/cloudwego/eino/components/model"
)

// Architect breaks the Plan into ordered implementation steps. Whatever plan
// the model echoes back is discarded; the TaskPlan always points at the
// planner's Plan.
//
// Reads: Plan. Writes: TaskPlan, TaskPlanSnapshot.
type Architect struct {
	model    model.BaseChatModel
	prompts  prompt.Set
	observer Observer
	verbose  bool
}

func (a *Architect) Name() string { return NodeArchitect }

func (a *Architect) Run(ctx context.Context, st *RunState, rec *StepRecord) error {
	if st.Plan == nil {
		return errors.New("architect needs a plan")
	}
	planJSON, err := utils.MarshalJSONIndent(st.Plan)
	if err != nil {
		return err
	}
	instruction, err := a.prompts.RenderArchitect(planJSON)
	if err != nil {
		return err
	}
	observePrompt(a.observer, NodeArchitect, instruction)

	tp, err := structured.Coerce(stageContext(ctx, NodeArchitect, a.observer, a.verbose), a.model, instruction, TaskPlanSchema)
	if err != nil {
		return err
	}
	tp.Plan = st.Plan
	snap, err := TakeSnapshot(SnapshotTaskPlan, tp)
	if err != nil {
		return err
	}
	st.TaskPlan = tp
	st.TaskPlanSnapshot = snap
	log.Info("[architect] %d implementation steps", len(tp.ImplementationSteps))
	return nil
}
