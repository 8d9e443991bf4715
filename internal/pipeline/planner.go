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

	"github.com/cloudwego/arcbuilder/llm"
	"github.com/cloudwego/arcbuilder/llm/log"
	"github.com/cloudwego/arcbuilder/llm/prompt"
	"github.com/cloudwego/arcbuilder/llm/structured"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
)

// Planner turns the user prompt into a Plan.
//
// Reads: UserPrompt. Writes: Plan, PlanSnapshot.
type Planner struct {
	model    model.BaseChatModel
	prompts  prompt.Set
	observer Observer
	verbose  bool
}

func (p *Planner) Name() string { return NodePlanner }

func (p *Planner) Run(ctx context.Context, st *RunState, rec *StepRecord) error {
	instruction, err := p.prompts.RenderPlanner(st.UserPrompt)
	if err != nil {
		return err
	}
	observePrompt(p.observer, NodePlanner, instruction)

	plan, err := structured.Coerce(stageContext(ctx, NodePlanner, p.observer, p.verbose), p.model, instruction, PlanSchema)
	if err != nil {
		return err
	}
	snap, err := TakeSnapshot(SnapshotPlan, plan)
	if err != nil {
		return err
	}
	st.Plan = plan
	st.PlanSnapshot = snap
	log.Info("[planner] plan %q with %d files", plan.Name, len(plan.Files))
	return nil
}

// stageContext attaches a callback handler to model calls made outside an
// eino graph.
func stageContext(ctx context.Context, stage string, obs Observer, verbose bool) context.Context {
	if obs == nil && !verbose {
		return ctx
	}
	return callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      stage,
		Component: components.ComponentOfChatModel,
	}, llm.CallbackHandler{Stage: stage, Observer: obs})
}

func observePrompt(obs Observer, stage, text string) {
	if obs != nil {
		obs.ObservePrompt(stage, text)
	}
}
