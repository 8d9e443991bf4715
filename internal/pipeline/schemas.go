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
	"github.com/cloudwego/arcbuilder/llm/structured"
)

const planCUE = `
name:        string & !=""
description: string
tech_stack?: [...string] | null
features?:   [...string] | null
files: [{path: string & !="", purpose: string}, ...{path: string & !="", purpose: string}]
`

// plan is left unconstrained: it is stripped before validation and replaced
// by the planner's Plan afterwards. An open list is concrete on its own, so
// implementation_steps must be marked required to reject a missing key.
const taskPlanCUE = `
implementation_steps!: [...{filepath: string & !="", task_description: string}]
`

var (
	PlanSchema     = newPlanSchema()
	TaskPlanSchema = newTaskPlanSchema()
)

func newPlanSchema() *structured.Schema[Plan] {
	s := structured.MustSchema[Plan]("Plan", planCUE)
	s.Normalize = normalizePlan
	return s
}

func newTaskPlanSchema() *structured.Schema[TaskPlan] {
	s := structured.MustSchema[TaskPlan]("TaskPlan", taskPlanCUE)
	s.Strip = []string{"plan"}
	return s
}

// normalizePlan makes tech_stack a set, keeping the first occurrence.
func normalizePlan(p *Plan) {
	if len(p.TechStack) == 0 {
		return
	}
	seen := make(map[string]bool, len(p.TechStack))
	out := p.TechStack[:0]
	for _, t := range p.TechStack {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	p.TechStack = out
}
