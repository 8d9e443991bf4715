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
	"time"

	"github.com/cloudwego/arcbuilder/llm/log"
)

// Stage is one node of the graph. Run mutates st in place and fills the
// stage-specific fields of rec.
type Stage interface {
	Name() string
	Run(ctx context.Context, st *RunState, rec *StepRecord) error
}

// runStage runs one visit of stage, retrying per agent. Every attempt but a
// skipped one leaves a StepRecord in st.History.
func runStage(ctx context.Context, stage Stage, st *RunState, agent Agent) error {
	attempt := 0
	for {
		attempt++
		rec := StepRecord{
			Stage:     stage.Name(),
			Visit:     st.Visits,
			Attempt:   attempt,
			StartedAt: time.Now(),
		}
		err := stage.Run(ctx, st, &rec)
		rec.EndedAt = time.Now()
		if err == nil {
			switch rec.Status {
			case StepSkipped:
				return nil
			case "":
				rec.Status = StepOK
			}
			st.History = append(st.History, rec)
			return nil
		}

		rec.Error = err.Error()
		decision := agent.OnStageFailure(ctx, stage, st, err, attempt)
		if decision == DecisionRetry {
			rec.Status = StepRetry
			st.History = append(st.History, rec)
			log.Warn("stage %s attempt %d failed, retrying: %v", stage.Name(), attempt, err)
			continue
		}
		rec.Status = StepFailed
		st.History = append(st.History, rec)
		return err
	}
}

// LastRecord returns the most recent history entry.
func (st *RunState) LastRecord() (StepRecord, bool) {
	if len(st.History) == 0 {
		return StepRecord{}, false
	}
	return st.History[len(st.History)-1], true
}
