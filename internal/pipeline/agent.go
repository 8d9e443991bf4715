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

	"github.com/cloudwego/arcbuilder/llm/structured"
)

// Agent decides what to do when a stage attempt fails: retry it within the
// same visit, or abort the run. The Agent only schedules; it never edits
// the state.
type Agent interface {
	OnStageFailure(
		ctx context.Context,
		stage Stage,
		st *RunState,
		err error,
		attempt int,
	) AgentDecision
}

// AgentDecision is the action to take after a stage failure.
type AgentDecision string

const (
	DecisionRetry AgentDecision = "retry"
	DecisionAbort AgentDecision = "abort"
)

// DefaultAgent retries a recoverable failure at most MaxRetry times. Only
// malformed structured output is recoverable; model and sandbox failures
// abort at once.
type DefaultAgent struct {
	MaxRetry int
}

// OnStageFailure implements Agent.
func (a *DefaultAgent) OnStageFailure(
	ctx context.Context,
	stage Stage,
	st *RunState,
	err error,
	attempt int,
) AgentDecision {
	if !Recoverable(err) || ctx.Err() != nil {
		return DecisionAbort
	}
	if attempt > a.MaxRetry {
		return DecisionAbort
	}
	return DecisionRetry
}

// Recoverable reports whether another attempt of the same stage may succeed.
func Recoverable(err error) bool {
	var se *structured.StructuredOutputError
	return errors.As(err, &se)
}
