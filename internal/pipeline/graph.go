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

// Package pipeline runs the planner, architect and coder stages as an eino
// graph over a shared RunState.
package pipeline

import (
	"context"
	"errors"

	"github.com/cloudwego/arcbuilder/internal/utils"
	"github.com/cloudwego/arcbuilder/llm"
	"github.com/cloudwego/arcbuilder/llm/agent"
	"github.com/cloudwego/arcbuilder/llm/log"
	"github.com/cloudwego/arcbuilder/llm/prompt"
	"github.com/cloudwego/arcbuilder/llm/tool"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
)

const (
	NodePlanner   = "planner"
	NodeArchitect = "architect"
	NodeCoder     = "coder"

	graphName = "arcbuilder"
)

// Observer receives stage-level events next to the model and tool events of
// llm.Observer.
type Observer interface {
	llm.Observer
	ObserveStageVisit(stage string)
	ObservePrompt(stage, prompt string)
}

type Options struct {
	Model   llm.ChatModel
	Sandbox *tool.Sandbox
	// Prompts defaults to the embedded templates.
	Prompts       prompt.Set
	CoderMaxSteps int
	// ExtraTools are offered to the coder next to the sandbox tools.
	ExtraTools []tool.Tool
	Observer   Observer
	// Verbose traces every model and tool event at debug level.
	Verbose bool
	// Agent overrides the failure policy built from RunConfig.StructuredRetries.
	Agent Agent
}

type RunInput struct {
	UserPrompt string
	// RunID is generated when empty.
	RunID string
}

type RunConfig struct {
	// RecursionLimit bounds the total number of stage visits of one run.
	RecursionLimit int
	// StructuredRetries is how many times a planner or architect attempt
	// with malformed output is repeated. Zero fails fast.
	StructuredRetries int
}

// Builder owns the compiled graph. It holds no per-run state and can be
// invoked repeatedly; concurrent runs need distinct sandboxes.
type Builder struct {
	opts     Options
	runnable compose.Runnable[*RunState, *RunState]
}

func New(ctx context.Context, opts Options) (*Builder, error) {
	if opts.Model == nil {
		return nil, errors.New("model is nil")
	}
	if opts.Sandbox == nil {
		return nil, errors.New("sandbox is nil")
	}
	if opts.Prompts.Planner == "" {
		opts.Prompts = prompt.Default()
	}

	var cbs []callbacks.Handler
	if opts.Observer != nil || opts.Verbose {
		cbs = append(cbs, llm.CallbackHandler{Stage: NodeCoder, Observer: opts.Observer})
	}
	coderAgent, err := agent.NewCoderAgent(ctx, agent.CoderOptions{
		Model:      opts.Model,
		Sandbox:    opts.Sandbox,
		MaxSteps:   opts.CoderMaxSteps,
		SysPrompt:  prompt.NewTextPrompt(opts.Prompts.CoderSystem),
		ExtraTools: opts.ExtraTools,
		Callbacks:  cbs,
	})
	if err != nil {
		return nil, utils.WrapError(err, "new coder agent")
	}

	b := &Builder{opts: opts}
	planner := &Planner{model: opts.Model, prompts: opts.Prompts, observer: opts.Observer, verbose: opts.Verbose}
	architect := &Architect{model: opts.Model, prompts: opts.Prompts, observer: opts.Observer, verbose: opts.Verbose}
	coder := &Coder{agent: coderAgent, sandbox: opts.Sandbox, prompts: opts.Prompts, observer: opts.Observer}

	g := compose.NewGraph[*RunState, *RunState]()
	for _, s := range []Stage{planner, architect, coder} {
		if err := g.AddLambdaNode(s.Name(), compose.InvokableLambda(b.visit(s)), compose.WithNodeName(s.Name())); err != nil {
			return nil, utils.WrapError(err, "add node %s", s.Name())
		}
	}
	edges := [][2]string{
		{compose.START, NodePlanner},
		{NodePlanner, NodeArchitect},
		{NodeArchitect, NodeCoder},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, utils.WrapError(err, "add edge %s -> %s", e[0], e[1])
		}
	}
	branch := compose.NewGraphBranch(func(ctx context.Context, st *RunState) (string, error) {
		if st.Status == StatusDone {
			return compose.END, nil
		}
		return NodeCoder, nil
	}, map[string]bool{NodeCoder: true, compose.END: true})
	if err := g.AddBranch(NodeCoder, branch); err != nil {
		return nil, utils.WrapError(err, "add coder branch")
	}

	b.runnable, err = g.Compile(ctx,
		compose.WithGraphName(graphName),
		compose.WithNodeTriggerMode(compose.AnyPredecessor),
	)
	if err != nil {
		return nil, utils.WrapError(err, "compile graph")
	}
	return b, nil
}

// visit counts the visit against the recursion limit before running stage.
func (b *Builder) visit(stage Stage) func(ctx context.Context, st *RunState) (*RunState, error) {
	return func(ctx context.Context, st *RunState) (*RunState, error) {
		st.Visits++
		if b.opts.Observer != nil {
			b.opts.Observer.ObserveStageVisit(stage.Name())
		}
		if st.Visits > st.cfg.RecursionLimit {
			return st, st.fail(stage.Name(), &RecursionLimitExceeded{Limit: st.cfg.RecursionLimit, Visits: st.Visits})
		}
		if err := runStage(ctx, stage, st, b.agentFor(st.cfg)); err != nil {
			return st, st.fail(stage.Name(), err)
		}
		return st, nil
	}
}

func (b *Builder) agentFor(cfg RunConfig) Agent {
	if b.opts.Agent != nil {
		return b.opts.Agent
	}
	return &DefaultAgent{MaxRetry: cfg.StructuredRetries}
}

// Invoke runs one prompt through the graph. The returned state is never
// nil once the config is valid, also on error, so callers can inspect how
// far the run got.
func (b *Builder) Invoke(ctx context.Context, in RunInput, cfg RunConfig) (*RunState, error) {
	if cfg.RecursionLimit <= 0 {
		return nil, ErrInvalidRecursionLimit
	}
	st := &RunState{
		RunID:      in.RunID,
		UserPrompt: in.UserPrompt,
		cfg:        cfg,
	}
	if st.RunID == "" {
		st.RunID = uuid.NewString()
	}
	log.Info("run %s started, recursion limit %d", st.RunID, cfg.RecursionLimit)

	// the visit counter trips first; the runtime cap only guards against
	// the graph looping without visiting a stage
	_, err := b.runnable.Invoke(ctx, st, compose.WithRuntimeMaxSteps(cfg.RecursionLimit+2))
	if err != nil {
		if st.failure == nil {
			if llm.IsExceedMaxSteps(err) {
				st.fail(NodeCoder, &RecursionLimitExceeded{Limit: cfg.RecursionLimit, Visits: st.Visits})
			} else {
				st.failure = utils.WrapError(err, "run %s", st.RunID)
			}
		}
		log.Error("run %s failed: %v", st.RunID, st.failure)
		return st, st.failure
	}
	log.Info("run %s finished with %d stage visits", st.RunID, st.Visits)
	return st, nil
}
