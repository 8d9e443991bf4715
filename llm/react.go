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

package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/arcbuilder/llm/log"
	"github.com/cloudwego/arcbuilder/llm/prompt"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
)

var _ Generator = (*ReactAgent)(nil)

// ErrStepBudgetExhausted is returned when the agent hits MaxStep before the
// model stopped requesting tools.
var ErrStepBudgetExhausted = errors.New("agent step budget exhausted")

const budgetWarning = "You have reached the maximum number of iterations. Conclude now and do not call any more tools."

type ReactAgent struct {
	name string
	opts ReactAgentOptions
	*react.Agent
	timeout time.Duration // Request timeout
}

type ReactAgentOptions struct {
	SysPrompt prompt.Prompt `json:"-"`
	*react.AgentConfig
	Timeout   time.Duration       `json:"timeout"` // Timeout of one Call, default: 600s
	Callbacks []callbacks.Handler `json:"-"`
}

func NewReactAgent(ctx context.Context, name string, opts ReactAgentOptions) (*ReactAgent, error) {
	if opts.AgentConfig == nil {
		return nil, errors.New("agent config is nil")
	}
	if opts.SysPrompt == nil {
		opts.SysPrompt = prompt.TextPrompt("")
	}
	if opts.AgentConfig.MessageModifier == nil {
		opts.AgentConfig.MessageModifier = newMessageModifier(opts.SysPrompt.String(), name, opts.AgentConfig.MaxStep)
	}
	ag, err := react.NewAgent(ctx, opts.AgentConfig)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 600 * time.Second
	}
	return &ReactAgent{
		name:    name,
		opts:    opts,
		Agent:   ag,
		timeout: timeout,
	}, nil
}

// newMessageModifier prepends the system prompt and, once the history gets
// close to the step limit, asks the model to stop calling tools.
func newMessageModifier(sysPrompt string, name string, limit int) func(ctx context.Context, input []*schema.Message) []*schema.Message {
	return func(ctx context.Context, input []*schema.Message) []*schema.Message {
		log.Debug("newMessageModifier, name: %v, limit: %d, input: %v", name, limit, len(input))
		if limit > 0 && len(input) >= limit-1 {
			input = append(input, schema.UserMessage(budgetWarning))
		}
		return appendSysPrompt(sysPrompt, input)
	}
}

func appendSysPrompt(sysPrompt string, input []*schema.Message) []*schema.Message {
	if sysPrompt == "" {
		return input
	}
	res := make([]*schema.Message, 0, len(input)+1)
	res = append(res, schema.SystemMessage(sysPrompt))
	res = append(res, input...)
	return res
}

// Call runs the agent once on input. It is not retried: a failed model
// round trip returns a *ModelError, and running out of steps returns
// ErrStepBudgetExhausted.
func (p *ReactAgent) Call(ctx context.Context, input string) (string, error) {
	log.Debug("[User] %s", input)
	inputMsgs := []*schema.Message{schema.UserMessage(input)}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var opts []agent.AgentOption
	if len(p.opts.Callbacks) > 0 {
		opts = append(opts, agent.WithComposeOptions(compose.WithCallbacks(p.opts.Callbacks...)))
	}
	out, err := p.Generate(callCtx, inputMsgs, opts...)
	if err != nil {
		if IsExceedMaxSteps(err) {
			return "", ErrStepBudgetExhausted
		}
		log.Error("agent %s failed: %v", p.name, err)
		return "", &ModelError{Op: "agent " + p.name, Err: err}
	}
	return out.Content, nil
}

// IsExceedMaxSteps reports whether err comes from an eino graph running out
// of steps.
func IsExceedMaxSteps(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, compose.ErrExceedMaxSteps) ||
		strings.Contains(err.Error(), compose.ErrExceedMaxSteps.Error())
}
