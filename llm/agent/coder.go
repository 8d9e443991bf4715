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

package agent

import (
	"context"
	"errors"

	"github.com/cloudwego/arcbuilder/llm"
	"github.com/cloudwego/arcbuilder/llm/log"
	"github.com/cloudwego/arcbuilder/llm/prompt"
	"github.com/cloudwego/arcbuilder/llm/tool"
	"github.com/cloudwego/eino/callbacks"
	etool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
)

// DefaultCoderMaxSteps bounds one coder step: every model turn and every
// tool round counts as one step.
const DefaultCoderMaxSteps = 40

type CoderOptions struct {
	Model    llm.ChatModel
	Sandbox  *tool.Sandbox
	MaxSteps int
	// SysPrompt defaults to the embedded coder system prompt.
	SysPrompt prompt.Prompt
	// ExtraTools are bound next to the sandbox tools, e.g. from MCP servers.
	ExtraTools []tool.Tool
	Callbacks  []callbacks.Handler
}

// NewCoderAgent builds the tool-calling agent that implements one step of a
// task plan against the sandbox.
func NewCoderAgent(ctx context.Context, opts CoderOptions) (*llm.ReactAgent, error) {
	if opts.Model == nil {
		return nil, errors.New("coder model is nil")
	}
	if opts.Sandbox == nil {
		return nil, errors.New("coder sandbox is nil")
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultCoderMaxSteps
	}
	if opts.SysPrompt == nil {
		opts.SysPrompt = prompt.NewTextPrompt(prompt.PromptCoderSystem)
	}

	ts, err := tool.NewSandboxTools(opts.Sandbox).GetTools()
	if err != nil {
		return nil, err
	}
	log.Debug("NewCoderAgent, root: %s, sandbox tools: %d, extra tools: %d", opts.Sandbox.Root(), len(ts), len(opts.ExtraTools))

	tcfg := compose.ToolsNodeConfig{
		UnknownToolsHandler: tool.UnknownToolHandler,
		ExecuteSequentially: true,
	}
	tcfg.Tools = append(tcfg.Tools, ts...)
	for _, t := range opts.ExtraTools {
		if it, ok := t.(etool.InvokableTool); ok {
			t = tool.SafeTool(it)
		}
		tcfg.Tools = append(tcfg.Tools, t)
	}

	return llm.NewReactAgent(ctx, "coder", llm.ReactAgentOptions{
		SysPrompt: opts.SysPrompt,
		AgentConfig: &react.AgentConfig{
			ToolCallingModel: opts.Model,
			ToolsConfig:      tcfg,
			MaxStep:          opts.MaxSteps,
		},
		Callbacks: opts.Callbacks,
	})
}
