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
	"encoding/json"
	"time"

	"github.com/cloudwego/arcbuilder/llm/log"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Observer receives model and tool events, typically a metrics recorder.
type Observer interface {
	ObserveModelCall(stage string, latency time.Duration, promptTokens, completionTokens int, err error)
	ObserveToolCall(stage, tool string, failed bool)
}

/*
	type Handler interface {
		OnStart(ctx context.Context, info *RunInfo, input CallbackInput) context.Context
		OnEnd(ctx context.Context, info *RunInfo, output CallbackOutput) context.Context

		OnError(ctx context.Context, info *RunInfo, err error) context.Context

		OnStartWithStreamInput(ctx context.Context, info *RunInfo,
			input *schema.StreamReader[CallbackInput]) context.Context
		OnEndWithStreamOutput(ctx context.Context, info *RunInfo,
			output *schema.StreamReader[CallbackOutput]) context.Context
	}
*/

// CallbackHandler traces eino components at debug level and forwards model
// latency, token usage and tool outcomes to Observer.
type CallbackHandler struct {
	Stage    string
	Observer Observer
}

var _ callbacks.Handler = (*CallbackHandler)(nil)

type startKey struct{}

func (h CallbackHandler) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	log.Debug("<OnStart> stage=%s name=%s component=%s", h.Stage, runName(info), runComponent(info))
	if info != nil && info.Component == components.ComponentOfTool {
		if in := tool.ConvCallbackInput(input); in != nil {
			log.Debug("\tARGS: %s", in.ArgumentsInJSON)
		}
	}
	return context.WithValue(ctx, startKey{}, time.Now())
}

func (h CallbackHandler) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if info == nil {
		return ctx
	}
	switch info.Component {
	case components.ComponentOfChatModel:
		out := model.ConvCallbackOutput(output)
		var prompt, completion int
		if out != nil && out.TokenUsage != nil {
			prompt, completion = out.TokenUsage.PromptTokens, out.TokenUsage.CompletionTokens
		}
		if out != nil && out.Message != nil {
			log.Debug("<OnEnd> stage=%s model answered with %d tool calls: %s", h.Stage, len(out.Message.ToolCalls), out.Message.Content)
		}
		if h.Observer != nil {
			h.Observer.ObserveModelCall(h.Stage, since(ctx), prompt, completion, nil)
		}
	case components.ComponentOfTool:
		out := tool.ConvCallbackOutput(output)
		failed := out != nil && isErrorPayload(out.Response)
		if out != nil {
			log.Debug("<OnEnd> stage=%s tool=%s failed=%v response=%s", h.Stage, info.Name, failed, out.Response)
		}
		if h.Observer != nil {
			h.Observer.ObserveToolCall(h.Stage, info.Name, failed)
		}
	}
	return ctx
}

func (h CallbackHandler) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	log.Error("<OnError> stage=%s name=%s component=%s error=%v", h.Stage, runName(info), runComponent(info), err)
	if info != nil && info.Component == components.ComponentOfChatModel && h.Observer != nil {
		h.Observer.ObserveModelCall(h.Stage, since(ctx), 0, 0, err)
	}
	return ctx
}

func (h CallbackHandler) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

func (h CallbackHandler) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}

func since(ctx context.Context) time.Duration {
	if t, ok := ctx.Value(startKey{}).(time.Time); ok {
		return time.Since(t)
	}
	return 0
}

func runName(info *callbacks.RunInfo) string {
	if info == nil {
		return ""
	}
	return info.Name
}

func runComponent(info *callbacks.RunInfo) string {
	if info == nil {
		return ""
	}
	return string(info.Component)
}

// isErrorPayload reports whether a tool response carries a non-empty
// "error" field.
func isErrorPayload(resp string) bool {
	var v struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(resp), &v); err != nil {
		return false
	}
	return v.Error != ""
}
