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

// Package llmtest provides a scripted chat model for tests.
package llmtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// ErrExhausted is returned once a ScriptedModel runs out of replies.
var ErrExhausted = errors.New("scripted model exhausted")

// Reply is one scripted answer.
type Reply struct {
	Msg *schema.Message
	Err error
}

// ScriptedModel answers Generate calls from Replies in order, or from
// Respond when it is set.
type ScriptedModel struct {
	Replies []Reply
	Respond func(call int, input []*schema.Message) (*schema.Message, error)

	mu    sync.Mutex
	calls [][]*schema.Message
	tools []*schema.ToolInfo
}

var _ model.ToolCallingChatModel = (*ScriptedModel)(nil)

func (m *ScriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	call := len(m.calls)
	m.calls = append(m.calls, append([]*schema.Message(nil), input...))
	m.mu.Unlock()

	if m.Respond != nil {
		return m.Respond(call, input)
	}
	if call >= len(m.Replies) {
		return nil, ErrExhausted
	}
	r := m.Replies[call]
	return r.Msg, r.Err
}

func (m *ScriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *ScriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	m.tools = tools
	m.mu.Unlock()
	return m, nil
}

// Calls returns the inputs of every Generate call so far.
func (m *ScriptedModel) Calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*schema.Message(nil), m.calls...)
}

// BoundTools returns the names of the tools bound through WithTools.
func (m *ScriptedModel) BoundTools() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.tools))
	for _, t := range m.tools {
		names = append(names, t.Name)
	}
	return names
}

// Text is an assistant answer without tool calls.
func Text(content string) *schema.Message {
	return schema.AssistantMessage(content, nil)
}

// ToolCalls is an assistant turn requesting the given calls.
func ToolCalls(calls ...schema.ToolCall) *schema.Message {
	return schema.AssistantMessage("", calls)
}

// Call builds a function tool call.
func Call(id, name, args string) schema.ToolCall {
	return schema.ToolCall{
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}
}

// LastUser returns the content of the last user message in input.
func LastUser(input []*schema.Message) string {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i].Role == schema.User {
			return input[i].Content
		}
	}
	return ""
}

// FirstSystem returns the content of the first system message in input.
func FirstSystem(input []*schema.Message) string {
	for _, m := range input {
		if m.Role == schema.System {
			return m.Content
		}
	}
	return ""
}

// ToolResults returns the contents of the tool messages in input.
func ToolResults(input []*schema.Message) []string {
	var out []string
	for _, m := range input {
		if m.Role == schema.Tool {
			out = append(out, m.Content)
		}
	}
	return out
}

// Contains reports whether any message in input contains substr.
func Contains(input []*schema.Message, substr string) bool {
	for _, m := range input {
		if strings.Contains(m.Content, substr) {
			return true
		}
	}
	return false
}

// Describe renders input compactly for assertion messages.
func Describe(input []*schema.Message) string {
	var sb strings.Builder
	for _, m := range input {
		fmt.Fprintf(&sb, "[%s] %s\n", m.Role, m.Content)
	}
	return sb.String()
}
