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

package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/arcbuilder/internal/utils"
	etool "github.com/cloudwego/eino/components/tool"
	toolutils "github.com/cloudwego/eino/components/tool/utils"
)

// Tool is anything the coder agent can bind to its chat model.
type Tool = etool.BaseTool

// SandboxTools adapts a Sandbox to eino tools.
type SandboxTools struct {
	sb *Sandbox
}

func NewSandboxTools(sb *Sandbox) *SandboxTools {
	return &SandboxTools{sb: sb}
}

func (t *SandboxTools) ReadFile(ctx context.Context, req ReadFileCall) (*ReadFileResult, error) {
	return t.sb.Execute(ctx, req).(*ReadFileResult), nil
}

func (t *SandboxTools) WriteFile(ctx context.Context, req WriteFileCall) (*WriteFileResult, error) {
	return t.sb.Execute(ctx, req).(*WriteFileResult), nil
}

func (t *SandboxTools) ListFiles(ctx context.Context, req ListFilesCall) (*ListFilesResult, error) {
	return t.sb.Execute(ctx, req).(*ListFilesResult), nil
}

func (t *SandboxTools) GetCurrentDirectory(ctx context.Context, req GetRootCall) (*GetRootResult, error) {
	return t.sb.Execute(ctx, req).(*GetRootResult), nil
}

// GetTools returns the four sandbox tools. Argument decoding failures are
// answered to the model instead of failing the agent.
func (t *SandboxTools) GetTools() ([]Tool, error) {
	var ts []etool.InvokableTool
	add := func(it etool.InvokableTool, err error) error {
		if err != nil {
			return err
		}
		ts = append(ts, it)
		return nil
	}
	opt := toolutils.WithMarshalOutput(marshalOutput)
	if err := add(toolutils.InferTool(ToolReadFile, DescReadFile, t.ReadFile, opt)); err != nil {
		return nil, utils.WrapError(err, "infer %s", ToolReadFile)
	}
	if err := add(toolutils.InferTool(ToolWriteFile, DescWriteFile, t.WriteFile, opt)); err != nil {
		return nil, utils.WrapError(err, "infer %s", ToolWriteFile)
	}
	if err := add(toolutils.InferTool(ToolListFiles, DescListFiles, t.ListFiles, opt)); err != nil {
		return nil, utils.WrapError(err, "infer %s", ToolListFiles)
	}
	if err := add(toolutils.InferTool(ToolGetCurrentDirectory, DescGetCurrentDirectory, t.GetCurrentDirectory, opt)); err != nil {
		return nil, utils.WrapError(err, "infer %s", ToolGetCurrentDirectory)
	}

	out := make([]Tool, 0, len(ts))
	for _, it := range ts {
		out = append(out, SafeTool(it))
	}
	return out, nil
}

func marshalOutput(ctx context.Context, output any) (string, error) {
	bs, err := utils.MarshalJSONBytes(output)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

// SafeTool turns errors of an invokable tool into an error payload for the
// model.
func SafeTool(t etool.InvokableTool) etool.InvokableTool {
	return safeTool{InvokableTool: t}
}

type safeTool struct {
	etool.InvokableTool
}

func (t safeTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...etool.Option) (string, error) {
	out, err := t.InvokableTool.InvokableRun(ctx, argumentsInJSON, opts...)
	if err == nil {
		return out, nil
	}
	name := "unknown"
	if info, ierr := t.Info(ctx); ierr == nil && info != nil {
		name = info.Name
	}
	msg := fmt.Sprintf("%s failed: %v", name, err)
	JournalFrom(ctx).RecordFailure(name, argumentsInJSON, msg)
	return ErrorPayload(msg), nil
}

// UnknownToolHandler answers calls to tools that were never bound.
func UnknownToolHandler(ctx context.Context, name, input string) (string, error) {
	msg := fmt.Sprintf("unknown tool %q, available tools are %s", name, strings.Join([]string{
		ToolReadFile, ToolWriteFile, ToolListFiles, ToolGetCurrentDirectory,
	}, ", "))
	JournalFrom(ctx).RecordFailure(name, input, msg)
	return ErrorPayload(msg), nil
}

// ErrorPayload renders msg as the JSON tool result {"error": msg}.
func ErrorPayload(msg string) string {
	bs, _ := utils.MarshalJSONBytes(map[string]string{"error": msg})
	return string(bs)
}
