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

package mcp

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/arcbuilder/internal/utils"
	"github.com/cloudwego/arcbuilder/llm/prompt"
	"github.com/cloudwego/arcbuilder/llm/tool"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool is an MCP tool definition together with its handler.
type Tool struct {
	mcp.Tool
	Handler server.ToolHandlerFunc
}

// failer is implemented by sandbox results that carry an error message.
type failer interface {
	Failure() string
}

func NewTool[R any, T any](name string, desc string, schema json.RawMessage, handler func(ctx context.Context, req R) (*T, error)) Tool {
	return Tool{
		Tool: mcp.NewToolWithRawSchema(name, desc, schema),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var req R
			if err := request.BindArguments(&req); err != nil {
				return mcp.NewToolResultError(tool.ErrorPayload(err.Error())), nil
			}
			var final string
			var isError bool
			if resp, err := handler(ctx, req); err != nil {
				isError = true
				final = tool.ErrorPayload(err.Error())
			} else if js, err := utils.MarshalJSONBytes(resp); err != nil {
				isError = true
				final = tool.ErrorPayload(err.Error())
			} else {
				final = string(js)
				if f, ok := any(resp).(failer); ok && f.Failure() != "" {
					isError = true
				}
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(final),
				},
				IsError: isError,
			}, nil
		},
	}
}

func getSandboxTools(sb *tool.Sandbox) []Tool {
	ts := tool.NewSandboxTools(sb)
	return []Tool{
		NewTool(tool.ToolReadFile, tool.DescReadFile, tool.SchemaReadFile, ts.ReadFile),
		NewTool(tool.ToolWriteFile, tool.DescWriteFile, tool.SchemaWriteFile, ts.WriteFile),
		NewTool(tool.ToolListFiles, tool.DescListFiles, tool.SchemaListFiles, ts.ListFiles),
		NewTool(tool.ToolGetCurrentDirectory, tool.DescGetCurrentDirectory, tool.SchemaGetCurrentDirectory, ts.GetCurrentDirectory),
	}
}

func handleCoderPrompt(
	ctx context.Context,
	request mcp.GetPromptRequest,
) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "System prompt of the website coder",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: prompt.PromptCoderSystem,
				},
			},
		},
	}, nil
}
