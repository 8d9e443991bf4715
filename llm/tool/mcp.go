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
	"errors"

	"github.com/cloudwego/arcbuilder/internal/utils"
	"github.com/cloudwego/arcbuilder/version"
	emcp "github.com/cloudwego/eino-ext/components/tool/mcp"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPConfig describes an external MCP server whose tools are added to the
// coder agent.
type MCPConfig struct {
	Name    string   `yaml:"name"`
	Type    MCPType  `yaml:"type"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Envs    []string `yaml:"envs"`
	SSEURL  string   `yaml:"sse_url"`
	// Tools restricts the server's tools to these names when not empty.
	Tools []string `yaml:"tools"`
}

type MCPType string

const (
	MCPTypeStdio MCPType = "stdio"
	MCPTypeSSE   MCPType = "sse"
)

type MCPClient struct {
	cfg MCPConfig
	cli *client.Client
}

func NewMCPClient(opts MCPConfig) (*MCPClient, error) {
	var cli *client.Client
	var err error
	switch opts.Type {
	case MCPTypeStdio:
		if opts.Command == "" {
			return nil, errors.New("command is empty")
		}
		// stdio clients spawn their subprocess here
		cli, err = client.NewStdioMCPClient(opts.Command, opts.Envs, opts.Args...)
	case MCPTypeSSE:
		if opts.SSEURL == "" {
			return nil, errors.New("sse url is empty")
		}
		cli, err = client.NewSSEMCPClient(opts.SSEURL)
	default:
		return nil, errors.New("unsupported mcp type " + string(opts.Type))
	}
	if err != nil {
		return nil, err
	}
	return &MCPClient{cfg: opts, cli: cli}, nil
}

func (c *MCPClient) Start(ctx context.Context) error {
	if c.cfg.Type == MCPTypeSSE {
		if err := c.cli.Start(ctx); err != nil {
			return err
		}
	}
	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "arcbuilder",
		Version: version.Version,
	}
	_, err := c.cli.Initialize(ctx, initRequest)
	return err
}

func (c *MCPClient) GetTools(ctx context.Context) ([]Tool, error) {
	mcpTools, err := emcp.GetTools(ctx, &emcp.Config{Cli: c.cli, ToolNameList: c.cfg.Tools})
	if err != nil {
		return nil, err
	}
	tools := make([]Tool, 0, len(mcpTools))
	for _, t := range mcpTools {
		tools = append(tools, t)
	}
	return tools, nil
}

func (c *MCPClient) Close() error {
	return c.cli.Close()
}

// LoadMCPTools starts every configured server and collects its tools. On
// failure the clients started so far are closed.
func LoadMCPTools(ctx context.Context, cfgs []MCPConfig) ([]Tool, []*MCPClient, error) {
	var (
		tools   []Tool
		clients []*MCPClient
	)
	closeAll := func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}
	for _, cfg := range cfgs {
		cli, err := NewMCPClient(cfg)
		if err != nil {
			closeAll()
			return nil, nil, utils.WrapError(err, "mcp server %s", cfg.Name)
		}
		clients = append(clients, cli)
		if err := cli.Start(ctx); err != nil {
			closeAll()
			return nil, nil, utils.WrapError(err, "start mcp server %s", cfg.Name)
		}
		ts, err := cli.GetTools(ctx)
		if err != nil {
			closeAll()
			return nil, nil, utils.WrapError(err, "list tools of mcp server %s", cfg.Name)
		}
		tools = append(tools, ts...)
	}
	return tools, clients, nil
}
