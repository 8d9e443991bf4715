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
	"github.com/cloudwego/arcbuilder/llm/log"
	"github.com/cloudwego/arcbuilder/llm/tool"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const PromptWebsiteCoder = "website_coder"

type ServerOptions struct {
	ServerName    string
	ServerVersion string
	Verbose       bool
	// Root is the project directory the tools are confined to.
	Root string
}

// Server exposes the sandbox tools of one project root over MCP.
type Server struct {
	*server.MCPServer
	Sandbox *tool.Sandbox
}

func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Verbose {
		log.SetLogLevel(log.DebugLevel)
	}
	sb, err := tool.NewSandbox(opts.Root)
	if err != nil {
		return nil, err
	}

	svr := server.NewMCPServer(
		opts.ServerName,
		opts.ServerVersion,
		server.WithToolCapabilities(true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
	)
	for _, t := range getSandboxTools(sb) {
		svr.AddTool(t.Tool, t.Handler)
	}
	svr.AddPrompt(mcp.NewPrompt(PromptWebsiteCoder,
		mcp.WithPromptDescription("System prompt of the website coder"),
	), handleCoderPrompt)

	log.Info("MCP server %s %s serving %s", opts.ServerName, opts.ServerVersion, sb.Root())
	return &Server{MCPServer: svr, Sandbox: sb}, nil
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer)
}
