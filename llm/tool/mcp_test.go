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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMCPClientValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  MCPConfig
		want string
	}{
		{name: "stdio without command", cfg: MCPConfig{Type: MCPTypeStdio}, want: "command is empty"},
		{name: "sse without url", cfg: MCPConfig{Type: MCPTypeSSE}, want: "sse url is empty"},
		{name: "unknown type", cfg: MCPConfig{Type: "grpc"}, want: "unsupported mcp type grpc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMCPClient(tt.cfg)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestLoadMCPTools(t *testing.T) {
	tools, clients, err := LoadMCPTools(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, tools)
	assert.Empty(t, clients)

	_, _, err = LoadMCPTools(context.Background(), []MCPConfig{{Name: "broken", Type: MCPTypeSSE}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mcp server broken")
}
