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

package log

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{" WARN ", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestSetupLevels(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(Options{Level: InfoLevel, Writer: &buf}))
	defer SetLogLevel(InfoLevel)

	Debug("hidden %d", 1)
	Info("stage %s done\n", "planner")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "stage planner done")

	SetLogLevel(DebugLevel)
	assert.Equal(t, DebugLevel, GetLogLevel())
	Debug("visible %d", 2)
	assert.Contains(t, buf.String(), "visible 2")
}

func TestSetupFile(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "arcbuilder.log")
	require.NoError(t, Setup(Options{Level: WarnLevel, Writer: &buf, File: file}))
	defer func() {
		require.NoError(t, Close())
		SetLogLevel(InfoLevel)
	}()

	Warn("tool %s failed", "write_file")
	Error("run aborted")

	bs, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(bs), "tool write_file failed")
	assert.Contains(t, string(bs), "run aborted")
	assert.Contains(t, buf.String(), "run aborted")
}
