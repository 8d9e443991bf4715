// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloudwego/arcbuilder/llm"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ llm.Observer = (*Recorder)(nil)

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	r.ObserveStageVisit("coder")
	r.ObserveStageVisit("coder")
	r.ObserveStageVisit("planner")
	assert.Equal(t, 2.0, testutil.ToFloat64(r.stageVisits.WithLabelValues("coder")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stageVisits.WithLabelValues("planner")))

	r.ObserveModelCall("planner", 20*time.Millisecond, 100, 40, nil)
	r.ObserveModelCall("planner", time.Millisecond, 0, 0, errors.New("timeout"))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requestsTotal.WithLabelValues("planner", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.requestsTotal.WithLabelValues("planner", "error")))
	assert.Equal(t, 100.0, testutil.ToFloat64(r.tokensTotal.WithLabelValues("planner", "prompt")))
	assert.Equal(t, 40.0, testutil.ToFloat64(r.tokensTotal.WithLabelValues("planner", "completion")))

	r.ObserveToolCall("coder", "write_file", false)
	r.ObserveToolCall("coder", "read_file", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.toolCalls.WithLabelValues("coder", "write_file", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.toolCalls.WithLabelValues("coder", "read_file", "error")))

	r.ObserveRun("done")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("done")))

	r.ObservePrompt("planner", "Create a plan for the following user prompt: build a hello world page")
	assert.Equal(t, 1, testutil.CollectAndCount(r.promptTokens))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveStageVisit("architect")

	path := filepath.Join(t.TempDir(), "arcbuilder.prom")
	require.NoError(t, r.WriteTextfile(path))
	bs, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(bs), `arcbuilder_stage_visits_total{stage="architect"} 1`)

	err = r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom"))
	assert.Error(t, err)
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	a.ObserveRun("done")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.runsTotal.WithLabelValues("done")))
}
