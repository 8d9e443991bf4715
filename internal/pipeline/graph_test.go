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

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/arcbuilder/llm"
	"github.com/cloudwego/arcbuilder/llm/llmtest"
	"github.com/cloudwego/arcbuilder/llm/structured"
	"github.com/cloudwego/arcbuilder/llm/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const helloPage = `<!DOCTYPE html>
<html>
<head><title>Hello</title></head>
<body><h1>Hello World</h1></body>
</html>
`

var fileLine = regexp.MustCompile(`(?m)^File: (\S+)$`)

// site scripts a model that plans the given files, asks for one step per
// file and writes each file with a single write_file call.
type site struct {
	plan      string
	taskPlan  string
	contents  map[string]string
	plannerFn func(call int) (*schema.Message, error)
	coderFn   func(in []*schema.Message) (*schema.Message, error)
}

func (s *site) model() *llmtest.ScriptedModel {
	return &llmtest.ScriptedModel{Respond: func(call int, in []*schema.Message) (*schema.Message, error) {
		user := llmtest.LastUser(in)
		switch {
		case strings.HasPrefix(user, "Create a plan"):
			if s.plannerFn != nil {
				return s.plannerFn(call)
			}
			return llmtest.Text(s.plan), nil
		case strings.HasPrefix(user, "Create a task plan"):
			return llmtest.Text(s.taskPlan), nil
		case strings.HasPrefix(user, "Task: "):
			if s.coderFn != nil {
				return s.coderFn(in)
			}
			if len(llmtest.ToolResults(in)) > 0 {
				return llmtest.Text("saved"), nil
			}
			m := fileLine.FindStringSubmatch(user)
			if m == nil {
				return nil, errors.New("no file in task")
			}
			args, _ := json.Marshal(map[string]string{"path": m[1], "content": s.contents[m[1]]})
			return llmtest.ToolCalls(llmtest.Call("call-"+m[1], tool.ToolWriteFile, string(args))), nil
		}
		return nil, errors.New("unexpected input:\n" + llmtest.Describe(in))
	}}
}

func helloSite() *site {
	return &site{
		plan: `Here is the plan:
{"name":"Hello World","description":"A page that says hello","tech_stack":["html","html"],"features":["greeting"],
 "files":[{"path":"index.html","purpose":"the page"}]}`,
		taskPlan: "```json\n" + `{"implementation_steps":[{"filepath":"index.html","task_description":"Write a page with an h1 saying Hello World"}],
 "plan":{"name":"Something else","description":"","files":[]}}` + "\n```",
		contents: map[string]string{"index.html": helloPage},
	}
}

func threeFileSite() *site {
	return &site{
		plan: `{"name":"Todo","description":"todo list","files":[{"path":"index.html","purpose":"page"},
{"path":"style.css","purpose":"styles"},{"path":"app.js","purpose":"logic"}]}`,
		taskPlan: `{"implementation_steps":[{"filepath":"index.html","task_description":"markup"},
{"filepath":"style.css","task_description":"styles"},{"filepath":"app.js","task_description":"logic"}]}`,
		contents: map[string]string{
			"index.html": helloPage,
			"style.css":  "h1 { color: red; }\n",
			"app.js":     "console.log('hi');\n",
		},
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	visits  []string
	prompts map[string]int
	tools   []string
}

func (o *recordingObserver) ObserveStageVisit(stage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.visits = append(o.visits, stage)
}

func (o *recordingObserver) ObservePrompt(stage, prompt string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.prompts == nil {
		o.prompts = map[string]int{}
	}
	o.prompts[stage]++
}

func (o *recordingObserver) ObserveModelCall(stage string, latency time.Duration, promptTokens, completionTokens int, err error) {
}

func (o *recordingObserver) ObserveToolCall(stage, tool string, failed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tools = append(o.tools, tool)
}

func newBuilder(t *testing.T, m llm.ChatModel, obs Observer) (*Builder, *tool.Sandbox) {
	sb, err := tool.NewSandbox(filepath.Join(t.TempDir(), "generated_project"))
	require.NoError(t, err)
	b, err := New(context.Background(), Options{Model: m, Sandbox: sb, Observer: obs})
	require.NoError(t, err)
	return b, sb
}

func findText(n *html.Node, tag string) string {
	if n.Type == html.ElementNode && n.Data == tag && n.FirstChild != nil {
		return n.FirstChild.Data
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if s := findText(c, tag); s != "" {
			return s
		}
	}
	return ""
}

func TestInvoke_HelloWorld(t *testing.T) {
	obs := &recordingObserver{}
	b, sb := newBuilder(t, helloSite().model(), obs)

	st, err := b.Invoke(context.Background(), RunInput{UserPrompt: "Build a simple Hello World website"}, RunConfig{RecursionLimit: 100})
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.NotEmpty(t, st.RunID)

	assert.Equal(t, StatusDone, st.Status)
	require.NotNil(t, st.Plan)
	assert.Equal(t, "Hello World", st.Plan.Name)
	assert.Equal(t, []string{"html"}, st.Plan.TechStack)
	require.NotNil(t, st.TaskPlan)
	assert.Same(t, st.Plan, st.TaskPlan.Plan)
	assert.True(t, st.PlanSnapshot.Verify(st.TaskPlan.Plan))
	assert.True(t, st.TaskPlanSnapshot.Verify(st.TaskPlan))
	require.NotNil(t, st.Coder)
	assert.Equal(t, 1, st.Coder.CurrentStepIdx)
	assert.Equal(t, 4, st.Visits)
	assert.NoError(t, st.Err())

	f, err := os.Open(filepath.Join(sb.Root(), "index.html"))
	require.NoError(t, err)
	defer f.Close()
	doc, err := html.Parse(f)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", findText(doc, "h1"))

	var stages []string
	for _, r := range st.History {
		stages = append(stages, r.Stage+":"+string(r.Status))
	}
	assert.Equal(t, []string{"planner:ok", "architect:ok", "coder:ok", "coder:done"}, stages)
	assert.Equal(t, 1, st.History[2].ToolCalls)
	assert.Equal(t, 0, st.History[2].FailedToolCalls)
	assert.Equal(t, "index.html", st.History[2].Filepath)

	assert.Equal(t, []string{NodePlanner, NodeArchitect, NodeCoder, NodeCoder}, obs.visits)
	assert.Equal(t, 1, obs.prompts[NodePlanner])
	assert.Equal(t, 1, obs.prompts[NodeCoder])
}

func TestInvoke_RecursionLimitTooLow(t *testing.T) {
	b, sb := newBuilder(t, threeFileSite().model(), nil)

	st, err := b.Invoke(context.Background(), RunInput{UserPrompt: "todo app"}, RunConfig{RecursionLimit: 2})
	var rle *RecursionLimitExceeded
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 2, rle.Limit)
	assert.Equal(t, 3, rle.Visits)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, NodeCoder, se.Stage)

	require.NotNil(t, st)
	assert.NotEqual(t, StatusDone, st.Status)
	assert.NotNil(t, st.TaskPlan)
	assert.Nil(t, st.Coder)
	_, statErr := os.Stat(filepath.Join(sb.Root(), "index.html"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestInvoke_StepIndexAfterVisits(t *testing.T) {
	for limit := 3; limit <= 5; limit++ {
		b, _ := newBuilder(t, threeFileSite().model(), nil)
		st, err := b.Invoke(context.Background(), RunInput{UserPrompt: "todo app"}, RunConfig{RecursionLimit: limit})
		var rle *RecursionLimitExceeded
		require.ErrorAs(t, err, &rle)
		require.NotNil(t, st.Coder)
		assert.Equal(t, limit-2, st.Coder.CurrentStepIdx)
	}

	b, sb := newBuilder(t, threeFileSite().model(), nil)
	st, err := b.Invoke(context.Background(), RunInput{UserPrompt: "todo app"}, RunConfig{RecursionLimit: 6})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, st.Status)
	assert.Equal(t, 3, st.Coder.CurrentStepIdx)
	for _, name := range []string{"index.html", "style.css", "app.js"} {
		assert.FileExists(t, filepath.Join(sb.Root(), name))
	}
}

func TestInvoke_InvalidRecursionLimit(t *testing.T) {
	b, _ := newBuilder(t, helloSite().model(), nil)
	for _, limit := range []int{0, -1} {
		st, err := b.Invoke(context.Background(), RunInput{UserPrompt: "x"}, RunConfig{RecursionLimit: limit})
		assert.ErrorIs(t, err, ErrInvalidRecursionLimit)
		assert.Nil(t, st)
	}
}

func TestInvoke_MalformedPlan(t *testing.T) {
	s := helloSite()
	s.plan = "I would rather not answer in JSON."
	m := s.model()
	b, _ := newBuilder(t, m, nil)

	st, err := b.Invoke(context.Background(), RunInput{UserPrompt: "hello"}, RunConfig{RecursionLimit: 10})
	var soe *structured.StructuredOutputError
	require.ErrorAs(t, err, &soe)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, NodePlanner, se.Stage)
	assert.Nil(t, st.Plan)
	assert.Nil(t, st.TaskPlan)
	assert.Nil(t, st.Coder)
	assert.Len(t, m.Calls(), 1)
}

func TestInvoke_MalformedTaskPlan(t *testing.T) {
	for name, raw := range map[string]string{
		"wrong type":  `{"implementation_steps":"write everything"}`,
		"missing key": `{"steps":[{"filepath":"index.html","task_description":"write"}]}`,
		"only plan":   `{"plan":{"name":"hello"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			s := helloSite()
			s.taskPlan = raw
			b, sb := newBuilder(t, s.model(), nil)

			st, err := b.Invoke(context.Background(), RunInput{UserPrompt: "hello"}, RunConfig{RecursionLimit: 10})
			var soe *structured.StructuredOutputError
			require.ErrorAs(t, err, &soe)
			assert.Equal(t, "TaskPlan", soe.Schema)
			assert.NotNil(t, st.Plan)
			assert.Nil(t, st.TaskPlan)
			assert.Nil(t, st.Coder)
			assert.NotEqual(t, StatusDone, st.Status)
			assert.NoFileExists(t, filepath.Join(sb.Root(), "index.html"))
		})
	}
}

func TestInvoke_StructuredRetries(t *testing.T) {
	s := helloSite()
	attempts := 0
	s.plannerFn = func(call int) (*schema.Message, error) {
		attempts++
		if attempts == 1 {
			return llmtest.Text("no"), nil
		}
		return llmtest.Text(helloSite().plan), nil
	}
	b, _ := newBuilder(t, s.model(), nil)

	st, err := b.Invoke(context.Background(), RunInput{UserPrompt: "hello"}, RunConfig{RecursionLimit: 10, StructuredRetries: 1})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, st.Status)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, StepRetry, st.History[0].Status)
	assert.Equal(t, StepOK, st.History[1].Status)
	assert.Equal(t, 1, st.History[1].Visit)
}

func TestInvoke_ModelErrorIsFatal(t *testing.T) {
	s := helloSite()
	s.plannerFn = func(call int) (*schema.Message, error) {
		return nil, errors.New("503 service unavailable")
	}
	m := s.model()
	b, _ := newBuilder(t, m, nil)

	st, err := b.Invoke(context.Background(), RunInput{UserPrompt: "hello"}, RunConfig{RecursionLimit: 10, StructuredRetries: 3})
	var me *llm.ModelError
	require.ErrorAs(t, err, &me)
	assert.Nil(t, st.Plan)
	assert.Len(t, m.Calls(), 1)

	s = helloSite()
	s.coderFn = func(in []*schema.Message) (*schema.Message, error) {
		return nil, errors.New("connection reset")
	}
	b, _ = newBuilder(t, s.model(), nil)
	st, err = b.Invoke(context.Background(), RunInput{UserPrompt: "hello"}, RunConfig{RecursionLimit: 10})
	require.ErrorAs(t, err, &me)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, NodeCoder, se.Stage)
	assert.Equal(t, 0, st.Coder.CurrentStepIdx)
}

func TestInvoke_ToolErrorsAreNotFatal(t *testing.T) {
	s := helloSite()
	s.coderFn = func(in []*schema.Message) (*schema.Message, error) {
		switch len(llmtest.ToolResults(in)) {
		case 0:
			return llmtest.ToolCalls(llmtest.Call("c1", tool.ToolReadFile, `{"path":"../../etc/passwd"}`)), nil
		case 1:
			return llmtest.ToolCalls(llmtest.Call("c2", "delete_everything", `{}`)), nil
		case 2:
			args, _ := json.Marshal(map[string]string{"path": "index.html", "content": helloPage})
			return llmtest.ToolCalls(llmtest.Call("c3", tool.ToolWriteFile, string(args))), nil
		}
		results := llmtest.ToolResults(in)
		if !strings.Contains(results[0], "error") || !strings.Contains(results[1], "unknown tool") {
			return nil, errors.New("tool errors were not reported: " + strings.Join(results, " | "))
		}
		return llmtest.Text("done"), nil
	}
	b, sb := newBuilder(t, s.model(), nil)

	st, err := b.Invoke(context.Background(), RunInput{UserPrompt: "hello"}, RunConfig{RecursionLimit: 10})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, st.Status)
	coderRec := st.History[2]
	assert.Equal(t, StepOK, coderRec.Status)
	assert.Equal(t, 3, coderRec.ToolCalls)
	assert.Equal(t, 2, coderRec.FailedToolCalls)
	assert.FileExists(t, filepath.Join(sb.Root(), "index.html"))
}

func TestInvoke_EmptyTaskPlan(t *testing.T) {
	s := helloSite()
	s.taskPlan = `{"implementation_steps":[]}`
	b, _ := newBuilder(t, s.model(), nil)

	st, err := b.Invoke(context.Background(), RunInput{UserPrompt: "hello"}, RunConfig{RecursionLimit: 3})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, st.Status)
	assert.Equal(t, 3, st.Visits)
	assert.Equal(t, 0, st.Coder.CurrentStepIdx)
}

func TestInvoke_ReusableBuilder(t *testing.T) {
	b, _ := newBuilder(t, helloSite().model(), nil)
	first, err := b.Invoke(context.Background(), RunInput{UserPrompt: "a", RunID: "run-a"}, RunConfig{RecursionLimit: 10})
	require.NoError(t, err)
	second, err := b.Invoke(context.Background(), RunInput{UserPrompt: "b", RunID: "run-b"}, RunConfig{RecursionLimit: 10})
	require.NoError(t, err)
	assert.Equal(t, "run-a", first.RunID)
	assert.Equal(t, "run-b", second.RunID)
	assert.NotSame(t, first.Plan, second.Plan)
	assert.Equal(t, 4, second.Visits)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
	_, err = New(context.Background(), Options{Model: &llmtest.ScriptedModel{}})
	assert.Error(t, err)
}
