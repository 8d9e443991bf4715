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

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/cloudwego/arcbuilder/internal/config"
	"github.com/cloudwego/arcbuilder/internal/metrics"
	"github.com/cloudwego/arcbuilder/internal/pipeline"
	"github.com/cloudwego/arcbuilder/internal/utils"
	"github.com/cloudwego/arcbuilder/llm"
	"github.com/cloudwego/arcbuilder/llm/log"
	"github.com/cloudwego/arcbuilder/llm/prompt"
	"github.com/cloudwego/arcbuilder/llm/tool"
	"github.com/google/uuid"
)

const reportFile = "arcbuilder-report.json"

// buildOverrides are command-line values that win over the config file.
type buildOverrides struct {
	RecursionLimit    int
	CoderMaxSteps     int
	StructuredRetries int
	PromptsDir        string
}

func (o buildOverrides) apply(cfg *config.Config) {
	if o.RecursionLimit != 0 {
		cfg.Pipeline.RecursionLimit = o.RecursionLimit
	}
	if o.CoderMaxSteps != 0 {
		cfg.Coder.MaxSteps = o.CoderMaxSteps
	}
	if o.StructuredRetries >= 0 {
		cfg.Pipeline.StructuredRetries = o.StructuredRetries
	}
	if o.PromptsDir != "" {
		cfg.PromptsDir = o.PromptsDir
	}
}

// Report is written into the project root after every run.
type Report struct {
	RunID        string                `json:"run_id"`
	Root         string                `json:"root"`
	Prompt       string                `json:"prompt"`
	Status       string                `json:"status"`
	FailedStage  string                `json:"failed_stage,omitempty"`
	Error        string                `json:"error,omitempty"`
	Plan         *pipeline.Plan        `json:"plan,omitempty"`
	TaskPlan     *pipeline.TaskPlan    `json:"task_plan,omitempty"`
	Coder        *pipeline.CoderState  `json:"coder_state,omitempty"`
	Snapshots    []*pipeline.Snapshot  `json:"snapshots,omitempty"`
	PlanVerified bool                  `json:"plan_verified"`
	History      []pipeline.StepRecord `json:"history"`
	Files        []string              `json:"files"`
	StartedAt    time.Time             `json:"started_at"`
	Duration     string                `json:"duration"`
}

func runBuild(ctx context.Context, cfg *config.Config, userPrompt, outDir string) error {
	if err := log.Setup(cfg.Log); err != nil {
		return err
	}
	defer log.Close()
	if err := cfg.Validate(); err != nil {
		return err
	}

	runID := uuid.NewString()
	if outDir == "" {
		outDir = "generated_project_" + runID
	}
	sb, err := tool.NewSandbox(outDir)
	if err != nil {
		return err
	}
	log.Info("run %s writes into %s", runID, sb.Root())

	cm, err := llm.NewChatModel(ctx, cfg.ModelConfig())
	if err != nil {
		return err
	}
	prompts, err := prompt.LoadDir(cfg.PromptsDir)
	if err != nil {
		return err
	}
	extra, clients, err := tool.LoadMCPTools(ctx, cfg.Coder.MCPServers)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range clients {
			_ = c.Close()
		}
	}()

	recorder := metrics.NewRecorder()
	builder, err := pipeline.New(ctx, pipeline.Options{
		Model:         cm,
		Sandbox:       sb,
		Prompts:       prompts,
		CoderMaxSteps: cfg.Coder.MaxSteps,
		ExtraTools:    extra,
		Observer:      recorder,
		Verbose:       cfg.Verbose,
	})
	if err != nil {
		return err
	}

	stopWatch, err := utils.WatchDir(sb.Root(), func(ev utils.FileEvent) {
		verb := "updated"
		if ev.Created {
			verb = "created"
		}
		log.Info("%s %s", verb, sb.Rel(ev.Path))
	})
	if err != nil {
		log.Warn("file watcher disabled: %v", err)
		stopWatch = func() {}
	}

	start := time.Now()
	st, runErr := builder.Invoke(ctx, pipeline.RunInput{UserPrompt: userPrompt, RunID: runID}, pipeline.RunConfig{
		RecursionLimit:    cfg.Pipeline.RecursionLimit,
		StructuredRetries: cfg.Pipeline.StructuredRetries,
	})
	stopWatch()

	report := newReport(ctx, sb, userPrompt, st, runErr)
	report.StartedAt = start
	report.Duration = time.Since(start).Round(time.Millisecond).String()
	recorder.ObserveRun(report.outcome())

	if err := writeReport(filepath.Join(sb.Root(), reportFile), report); err != nil {
		log.Error("Failed to write report: %v", err)
	}
	if cfg.MetricsFile != "" {
		if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Error("Failed to write metrics: %v", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	log.Info("run %s done: %d files in %s", runID, len(report.Files), sb.Root())
	return nil
}

func newReport(ctx context.Context, sb *tool.Sandbox, userPrompt string, st *pipeline.RunState, runErr error) *Report {
	r := &Report{Root: sb.Root(), Prompt: userPrompt, Status: "FAILED"}
	if st != nil {
		r.RunID = st.RunID
		r.Plan = st.Plan
		r.TaskPlan = st.TaskPlan
		r.Coder = st.Coder
		r.History = st.History
		if st.Status == pipeline.StatusDone {
			r.Status = string(st.Status)
		}
		for _, s := range []*pipeline.Snapshot{st.PlanSnapshot, st.TaskPlanSnapshot} {
			if s != nil {
				r.Snapshots = append(r.Snapshots, s)
			}
		}
		if st.TaskPlan != nil {
			r.PlanVerified = st.PlanSnapshot.Verify(st.TaskPlan.Plan)
		}
	}
	if runErr != nil {
		r.Error = runErr.Error()
		var se *pipeline.StageError
		if errors.As(runErr, &se) {
			r.FailedStage = se.Stage
		}
	}
	if res, ok := sb.Execute(ctx, tool.ListFilesCall{Directory: "."}).(*tool.ListFilesResult); ok {
		if res.Error != "" {
			log.Warn("list generated files: %s", res.Error)
		}
		for _, f := range res.Entries {
			if f != reportFile {
				r.Files = append(r.Files, f)
			}
		}
	}
	return r
}

func (r *Report) outcome() string {
	if r.FailedStage != "" {
		return "failed_" + r.FailedStage
	}
	if r.Error != "" {
		return "failed"
	}
	return "done"
}

func writeReport(path string, r *Report) error {
	out, err := utils.MarshalJSONIndent(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(out), 0o644)
}
