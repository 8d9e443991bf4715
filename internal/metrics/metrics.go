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

// Package metrics records pipeline, model and tool metrics with Prometheus.
package metrics

import (
	"time"

	"github.com/cloudwego/arcbuilder/internal/utils"
	"github.com/cloudwego/arcbuilder/llm/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "arcbuilder"

// Recorder owns a private registry so several runs in one process never
// collide on the default one.
type Recorder struct {
	registry *prometheus.Registry
	tokens   *utils.TokenCounter

	stageVisits     *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	tokensTotal     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	toolCalls       *prometheus.CounterVec
	promptTokens    *prometheus.HistogramVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	tc, err := utils.NewTokenCounter()
	if err != nil {
		log.Warn("token counter unavailable, estimating by length: %v", err)
	}
	return &Recorder{
		registry: reg,
		tokens:   tc,
		stageVisits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_visits_total",
				Help:      "Total number of stage visits by stage",
			},
			[]string{"stage"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_requests_total",
				Help:      "Total number of model requests by stage and status",
			},
			[]string{"stage", "status"},
		),
		tokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_tokens_total",
				Help:      "Total number of tokens reported by the model",
			},
			[]string{"stage", "type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_request_duration_seconds",
				Help:      "Duration of model requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Total number of tool calls by tool and status",
			},
			[]string{"stage", "tool", "status"},
		),
		promptTokens: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "prompt_tokens",
				Help:      "Estimated tokens of rendered stage prompts",
				Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
			},
			[]string{"stage"},
		),
	}
}

// Registry exposes the underlying registry, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveStageVisit(stage string) {
	r.stageVisits.WithLabelValues(stage).Inc()
}

// ObservePrompt estimates the token count of a rendered prompt.
func (r *Recorder) ObservePrompt(stage, prompt string) {
	r.promptTokens.WithLabelValues(stage).Observe(float64(r.tokens.Count(prompt)))
}

// ObserveRun records the outcome of one Invoke: "done" or the failing stage.
func (r *Recorder) ObserveRun(outcome string) {
	r.runsTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ObserveModelCall(stage string, latency time.Duration, promptTokens, completionTokens int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.requestsTotal.WithLabelValues(stage, status).Inc()
	if err == nil {
		r.tokensTotal.WithLabelValues(stage, "prompt").Add(float64(promptTokens))
		r.tokensTotal.WithLabelValues(stage, "completion").Add(float64(completionTokens))
	}
	r.requestDuration.WithLabelValues(stage).Observe(latency.Seconds())
}

func (r *Recorder) ObserveToolCall(stage, tool string, failed bool) {
	status := "success"
	if failed {
		status = "error"
	}
	r.toolCalls.WithLabelValues(stage, tool, status).Inc()
}

// WriteTextfile dumps all metrics in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return utils.WrapError(err, "write metrics to %s", path)
	}
	return nil
}
