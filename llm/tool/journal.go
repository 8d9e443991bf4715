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
	"sync"

	"github.com/cloudwego/arcbuilder/internal/utils"
)

// CallRecord is one executed tool call and its outcome.
type CallRecord struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
	Error     string `json:"error,omitempty"`
}

// Journal collects the tool calls of one coder step. It is dropped when the
// step ends; only its summary survives.
type Journal struct {
	mu      sync.Mutex
	records []CallRecord
}

type journalKey struct{}

// WithJournal attaches j to ctx so that Sandbox.Execute and the unknown tool
// handler record into it.
func WithJournal(ctx context.Context, j *Journal) context.Context {
	return context.WithValue(ctx, journalKey{}, j)
}

// JournalFrom returns the journal carried by ctx, or nil. A nil journal
// ignores records.
func JournalFrom(ctx context.Context) *Journal {
	j, _ := ctx.Value(journalKey{}).(*Journal)
	return j
}

// Record appends a call and its result.
func (j *Journal) Record(call Call, res Result) {
	if j == nil {
		return
	}
	args, _ := utils.MarshalJSONBytes(call)
	out, _ := utils.MarshalJSONBytes(res)
	j.append(CallRecord{
		Name:      call.ToolName(),
		Arguments: string(args),
		Result:    string(out),
		Error:     res.Failure(),
	})
}

// RecordFailure appends a call that never reached the sandbox, such as an
// unknown tool or undecodable arguments.
func (j *Journal) RecordFailure(name, args, msg string) {
	if j == nil {
		return
	}
	j.append(CallRecord{Name: name, Arguments: args, Error: msg})
}

func (j *Journal) append(r CallRecord) {
	j.mu.Lock()
	j.records = append(j.records, r)
	j.mu.Unlock()
}

// Records returns a copy of the recorded calls.
func (j *Journal) Records() []CallRecord {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]CallRecord(nil), j.records...)
}

// Summary returns the total number of calls and how many failed.
func (j *Journal) Summary() (total, failed int) {
	for _, r := range j.Records() {
		total++
		if r.Error != "" {
			failed++
		}
	}
	return
}
