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

package structured

import (
	"context"
	"errors"

	"github.com/cloudwego/arcbuilder/llm"
	"github.com/cloudwego/arcbuilder/llm/log"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Coerce sends instruction to m once and parses the answer into T. There is
// no retry: a response that does not satisfy s fails with
// *StructuredOutputError, a failed round trip with *llm.ModelError.
func Coerce[T any](ctx context.Context, m model.BaseChatModel, instruction string, s *Schema[T]) (*T, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(s.Instruction()),
		schema.UserMessage(instruction),
	}
	log.Debug("[coerce] %s request: %s", s.Name, instruction)
	resp, err := m.Generate(ctx, msgs)
	if err != nil {
		return nil, &llm.ModelError{Op: "generate " + s.Name, Err: err}
	}
	if resp == nil {
		return nil, &StructuredOutputError{Schema: s.Name, Cause: errors.New("nil message")}
	}
	log.Debug("[coerce] %s response: %s", s.Name, resp.Content)
	return s.Parse(resp.Content)
}
