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
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/cloudwego/arcbuilder/internal/utils"
	"github.com/invopop/jsonschema"
)

// Schema describes the record a Coerce call must produce. The JSON Schema of
// T is shown to the model; the CUE source is what the response is validated
// against before decoding.
type Schema[T any] struct {
	Name string
	// CUE constrains the decoded JSON object. Structs must stay open so that
	// unknown fields are tolerated.
	CUE string
	// Strip lists top-level keys dropped before decoding into T.
	Strip []string
	// Normalize runs on the decoded value, e.g. to deduplicate sets.
	Normalize func(*T)

	jsonSchema string
}

// NewSchema checks that cueSrc compiles and reflects the JSON Schema of T.
func NewSchema[T any](name, cueSrc string) (*Schema[T], error) {
	if v := cuecontext.New().CompileString(cueSrc, cue.Filename(name+".cue")); v.Err() != nil {
		return nil, utils.WrapError(v.Err(), "compile schema %s", name)
	}
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	js := r.Reflect(new(T))
	js.Version = ""
	bs, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		return nil, utils.WrapError(err, "json schema %s", name)
	}
	return &Schema[T]{Name: name, CUE: cueSrc, jsonSchema: string(bs)}, nil
}

// MustSchema is NewSchema for package-level schema variables.
func MustSchema[T any](name, cueSrc string) *Schema[T] {
	s, err := NewSchema[T](name, cueSrc)
	if err != nil {
		panic(err)
	}
	return s
}

// JSONSchema returns the indented JSON Schema of T.
func (s *Schema[T]) JSONSchema() string {
	return s.jsonSchema
}

// Instruction tells the model how to shape its answer.
func (s *Schema[T]) Instruction() string {
	var sb strings.Builder
	sb.WriteString("Respond with exactly one JSON object and nothing else. ")
	sb.WriteString("Do not wrap it in markdown. The object must conform to this JSON Schema:\n")
	sb.WriteString(s.jsonSchema)
	return sb.String()
}

// Parse coerces a raw model response into T.
func (s *Schema[T]) Parse(raw string) (*T, error) {
	fail := func(err error) (*T, error) {
		return nil, &StructuredOutputError{Schema: s.Name, Raw: raw, Cause: err}
	}

	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return fail(err)
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return fail(utils.WrapError(err, "decode JSON"))
	}
	for _, k := range s.Strip {
		delete(fields, k)
	}
	if err := s.validate(fields); err != nil {
		return fail(err)
	}

	clean, err := json.Marshal(fields)
	if err != nil {
		return fail(err)
	}
	out := new(T)
	if err := json.Unmarshal(clean, out); err != nil {
		return fail(utils.WrapError(err, "decode %s", s.Name))
	}
	if s.Normalize != nil {
		s.Normalize(out)
	}
	return out, nil
}

func (s *Schema[T]) validate(fields map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(s.CUE, cue.Filename(s.Name+".cue"))
	if err := schema.Err(); err != nil {
		return utils.WrapError(err, "compile schema %s", s.Name)
	}
	value := ctx.Encode(fields)
	if err := value.Err(); err != nil {
		return utils.WrapError(err, "encode response")
	}
	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validate %s: %w", s.Name, err)
	}
	return nil
}
