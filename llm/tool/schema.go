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
	"encoding/json"

	"github.com/invopop/jsonschema"
)

var (
	SchemaReadFile            = GetJSONSchema(ReadFileCall{})
	SchemaWriteFile           = GetJSONSchema(WriteFileCall{})
	SchemaListFiles           = GetJSONSchema(ListFilesCall{})
	SchemaGetCurrentDirectory = GetJSONSchema(GetRootCall{})
)

// GetJSONSchema reflects v into an inlined JSON Schema document.
func GetJSONSchema(v any) json.RawMessage {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	s := r.Reflect(v)
	s.Version = ""
	bs, err := json.Marshal(s)
	if err != nil {
		panic("marshal json schema: " + err.Error())
	}
	return bs
}
