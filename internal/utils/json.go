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

package utils

import (
	"bytes"
	"encoding/json"
)

// MarshalJSONIndent marshals v with two-space indentation and without HTML escaping.
func MarshalJSONIndent(v any) (string, error) {
	bs, err := marshal(v, "  ")
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

// MarshalJSONIndentNoError is MarshalJSONIndent for logging call sites.
func MarshalJSONIndentNoError(v any) string {
	s, err := MarshalJSONIndent(v)
	if err != nil {
		return "<marshal error: " + err.Error() + ">"
	}
	return s
}

// MarshalJSONBytes marshals v compactly without HTML escaping.
func MarshalJSONBytes(v any) ([]byte, error) {
	return marshal(v, "")
}

func marshal(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
