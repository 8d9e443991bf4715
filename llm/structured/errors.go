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
	"fmt"
)

// StructuredOutputError reports a model response that could not be coerced
// into the target schema. It is fatal for the run.
type StructuredOutputError struct {
	Schema string
	// Raw is the untouched model response.
	Raw   string
	Cause error
}

func (e *StructuredOutputError) Error() string {
	return fmt.Sprintf("structured output for %s: %v", e.Schema, e.Cause)
}

func (e *StructuredOutputError) Unwrap() error {
	return e.Cause
}
