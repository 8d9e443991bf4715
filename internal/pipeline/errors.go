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
	"errors"
	"fmt"
)

// ErrInvalidRecursionLimit rejects a non-positive RunConfig.RecursionLimit.
var ErrInvalidRecursionLimit = errors.New("recursion limit must be positive")

// RecursionLimitExceeded is returned when a run needs more stage visits
// than its recursion limit allows.
type RecursionLimitExceeded struct {
	Limit  int
	Visits int
}

func (e *RecursionLimitExceeded) Error() string {
	return fmt.Sprintf("recursion limit of %d reached at stage visit %d without reaching DONE", e.Limit, e.Visits)
}

// StageError names the stage a run failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
