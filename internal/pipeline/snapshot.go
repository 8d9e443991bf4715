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
	"crypto/sha256"
	"encoding/hex"

	"github.com/cloudwego/arcbuilder/internal/utils"
)

const (
	SnapshotPlan     = "plan"
	SnapshotTaskPlan = "task-plan"
)

// Snapshot fingerprints an intermediate artifact so that hosts can check
// it was not modified later in the run.
type Snapshot struct {
	Kind    string `json:"kind"`
	Hash    string `json:"hash"` // hex-encoded sha256 of the JSON form
	Payload any    `json:"-"`
}

// NewSnapshot creates a snapshot from a payload and its serialized form.
func NewSnapshot(kind string, payload any, raw []byte) *Snapshot {
	h := sha256.Sum256(raw)
	return &Snapshot{
		Kind:    kind,
		Hash:    hex.EncodeToString(h[:]),
		Payload: payload,
	}
}

// TakeSnapshot serializes payload to JSON and snapshots it.
func TakeSnapshot(kind string, payload any) (*Snapshot, error) {
	raw, err := utils.MarshalJSONBytes(payload)
	if err != nil {
		return nil, utils.WrapError(err, "snapshot %s", kind)
	}
	return NewSnapshot(kind, payload, raw), nil
}

// Verify reports whether payload still serializes to the snapshot's hash.
func (s *Snapshot) Verify(payload any) bool {
	if s == nil {
		return false
	}
	cur, err := TakeSnapshot(s.Kind, payload)
	return err == nil && cur.Hash == s.Hash
}
