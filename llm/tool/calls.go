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

const (
	ToolReadFile            = "read_file"
	ToolWriteFile           = "write_file"
	ToolListFiles           = "list_files"
	ToolGetCurrentDirectory = "get_current_directory"
)

const (
	DescReadFile = "Read a file under the project root. Returns its content, or found=false with empty content " +
		"when the file does not exist."
	DescWriteFile = "Write the full content of a file under the project root, creating parent directories as " +
		"needed. Existing content is replaced."
	DescListFiles = "List files under a directory of the project root, recursively, honouring .gitignore. " +
		"Directory defaults to the project root."
	DescGetCurrentDirectory = "Return the absolute path of the project root all other tools are scoped to."
)

// Call is one sandboxed file operation requested by the model. The set of
// implementations is closed: ReadFileCall, WriteFileCall, ListFilesCall and
// GetRootCall.
type Call interface {
	ToolName() string
	sealed()
}

type ReadFileCall struct {
	Path string `json:"path" jsonschema:"description=file path relative to the project root"`
}

type WriteFileCall struct {
	Path    string `json:"path" jsonschema:"description=file path relative to the project root"`
	Content string `json:"content" jsonschema:"description=the complete new content of the file"`
}

type ListFilesCall struct {
	Directory string `json:"directory,omitempty" jsonschema:"description=directory relative to the project root. Default is the root itself"`
}

type GetRootCall struct{}

func (ReadFileCall) ToolName() string  { return ToolReadFile }
func (WriteFileCall) ToolName() string { return ToolWriteFile }
func (ListFilesCall) ToolName() string { return ToolListFiles }
func (GetRootCall) ToolName() string   { return ToolGetCurrentDirectory }

func (ReadFileCall) sealed()  {}
func (WriteFileCall) sealed() {}
func (ListFilesCall) sealed() {}
func (GetRootCall) sealed()   {}

// Result is the typed payload of a successful Call. Failures are reported
// through the Error field so the model can react to them.
type Result interface {
	Failure() string
}

type ReadFileResult struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Found   bool   `json:"found"`
	Error   string `json:"error,omitempty"`
}

type WriteFileResult struct {
	Path      string `json:"path"`
	Success   bool   `json:"success"`
	Created   bool   `json:"created,omitempty"`
	Bytes     int    `json:"bytes"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Error     string `json:"error,omitempty"`
}

type ListFilesResult struct {
	Directory string   `json:"directory"`
	Entries   []string `json:"entries"`
	Error     string   `json:"error,omitempty"`
}

type GetRootResult struct {
	Root  string `json:"root"`
	Error string `json:"error,omitempty"`
}

func (r *ReadFileResult) Failure() string  { return r.Error }
func (r *WriteFileResult) Failure() string { return r.Error }
func (r *ListFilesResult) Failure() string { return r.Error }
func (r *GetRootResult) Failure() string   { return r.Error }
