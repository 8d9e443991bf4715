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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloudwego/arcbuilder/internal/utils"
	"github.com/cloudwego/arcbuilder/llm/log"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sergi/go-diff/diffmatchpatch"
)

var (
	// ErrOutsideRoot is returned for paths that resolve outside the sandbox root.
	ErrOutsideRoot = errors.New("path escapes the project root")
	ErrEmptyPath   = errors.New("empty file path")
	ErrIsDirectory = errors.New("path is a directory")
)

// maxListEntries bounds list_files output fed back to the model.
const maxListEntries = 500

// Sandbox executes file operations confined to a single project root. Each
// concurrent run needs its own root.
type Sandbox struct {
	root string
}

// NewSandbox creates root if needed and pins it to its absolute, symlink-free
// form.
func NewSandbox(root string) (*Sandbox, error) {
	if root == "" {
		return nil, ErrEmptyPath
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, utils.WrapError(err, "create project root %s", root)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, utils.WrapError(err, "absolute project root")
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, utils.WrapError(err, "resolve project root")
	}
	return &Sandbox{root: resolved}, nil
}

func (s *Sandbox) Root() string {
	return s.root
}

// Resolve maps a model-supplied path onto an absolute path inside the root.
// Relative paths are joined to the root; absolute paths are accepted only if
// they already point inside it. Symlinks of existing ancestors are followed
// before the containment check.
func (s *Sandbox) Resolve(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ErrEmptyPath
	}
	var abs string
	if filepath.IsAbs(p) {
		abs = filepath.Clean(p)
	} else {
		abs = filepath.Join(s.root, p)
	}
	if !s.contains(abs) {
		return "", fmt.Errorf("%s: %w", p, ErrOutsideRoot)
	}
	resolved, err := evalExisting(abs)
	if err != nil {
		return "", utils.WrapError(err, "resolve %s", p)
	}
	if !s.contains(resolved) {
		return "", fmt.Errorf("%s: %w", p, ErrOutsideRoot)
	}
	return resolved, nil
}

// Rel returns abs relative to the root in slash form.
func (s *Sandbox) Rel(abs string) string {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

func (s *Sandbox) contains(abs string) bool {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// evalExisting resolves symlinks of the longest existing prefix of p and
// re-appends the missing tail, so paths of files yet to be written resolve too.
func evalExisting(p string) (string, error) {
	var tail []string
	cur := p
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}

// Execute runs one call. Every failure is folded into the result's Error
// field; Execute itself never fails. When ctx carries a Journal the call is
// recorded there.
func (s *Sandbox) Execute(ctx context.Context, call Call) Result {
	var res Result
	switch c := call.(type) {
	case ReadFileCall:
		res = s.readFile(c)
	case WriteFileCall:
		res = s.writeFile(c)
	case ListFilesCall:
		res = s.listFiles(c)
	case GetRootCall:
		res = &GetRootResult{Root: s.root}
	default:
		panic(fmt.Sprintf("unknown tool call %T", call))
	}
	if msg := res.Failure(); msg != "" {
		log.Debug("[tool] %s failed: %s", call.ToolName(), msg)
	}
	JournalFrom(ctx).Record(call, res)
	return res
}

// ReadFile is a convenience wrapper around Execute for host code.
func (s *Sandbox) ReadFile(ctx context.Context, path string) *ReadFileResult {
	return s.Execute(ctx, ReadFileCall{Path: path}).(*ReadFileResult)
}

func (s *Sandbox) readFile(c ReadFileCall) *ReadFileResult {
	res := &ReadFileResult{Path: c.Path}
	abs, err := s.Resolve(c.Path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	bs, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return res
	}
	if err != nil {
		if fi, serr := os.Stat(abs); serr == nil && fi.IsDir() {
			err = ErrIsDirectory
		}
		res.Error = fmt.Sprintf("read %s: %v", c.Path, err)
		return res
	}
	res.Found = true
	res.Content = string(bs)
	return res
}

func (s *Sandbox) writeFile(c WriteFileCall) *WriteFileResult {
	res := &WriteFileResult{Path: c.Path}
	abs, err := s.Resolve(c.Path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if abs == s.root {
		res.Error = fmt.Sprintf("write %s: %v", c.Path, ErrIsDirectory)
		return res
	}
	old, err := os.ReadFile(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		res.Created = true
	case err != nil:
		res.Error = fmt.Sprintf("write %s: %v", c.Path, err)
		return res
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		res.Error = fmt.Sprintf("create parent of %s: %v", c.Path, err)
		return res
	}
	if err := os.WriteFile(abs, []byte(c.Content), 0o644); err != nil {
		res.Error = fmt.Sprintf("write %s: %v", c.Path, err)
		return res
	}
	res.Success = true
	res.Bytes = len(c.Content)
	res.Additions, res.Deletions = diffStats(string(old), c.Content)
	log.Info("[tool] wrote %s (%d bytes, +%d -%d)", s.Rel(abs), res.Bytes, res.Additions, res.Deletions)
	return res
}

// diffStats counts inserted and deleted characters between two revisions.
func diffStats(before, after string) (additions, deletions int) {
	dmp := diffmatchpatch.New()
	for _, d := range dmp.DiffMain(before, after, false) {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += len(d.Text)
		}
	}
	return
}

func (s *Sandbox) listFiles(c ListFilesCall) *ListFilesResult {
	dir := c.Directory
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	res := &ListFilesResult{Directory: dir, Entries: []string{}}
	abs, err := s.Resolve(dir)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	fi, err := os.Stat(abs)
	if err != nil {
		res.Error = fmt.Sprintf("list %s: %v", dir, err)
		return res
	}
	if !fi.IsDir() {
		res.Error = fmt.Sprintf("list %s: not a directory", dir)
		return res
	}

	ign := s.ignoreRules()
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := s.Rel(p)
		if p == abs {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if ign != nil && ign.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if len(res.Entries) >= maxListEntries {
			return filepath.SkipAll
		}
		res.Entries = append(res.Entries, rel)
		return nil
	})
	if err != nil {
		res.Error = fmt.Sprintf("list %s: %v", dir, err)
		return res
	}
	sort.Strings(res.Entries)
	return res
}

func (s *Sandbox) ignoreRules() *ignore.GitIgnore {
	ign, err := ignore.CompileIgnoreFile(filepath.Join(s.root, ".gitignore"))
	if err != nil {
		return nil
	}
	return ign
}
