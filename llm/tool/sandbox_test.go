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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSandbox(t *testing.T) *Sandbox {
	t.Helper()
	sb, err := NewSandbox(filepath.Join(t.TempDir(), "generated_project"))
	require.NoError(t, err)
	return sb
}

func TestSandboxResolve(t *testing.T) {
	sb := newTestSandbox(t)
	outside := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr error
		want    string
	}{
		{name: "relative", path: "index.html", want: filepath.Join(sb.Root(), "index.html")},
		{name: "nested", path: "css/site/style.css", want: filepath.Join(sb.Root(), "css/site/style.css")},
		{name: "dot", path: ".", want: sb.Root()},
		{name: "inner parent", path: "css/../index.html", want: filepath.Join(sb.Root(), "index.html")},
		{name: "absolute inside", path: filepath.Join(sb.Root(), "a.js"), want: filepath.Join(sb.Root(), "a.js")},
		{name: "empty", path: "  ", wantErr: ErrEmptyPath},
		{name: "traversal", path: "../escape.txt", wantErr: ErrOutsideRoot},
		{name: "deep traversal", path: "css/../../../etc/passwd", wantErr: ErrOutsideRoot},
		{name: "absolute outside", path: filepath.Join(outside, "x.html"), wantErr: ErrOutsideRoot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sb.Resolve(tt.path)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSandboxResolveSymlinkEscape(t *testing.T) {
	sb := newTestSandbox(t)
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(sb.Root(), "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	_, err := sb.Resolve("link/secret.txt")
	assert.ErrorIs(t, err, ErrOutsideRoot)
}

func TestSandboxReadWrite(t *testing.T) {
	ctx := context.Background()
	sb := newTestSandbox(t)

	missing := sb.ReadFile(ctx, "index.html")
	assert.False(t, missing.Found)
	assert.Empty(t, missing.Content)
	assert.Empty(t, missing.Error)

	w := sb.Execute(ctx, WriteFileCall{Path: "css/style.css", Content: "h1 { color: blue; }"}).(*WriteFileResult)
	require.Empty(t, w.Error)
	assert.True(t, w.Success)
	assert.True(t, w.Created)
	assert.Equal(t, 19, w.Bytes)
	assert.Equal(t, 19, w.Additions)
	assert.Equal(t, 0, w.Deletions)

	got := sb.ReadFile(ctx, "css/style.css")
	assert.True(t, got.Found)
	assert.Equal(t, "h1 { color: blue; }", got.Content)

	w = sb.Execute(ctx, WriteFileCall{Path: "css/style.css", Content: "h1 { color: navy; }"}).(*WriteFileResult)
	require.True(t, w.Success)
	assert.False(t, w.Created)
	assert.Greater(t, w.Additions, 0)
	assert.Greater(t, w.Deletions, 0)

	bad := sb.Execute(ctx, WriteFileCall{Path: "../evil.html", Content: "x"}).(*WriteFileResult)
	assert.False(t, bad.Success)
	assert.Contains(t, bad.Error, ErrOutsideRoot.Error())
	_, err := os.Stat(filepath.Join(filepath.Dir(sb.Root()), "evil.html"))
	assert.True(t, os.IsNotExist(err))

	dir := sb.ReadFile(ctx, "css")
	assert.False(t, dir.Found)
	assert.NotEmpty(t, dir.Error)

	root := sb.Execute(ctx, WriteFileCall{Path: ".", Content: "x"}).(*WriteFileResult)
	assert.False(t, root.Success)
	assert.NotEmpty(t, root.Error)
}

func TestSandboxListFiles(t *testing.T) {
	ctx := context.Background()
	sb := newTestSandbox(t)
	for p, c := range map[string]string{
		".gitignore":          "node_modules/\n*.log\n",
		"index.html":          "<html></html>",
		"js/app.js":           "console.log(1)",
		"debug.log":           "ignored",
		"node_modules/x.js":   "ignored",
		".git/HEAD":           "ref: refs/heads/main",
		"assets/img/logo.svg": "<svg/>",
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(sb.Root(), filepath.Dir(p)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(sb.Root(), p), []byte(c), 0o644))
	}

	res := sb.Execute(ctx, ListFilesCall{}).(*ListFilesResult)
	require.Empty(t, res.Error)
	assert.Equal(t, ".", res.Directory)
	assert.Equal(t, []string{".gitignore", "assets/img/logo.svg", "index.html", "js/app.js"}, res.Entries)

	sub := sb.Execute(ctx, ListFilesCall{Directory: "js"}).(*ListFilesResult)
	require.Empty(t, sub.Error)
	assert.Equal(t, []string{"js/app.js"}, sub.Entries)

	notDir := sb.Execute(ctx, ListFilesCall{Directory: "index.html"}).(*ListFilesResult)
	assert.Contains(t, notDir.Error, "not a directory")

	escape := sb.Execute(ctx, ListFilesCall{Directory: ".."}).(*ListFilesResult)
	assert.Contains(t, escape.Error, ErrOutsideRoot.Error())
}

func TestSandboxJournal(t *testing.T) {
	sb := newTestSandbox(t)
	j := &Journal{}
	ctx := WithJournal(context.Background(), j)

	root := sb.Execute(ctx, GetRootCall{}).(*GetRootResult)
	assert.Equal(t, sb.Root(), root.Root)
	sb.Execute(ctx, ReadFileCall{Path: "../x"})
	sb.Execute(context.Background(), ReadFileCall{Path: "untracked"})

	recs := j.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, ToolGetCurrentDirectory, recs[0].Name)
	assert.Empty(t, recs[0].Error)
	assert.Equal(t, ToolReadFile, recs[1].Name)
	assert.JSONEq(t, `{"path":"../x"}`, recs[1].Arguments)
	assert.NotEmpty(t, recs[1].Error)

	total, failed := j.Summary()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, failed)

	var nilJournal *Journal
	nilJournal.Record(GetRootCall{}, root)
	assert.Nil(t, nilJournal.Records())
}
