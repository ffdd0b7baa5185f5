// Copyright (c) 2026 gaestu
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

package evidence

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceIsReadOnly(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "Users/alice/History", []byte("data"), 0644))

	src := NewSource("ev1", "mem", mem)
	fs, err := src.Partition(0)
	require.NoError(t, err)

	_, err = fs.Create("Users/alice/new-file")
	assert.Error(t, err, "evidence must never be writable")
	assert.Error(t, fs.Remove("Users/alice/History"))
}

func TestSourceOpenAndStat(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "Users/alice/History", []byte("data"), 0644))
	src := NewSource("ev1", "mem", mem)

	r, err := src.Open(0, "Users/alice/History")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), data)

	info, err := src.Stat(0, "Users/alice/History")
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size())

	assert.True(t, src.Exists(0, "Users/alice/History"))
	assert.False(t, src.Exists(0, "Users/alice/Bookmarks"))
	assert.False(t, src.Exists(7, "Users/alice/History"))
}

func TestSourcePartitions(t *testing.T) {
	src := NewSource("ev1", "mem", afero.NewMemMapFs(), afero.NewMemMapFs())
	assert.Equal(t, []int{0, 1}, src.Partitions())

	_, err := src.Partition(2)
	assert.Error(t, err)
	_, err = src.Partition(-1)
	assert.Error(t, err)
}

func TestNewDirectorySource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Users", "alice"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Users", "alice", "History"), []byte("x"), 0644))

	src, err := NewDirectorySource("disk1", dir)
	require.NoError(t, err)
	assert.Equal(t, "disk1", src.ID())
	assert.Equal(t, "dir", src.FSType())
	assert.True(t, src.Exists(0, "Users/alice/History"))

	_, err = NewDirectorySource("disk1", filepath.Join(dir, "no-such-dir"))
	assert.Error(t, err)

	_, err = NewDirectorySource("disk1", filepath.Join(dir, "Users", "alice", "History"))
	assert.Error(t, err, "a file is not an evidence directory")
}

func TestThreadSafeToggle(t *testing.T) {
	src := NewSource("ev1", "mem", afero.NewMemMapFs())
	assert.True(t, src.ThreadSafe())
	src.SetThreadSafe(false)
	assert.False(t, src.ThreadSafe())
}
