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

package discover

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	surfsifter "github.com/gaestu/SurfSifter"
	"github.com/gaestu/SurfSifter/evidence"
	"github.com/gaestu/SurfSifter/pattern"
)

const (
	chromeHistory  = "Users/alice/AppData/Local/Google/Chrome/User Data/Default/History"
	firefoxPlaces  = "Users/bob/AppData/Roaming/Mozilla/Firefox/Profiles/x1y2.default/places.sqlite"
	unrelatedNoise = "Users/alice/Documents/History"
)

func testEvidence(t *testing.T, paths ...string) *evidence.Source {
	t.Helper()
	mem := afero.NewMemMapFs()
	for _, p := range paths {
		require.NoError(t, afero.WriteFile(mem, "/"+p, []byte("content"), 0644))
	}
	return evidence.NewSource("ev1", "mem", mem)
}

func TestDiscoverWalk(t *testing.T) {
	src := testEvidence(t, chromeHistory, firefoxPlaces, unrelatedNoise)
	engine := New(pattern.Default())

	candidates, err := engine.Discover(context.Background(), src, "history", nil)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// sorted by partition, then path
	assert.Equal(t, chromeHistory, candidates[0].LogicalPath)
	assert.Equal(t, "chrome", candidates[0].Browser)
	assert.Equal(t, firefoxPlaces, candidates[1].LogicalPath)
	assert.Equal(t, "firefox", candidates[1].Browser)

	for _, c := range candidates {
		assert.Equal(t, "ev1", c.EvidenceID)
		assert.Equal(t, "history", c.ArtifactType)
		assert.Equal(t, int64(7), c.Size)
		assert.NotNil(t, c.Mtime)
	}
}

func TestDiscoverUnknownArtifactType(t *testing.T) {
	src := testEvidence(t, chromeHistory)
	_, err := New(pattern.Default()).Discover(context.Background(), src, "registry_hives", nil)
	require.Error(t, err)
	var confErr *surfsifter.ConfigurationError
	assert.True(t, errors.As(err, &confErr))
}

func TestDiscoverPartitionFilter(t *testing.T) {
	memA := afero.NewMemMapFs()
	memB := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(memA, "/"+chromeHistory, []byte("a"), 0644))
	require.NoError(t, afero.WriteFile(memB, "/"+chromeHistory, []byte("b"), 0644))
	src := evidence.NewSource("ev1", "mem", memA, memB)
	engine := New(pattern.Default())

	all, err := engine.Discover(context.Background(), src, "history", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	only, err := engine.Discover(context.Background(), src, "history", []int{1})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, 1, only[0].PartitionIndex)
}

type fakeIndex struct {
	files map[int][]IndexedFile
	err   error
}

func (f *fakeIndex) Files(evidenceID string, partition int) ([]IndexedFile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.files[partition], nil
}

func TestDiscoverFromIndex(t *testing.T) {
	// the filesystem is empty on purpose: everything must come from the index
	src := testEvidence(t)
	idx := &fakeIndex{files: map[int][]IndexedFile{0: {
		{PartitionIndex: 0, Path: chromeHistory, Name: "History", Size: 42, Inode: "17-128-3"},
		{PartitionIndex: 0, Path: chromeHistory, Name: "History", Size: 42, Inode: "17-128-3"},
		{PartitionIndex: 0, Path: unrelatedNoise, Name: "History", Size: 9},
	}}}

	engine := New(pattern.Default(), WithIndex(idx))
	candidates, err := engine.Discover(context.Background(), src, "history", nil)
	require.NoError(t, err)
	require.Len(t, candidates, 1, "duplicate index rows collapse to one candidate")
	assert.Equal(t, chromeHistory, candidates[0].LogicalPath)
	assert.Equal(t, "17-128-3", candidates[0].ForensicPath)
	assert.Equal(t, int64(42), candidates[0].Size)
}

func TestDiscoverIndexUnavailable(t *testing.T) {
	src := testEvidence(t)
	engine := New(pattern.Default(), WithIndex(&fakeIndex{err: errors.New("db gone")}))

	_, err := engine.Discover(context.Background(), src, "history", nil)
	require.Error(t, err)
	var srcErr *surfsifter.SourceUnavailableError
	assert.True(t, errors.As(err, &srcErr))
}

func TestDiscoverDeterministic(t *testing.T) {
	src := testEvidence(t, firefoxPlaces, chromeHistory)
	engine := New(pattern.Default())

	first, err := engine.Discover(context.Background(), src, "history", nil)
	require.NoError(t, err)
	second, err := engine.Discover(context.Background(), src, "history", nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWalkPartitionCancelled(t *testing.T) {
	src := testEvidence(t, chromeHistory)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := WalkPartition(ctx, src, 0, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
