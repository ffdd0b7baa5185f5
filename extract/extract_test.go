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

package extract

import (
	"context"
	"crypto/md5" // #nosec
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	surfsifter "github.com/gaestu/SurfSifter"
	"github.com/gaestu/SurfSifter/evidence"
)

const historyPath = "Users/alice/AppData/Local/Google/Chrome/User Data/Default/History"

func historyCandidate() surfsifter.Candidate {
	return surfsifter.Candidate{
		EvidenceID:   "ev1",
		ArtifactType: "history",
		Browser:      "chrome",
		LogicalPath:  historyPath,
		Size:         4,
	}
}

func testSource(t *testing.T, files map[string][]byte) *evidence.Source {
	t.Helper()
	mem := afero.NewMemMapFs()
	for path, data := range files {
		require.NoError(t, afero.WriteFile(mem, path, data, 0644))
	}
	return evidence.NewSource("ev1", "mem", mem)
}

func TestExtractStagesCandidatesWithCompanions(t *testing.T) {
	src := testSource(t, map[string][]byte{
		historyPath:          []byte("main"),
		historyPath + "-wal": []byte("wal-bytes"),
	})
	outputDir := t.TempDir()
	run := surfsifter.NewRun("ev1", "browser_artifacts")

	manifest, err := New(outputDir).Extract(context.Background(), run, src, []surfsifter.Candidate{historyCandidate()})
	require.NoError(t, err)
	require.Len(t, manifest.Entries, 2)
	assert.Equal(t, run.ID, manifest.RunID)

	byName := map[string]surfsifter.ManifestEntry{}
	for _, e := range manifest.Entries {
		assert.Equal(t, surfsifter.StatusOK, e.Status)
		assert.Equal(t, historyPath, e.Group, "companions share the primary's group")
		byName[e.DestFilename] = e

		staged, err := os.ReadFile(filepath.Join(outputDir, filepath.FromSlash(e.DestRelPath)))
		require.NoError(t, err)
		assert.Equal(t, e.SizeBytes, int64(len(staged)))
	}

	primary := byName["History"]
	md5Sum := md5.Sum([]byte("main")) // #nosec
	shaSum := sha256.Sum256([]byte("main"))
	assert.Equal(t, hex.EncodeToString(md5Sum[:]), primary.MD5)
	assert.Equal(t, hex.EncodeToString(shaSum[:]), primary.SHA256)
	assert.Equal(t, int64(4), primary.SizeBytes)

	wal := byName["History-wal"]
	assert.Equal(t, historyPath+"-wal", wal.SourcePath)
	assert.Equal(t, filepath.Dir(primary.DestRelPath), filepath.Dir(wal.DestRelPath),
		"companions land next to their primary")

	loaded, err := LoadManifest(filepath.Join(outputDir, ManifestFilename))
	require.NoError(t, err)
	assert.Equal(t, manifest.Entries, loaded.Entries)
}

func TestExtractRecordsUnreadableCandidate(t *testing.T) {
	src := testSource(t, map[string][]byte{historyPath: []byte("main")})
	missing := historyCandidate()
	missing.LogicalPath = "Users/bob/AppData/Local/Google/Chrome/User Data/Default/History"
	run := surfsifter.NewRun("ev1", "browser_artifacts")

	manifest, err := New(t.TempDir()).Extract(context.Background(), run, src,
		[]surfsifter.Candidate{historyCandidate(), missing})
	require.NoError(t, err, "a single unreadable file never fails the batch")
	require.Len(t, manifest.Entries, 2)
	assert.True(t, manifest.Degraded())

	var failed, ok int
	for _, e := range manifest.Entries {
		switch e.Status {
		case surfsifter.StatusFailed:
			failed++
			assert.NotEmpty(t, e.ErrorMessage)
			assert.Empty(t, e.SHA256)
		case surfsifter.StatusOK:
			ok++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, ok)
}

func TestExtractNeverOverwritesStagedFiles(t *testing.T) {
	src := testSource(t, map[string][]byte{historyPath: []byte("main")})
	outputDir := t.TempDir()

	first, err := New(outputDir).Extract(context.Background(),
		surfsifter.NewRun("ev1", "browser_artifacts"), src, []surfsifter.Candidate{historyCandidate()})
	require.NoError(t, err)
	require.Equal(t, surfsifter.StatusOK, first.Entries[0].Status)

	second, err := New(outputDir).Extract(context.Background(),
		surfsifter.NewRun("ev1", "browser_artifacts"), src, []surfsifter.Candidate{historyCandidate()})
	require.NoError(t, err)
	require.Len(t, second.Entries, 1)
	assert.Equal(t, surfsifter.StatusFailed, second.Entries[0].Status)
	assert.Contains(t, second.Entries[0].ErrorMessage, "collision")
}

func TestExtractCancellation(t *testing.T) {
	src := testSource(t, map[string][]byte{historyPath: []byte("main")})
	outputDir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	manifest, err := New(outputDir).Extract(ctx,
		surfsifter.NewRun("ev1", "browser_artifacts"), src, []surfsifter.Candidate{historyCandidate()})
	require.Error(t, err)
	assert.Empty(t, manifest.Entries, "cancellation records no partial entries")

	// no partial files below extracted/
	var staged []string
	err = filepath.Walk(filepath.Join(outputDir, "extracted"), func(path string, info os.FileInfo, err error) error {
		if err == nil && info != nil && !info.IsDir() {
			staged = append(staged, path)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestDestRelPathDeterministic(t *testing.T) {
	c := historyCandidate()
	first := DestRelPath(c)
	assert.Equal(t, first, DestRelPath(c))
	assert.Equal(t, "History", filepath.Base(first))

	// a second profile with the same file name stages elsewhere
	other := c
	other.LogicalPath = "Users/alice/AppData/Local/Google/Chrome/User Data/Profile 2/History"
	assert.NotEqual(t, first, DestRelPath(other))

	// same path on another partition stages elsewhere too
	otherPart := c
	otherPart.PartitionIndex = 1
	assert.NotEqual(t, first, DestRelPath(otherPart))
}

func TestLoadManifestRejectsBrokenDocuments(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 1, "entries": []}`), 0644))
	_, err := LoadManifest(path)
	assert.Error(t, err, "missing run_id and evidence_id must be rejected")

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))
	_, err = LoadManifest(path)
	assert.Error(t, err)

	future := `{"version": 99, "run_id": "r", "evidence_id": "e", "extractor_name": "x", "entries": []}`
	require.NoError(t, os.WriteFile(path, []byte(future), 0644))
	_, err = LoadManifest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")

	_, err = LoadManifest(filepath.Join(dir, "nope.json"))
	assert.Error(t, err)
}
