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

package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	surfsifter "github.com/gaestu/SurfSifter"
	"github.com/gaestu/SurfSifter/parse"
)

// fakeStorage records all writes in memory and can fail on demand. The
// sighting merge and registry rebuild mirror the SQL in package store.
type fakeStorage struct {
	visits       []VisitRow
	searchTerms  []SearchTermRow
	bookmarks    []BookmarkRow
	cacheEntries []CacheRow
	localStorage []LocalStorageRow
	sightings    map[string]URLSighting
	registry     map[string]URLSighting
	images       map[string]Image
	discoveries  []ImageDiscovery
	warnings     []surfsifter.Warning

	deleteCalls []string
	failOn      string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		sightings: map[string]URLSighting{},
		registry:  map[string]URLSighting{},
		images:    map[string]Image{},
	}
}

func (f *fakeStorage) fail(op string) error {
	if f.failOn == op {
		return errors.New("database is locked")
	}
	return nil
}

func (f *fakeStorage) deleteScope(family, evidenceID, extractor string) error {
	f.deleteCalls = append(f.deleteCalls, family+":"+evidenceID+":"+extractor)
	return f.fail("delete:" + family)
}

func (f *fakeStorage) DeleteVisits(e, x string) error { return f.deleteScope("visits", e, x) }
func (f *fakeStorage) DeleteSearchTerms(e, x string) error {
	return f.deleteScope("search_terms", e, x)
}
func (f *fakeStorage) DeleteBookmarks(e, x string) error { return f.deleteScope("bookmarks", e, x) }
func (f *fakeStorage) DeleteCacheEntries(e, x string) error {
	return f.deleteScope("cache_entries", e, x)
}
func (f *fakeStorage) DeleteLocalStorage(e, x string) error {
	return f.deleteScope("local_storage", e, x)
}
func (f *fakeStorage) DeleteImageDiscoveries(e, x string) error {
	return f.deleteScope("image_discoveries", e, x)
}

func (f *fakeStorage) InsertVisits(rows []VisitRow) error {
	if err := f.fail("insert:visits"); err != nil {
		return err
	}
	f.visits = append(f.visits, rows...)
	return nil
}

func (f *fakeStorage) InsertSearchTerms(rows []SearchTermRow) error {
	f.searchTerms = append(f.searchTerms, rows...)
	return nil
}

func (f *fakeStorage) InsertBookmarks(rows []BookmarkRow) error {
	f.bookmarks = append(f.bookmarks, rows...)
	return nil
}

func (f *fakeStorage) InsertCacheEntries(rows []CacheRow) error {
	f.cacheEntries = append(f.cacheEntries, rows...)
	return nil
}

func (f *fakeStorage) InsertLocalStorage(rows []LocalStorageRow) error {
	f.localStorage = append(f.localStorage, rows...)
	return nil
}

func (f *fakeStorage) DeleteURLSightings(evidenceID, extractor string) error {
	f.deleteCalls = append(f.deleteCalls, "url_sightings:"+evidenceID+":"+extractor)
	for key, s := range f.sightings {
		if s.EvidenceID == evidenceID && s.Extractor == extractor {
			delete(f.sightings, key)
		}
	}
	return f.fail("delete:url_sightings")
}

func (f *fakeStorage) InsertURLSightings(rows []URLSighting) error {
	for _, s := range rows {
		key := s.EvidenceID + "\x1f" + s.Extractor + "\x1f" + s.URL
		existing, ok := f.sightings[key]
		if !ok {
			f.sightings[key] = s
			continue
		}
		existing.Occurrences += s.Occurrences
		if s.FirstSeen != "" && (existing.FirstSeen == "" || s.FirstSeen < existing.FirstSeen) {
			existing.FirstSeen = s.FirstSeen
		}
		if s.LastSeen > existing.LastSeen {
			existing.LastSeen = s.LastSeen
		}
		f.sightings[key] = existing
	}
	return nil
}

func (f *fakeStorage) RebuildURLRegistry(evidenceID string) error {
	for url, s := range f.registry {
		if s.EvidenceID == evidenceID {
			delete(f.registry, url)
		}
	}
	for _, s := range f.sightings {
		if s.EvidenceID != evidenceID {
			continue
		}
		existing, ok := f.registry[s.URL]
		if !ok {
			agg := s
			agg.Extractor = ""
			f.registry[s.URL] = agg
			continue
		}
		existing.Occurrences += s.Occurrences
		if s.FirstSeen != "" && (existing.FirstSeen == "" || s.FirstSeen < existing.FirstSeen) {
			existing.FirstSeen = s.FirstSeen
		}
		if s.LastSeen > existing.LastSeen {
			existing.LastSeen = s.LastSeen
		}
		f.registry[s.URL] = existing
	}
	return nil
}

func (f *fakeStorage) UpsertImage(img Image) error {
	f.images[img.EvidenceID+"\x1f"+img.SHA256] = img
	return nil
}

func (f *fakeStorage) InsertImageDiscoveries(rows []ImageDiscovery) error {
	f.discoveries = append(f.discoveries, rows...)
	return nil
}

func (f *fakeStorage) AddWarnings(warnings []surfsifter.Warning) error {
	f.warnings = append(f.warnings, warnings...)
	return nil
}

func timePtr(s string) *time.Time {
	t, err := time.Parse(surfsifter.TimeFormat, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func testScope() Scope {
	return Scope{EvidenceID: "ev1", RunID: "run1", Extractor: "browser_artifacts"}
}

func TestIngestReplacesScope(t *testing.T) {
	storage := newFakeStorage()
	engine := New(storage)

	records := &parse.Records{
		Visits: []parse.HistoryVisit{
			{Browser: "chrome", URL: "https://example.com/", VisitTime: timePtr("2020-01-01T10:00:00Z"), VisitCount: 2},
		},
	}
	_, err := engine.Ingest(context.Background(), testScope(), records, nil)
	require.NoError(t, err)

	assert.Contains(t, storage.deleteCalls, "visits:ev1:browser_artifacts")
	assert.Contains(t, storage.deleteCalls, "image_discoveries:ev1:browser_artifacts")
	require.Len(t, storage.visits, 1)
	assert.Equal(t, "run1", storage.visits[0].RunID)
}

func TestIngestAdditiveSkipsDeletes(t *testing.T) {
	storage := newFakeStorage()
	engine := New(storage)

	scope := testScope()
	scope.Additive = true
	_, err := engine.Ingest(context.Background(), scope, &parse.Records{}, nil)
	require.NoError(t, err)
	assert.Empty(t, storage.deleteCalls)
}

func TestIngestCollapsesDuplicateVisits(t *testing.T) {
	storage := newFakeStorage()
	engine := New(storage)

	visit := parse.HistoryVisit{
		Browser:   "chrome",
		Profile:   "Default",
		URL:       "https://example.com/",
		VisitTime: timePtr("2020-01-01T10:00:00Z"),
	}
	duplicate := visit
	duplicate.VisitCount = 9

	stats, err := engine.Ingest(context.Background(), testScope(),
		&parse.Records{Visits: []parse.HistoryVisit{visit, duplicate}}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 1, stats.SkippedDuplicate)
	require.Len(t, storage.visits, 1)
	assert.Equal(t, 9, storage.visits[0].VisitCount, "duplicate collapse keeps the larger count")
}

func TestIngestValidationFailures(t *testing.T) {
	storage := newFakeStorage()
	engine := New(storage)

	records := &parse.Records{
		Visits:       []parse.HistoryVisit{{Browser: "chrome"}},
		LocalStorage: []parse.LocalStorageItem{{Browser: "chrome", Origin: "", Key: "k"}},
	}
	stats, err := engine.Ingest(context.Background(), testScope(), records, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 0, stats.Inserted)
	require.Len(t, storage.warnings, 2)
	for _, w := range storage.warnings {
		assert.Equal(t, surfsifter.WarnValidation, w.Type)
		assert.Equal(t, "run1", w.RunID)
	}
}

func TestIngestURLRegistryWidening(t *testing.T) {
	storage := newFakeStorage()
	engine := New(storage)

	records := &parse.Records{
		Visits: []parse.HistoryVisit{
			{Browser: "chrome", URL: "https://Example.com/page#frag", VisitTime: timePtr("2020-01-02T00:00:00Z")},
			{Browser: "firefox", URL: "https://example.com/page", VisitTime: timePtr("2020-01-01T00:00:00Z")},
		},
		Bookmarks: []parse.Bookmark{
			{Browser: "chrome", URL: "https://example.com/page", Added: timePtr("2020-01-03T00:00:00Z")},
		},
	}
	_, err := engine.Ingest(context.Background(), testScope(), records, nil)
	require.NoError(t, err)

	require.Len(t, storage.registry, 1)
	entry := storage.registry["https://example.com/page"]
	assert.Equal(t, 3, entry.Occurrences)
	assert.Equal(t, "2020-01-01T00:00:00Z", entry.FirstSeen)
	assert.Equal(t, "2020-01-03T00:00:00Z", entry.LastSeen)
}

func TestIngestRerunKeepsRegistryStable(t *testing.T) {
	storage := newFakeStorage()
	engine := New(storage)

	records := &parse.Records{
		Visits: []parse.HistoryVisit{
			{Browser: "chrome", URL: "https://example.com/", VisitTime: timePtr("2020-01-01T10:00:00Z")},
		},
	}
	_, err := engine.Ingest(context.Background(), testScope(), records, nil)
	require.NoError(t, err)

	first := storage.registry["https://example.com/"]
	assert.Equal(t, 1, first.Occurrences)

	_, err = engine.Ingest(context.Background(), testScope(), records, nil)
	require.NoError(t, err)

	require.Len(t, storage.registry, 1)
	second := storage.registry["https://example.com/"]
	assert.Equal(t, first, second, "re-ingesting the same batch must not change the registry")
}

func TestIngestRegistryAccumulatesAcrossExtractors(t *testing.T) {
	storage := newFakeStorage()
	engine := New(storage)

	records := &parse.Records{
		Visits: []parse.HistoryVisit{
			{Browser: "chrome", URL: "https://example.com/", VisitTime: timePtr("2020-01-01T10:00:00Z")},
		},
	}
	_, err := engine.Ingest(context.Background(), testScope(), records, nil)
	require.NoError(t, err)

	other := testScope()
	other.Extractor = "triage_export"
	_, err = engine.Ingest(context.Background(), other, records, nil)
	require.NoError(t, err)

	require.Len(t, storage.registry, 1)
	assert.Equal(t, 2, storage.registry["https://example.com/"].Occurrences,
		"distinct extractor scopes add up in the registry")
}

func TestIngestContentAddressedImages(t *testing.T) {
	storage := newFakeStorage()
	engine := New(storage)

	body := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}
	records := &parse.Records{
		CacheEntries: []parse.CacheEntry{
			{Browser: "firefox", SourceFile: "A1", CacheKey: ":https://example.com/logo.png",
				URL: "https://example.com/logo.png", ContentType: "image/png", Body: body},
			{Browser: "firefox", SourceFile: "B2", CacheKey: ":https://example.com/logo2.png",
				URL: "https://example.com/logo2.png", ContentType: "image/png", Body: body},
			{Browser: "firefox", SourceFile: "C3", CacheKey: ":https://example.com/page",
				URL: "https://example.com/page", ContentType: "text/html", Body: []byte("<html>")},
		},
	}
	_, err := engine.Ingest(context.Background(), testScope(), records, nil)
	require.NoError(t, err)

	assert.Len(t, storage.images, 1, "identical bodies stored once")
	assert.Len(t, storage.discoveries, 2, "each finding location recorded")
	require.Len(t, storage.cacheEntries, 3)
	assert.NotEmpty(t, storage.cacheEntries[0].BodySHA256)
	assert.Empty(t, storage.cacheEntries[2].BodySHA256, "non-image bodies are not content addressed")
}

func TestIngestStorageFailureAborts(t *testing.T) {
	storage := newFakeStorage()
	storage.failOn = "insert:visits"
	engine := New(storage)

	records := &parse.Records{
		Visits: []parse.HistoryVisit{{Browser: "chrome", URL: "https://example.com/"}},
	}
	_, err := engine.Ingest(context.Background(), testScope(), records, nil)
	require.Error(t, err)

	var unavailable *surfsifter.StorageUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestIngestRawBodiesNotContentAddressed(t *testing.T) {
	storage := newFakeStorage()
	engine := New(storage)

	records := &parse.Records{
		CacheEntries: []parse.CacheEntry{
			{Browser: "firefox", SourceFile: "D4", CacheKey: ":https://example.com/x.png",
				URL: "https://example.com/x.png", ContentType: "image/png",
				Body: []byte("still gzip"), BodyRaw: true},
		},
	}
	_, err := engine.Ingest(context.Background(), testScope(), records, nil)
	require.NoError(t, err)
	assert.Empty(t, storage.images)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"HTTPS://Example.COM/Path?q=1#frag", "https://example.com/Path?q=1"},
		{"http://example.com:80/a", "http://example.com/a"},
		{"https://example.com:443/", "https://example.com/"},
		{"https://example.com:8443/", "https://example.com:8443/"},
		{"  not a url  ", "not a url"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in), tt.in)
	}
}
