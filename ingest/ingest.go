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

// Package ingest turns parsed record batches into idempotent store writes.
// Re-ingesting the same manifest leaves the store in the same state: the
// engine first deletes all rows of its (evidence, extractor) scope, then
// inserts the deduplicated batch. URL sightings are scoped the same way and
// the registry aggregate is rebuilt from them after every call, so a rerun
// never inflates counts; image content is addressed by (evidence, sha256)
// and survives scope replacement.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	surfsifter "github.com/gaestu/SurfSifter"
	"github.com/gaestu/SurfSifter/parse"
)

// Scope identifies the store slice one ingestion call owns. All discovery
// rows of the same evidence and extractor are replaced unless Additive is
// set, which only appends (used when several manifests of one run are
// ingested in sequence).
type Scope struct {
	EvidenceID string
	RunID      string
	Extractor  string
	Additive   bool
}

// Provenance is carried on every stored discovery row.
type Provenance struct {
	EvidenceID string
	RunID      string
	Extractor  string
	Browser    string
	Profile    string
	SourcePath string
}

// VisitRow is one history visit ready for storage.
type VisitRow struct {
	Provenance
	URL        string
	Title      string
	VisitTime  string
	VisitCount int
	TypedCount int
	Transition int
	Hidden     bool
}

// SearchTermRow is one omnibox search ready for storage.
type SearchTermRow struct {
	Provenance
	Term       string
	URL        string
	SearchTime string
}

// BookmarkRow is one bookmark ready for storage.
type BookmarkRow struct {
	Provenance
	URL        string
	Title      string
	FolderPath string
	Added      string
}

// CacheRow is one cache entry ready for storage. The body itself is not
// stored here; image bodies go to the content-addressed image table.
type CacheRow struct {
	Provenance
	URL             string
	CacheKey        string
	FetchCount      int
	LastFetched     string
	LastModified    string
	Expiration      string
	ContentType     string
	ContentEncoding string
	ResponseCode    int
	BodySize        int64
	BodySHA256      string `structs:"body_sha256"`
}

// LocalStorageRow is one DOM storage pair ready for storage.
type LocalStorageRow struct {
	Provenance
	Origin string
	Key    string
	Value  string
}

// URLSighting is one scope's aggregated view of a URL. Sightings replace
// with their scope; the cross-artifact registry is rebuilt from them, with
// FirstSeen/LastSeen widened and Occurrences summed across scopes.
type URLSighting struct {
	EvidenceID  string
	Extractor   string
	URL         string
	FirstSeen   string
	LastSeen    string
	Occurrences int
}

// Image is recovered image data, content-addressed per evidence item.
type Image struct {
	EvidenceID  string
	SHA256      string
	ContentType string
	SizeBytes   int64
	Data        []byte
}

// ImageDiscovery links a content-addressed image to where it was found.
type ImageDiscovery struct {
	Provenance
	ImageSHA256 string `structs:"image_sha256"`
	URL         string
}

// Storage is the port the ingestion engine writes through. Any returned
// error is treated as the store being unavailable and aborts the call.
type Storage interface {
	DeleteVisits(evidenceID, extractor string) error
	InsertVisits(rows []VisitRow) error
	DeleteSearchTerms(evidenceID, extractor string) error
	InsertSearchTerms(rows []SearchTermRow) error
	DeleteBookmarks(evidenceID, extractor string) error
	InsertBookmarks(rows []BookmarkRow) error
	DeleteCacheEntries(evidenceID, extractor string) error
	InsertCacheEntries(rows []CacheRow) error
	DeleteLocalStorage(evidenceID, extractor string) error
	InsertLocalStorage(rows []LocalStorageRow) error

	DeleteURLSightings(evidenceID, extractor string) error
	InsertURLSightings(rows []URLSighting) error
	RebuildURLRegistry(evidenceID string) error
	UpsertImage(img Image) error
	DeleteImageDiscoveries(evidenceID, extractor string) error
	InsertImageDiscoveries(rows []ImageDiscovery) error

	AddWarnings(warnings []surfsifter.Warning) error
}

// Engine ingests parsed record batches.
type Engine struct {
	storage Storage
	log     *logrus.Logger
}

// New creates an ingestion engine over a storage backend.
func New(storage Storage, opts ...Option) *Engine {
	e := &Engine{storage: storage, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log *logrus.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// Ingest writes one record batch under the given scope. Records failing
// validation are counted and reported as warnings; the batch continues. A
// storage error aborts immediately with a StorageUnavailableError, leaving
// the manifest replayable.
func (e *Engine) Ingest(ctx context.Context, scope Scope, records *parse.Records, parseWarnings []surfsifter.Warning) (surfsifter.IngestStats, error) {
	var stats surfsifter.IngestStats
	var warnings []surfsifter.Warning

	if !scope.Additive {
		if err := e.clearScope(scope); err != nil {
			return stats, err
		}
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	urlSightings := map[string]*URLSighting{}

	if err := e.ingestVisits(scope, records.Visits, &stats, &warnings, urlSightings); err != nil {
		return stats, err
	}
	if err := e.ingestSearchTerms(scope, records.SearchTerms, &stats, &warnings); err != nil {
		return stats, err
	}
	if err := e.ingestBookmarks(scope, records.Bookmarks, &stats, &warnings, urlSightings); err != nil {
		return stats, err
	}
	if err := e.ingestCacheEntries(scope, records.CacheEntries, &stats, &warnings, urlSightings); err != nil {
		return stats, err
	}
	if err := e.ingestLocalStorage(scope, records.LocalStorage, &stats, &warnings); err != nil {
		return stats, err
	}

	sightings := make([]URLSighting, 0, len(urlSightings))
	for _, sighting := range urlSightings {
		s := *sighting
		s.Extractor = scope.Extractor
		sightings = append(sightings, s)
	}
	sort.Slice(sightings, func(i, j int) bool { return sightings[i].URL < sightings[j].URL })
	if len(sightings) > 0 {
		if err := e.storage.InsertURLSightings(sightings); err != nil {
			return stats, &surfsifter.StorageUnavailableError{Err: err}
		}
	}
	if err := e.storage.RebuildURLRegistry(scope.EvidenceID); err != nil {
		return stats, &surfsifter.StorageUnavailableError{Err: err}
	}

	tagged := make([]surfsifter.Warning, 0, len(parseWarnings)+len(warnings))
	for _, w := range parseWarnings {
		w.RunID = scope.RunID
		w.ExtractorName = scope.Extractor
		tagged = append(tagged, w)
	}
	for _, w := range warnings {
		w.RunID = scope.RunID
		w.ExtractorName = scope.Extractor
		tagged = append(tagged, w)
	}
	if len(tagged) > 0 {
		if err := e.storage.AddWarnings(tagged); err != nil {
			return stats, &surfsifter.StorageUnavailableError{Err: err}
		}
	}
	stats.Warnings += len(tagged)
	return stats, nil
}

func (e *Engine) clearScope(scope Scope) error {
	deletes := []func(string, string) error{
		e.storage.DeleteVisits,
		e.storage.DeleteSearchTerms,
		e.storage.DeleteBookmarks,
		e.storage.DeleteCacheEntries,
		e.storage.DeleteLocalStorage,
		e.storage.DeleteImageDiscoveries,
		e.storage.DeleteURLSightings,
	}
	for _, del := range deletes {
		if err := del(scope.EvidenceID, scope.Extractor); err != nil {
			return &surfsifter.StorageUnavailableError{Err: err}
		}
	}
	return nil
}

func (e *Engine) provenance(scope Scope, browser, profile, sourcePath string) Provenance {
	return Provenance{
		EvidenceID: scope.EvidenceID,
		RunID:      scope.RunID,
		Extractor:  scope.Extractor,
		Browser:    browser,
		Profile:    profile,
		SourcePath: sourcePath,
	}
}

func (e *Engine) ingestVisits(scope Scope, visits []parse.HistoryVisit, stats *surfsifter.IngestStats, warnings *[]surfsifter.Warning, urls map[string]*URLSighting) error {
	seen := map[string]*VisitRow{}
	var order []string
	for _, v := range visits {
		if v.URL == "" {
			stats.Failed++
			*warnings = append(*warnings, validationWarning("history_visit", "empty url"))
			continue
		}
		row := VisitRow{
			Provenance: e.provenance(scope, v.Browser, v.Profile, ""),
			URL:        v.URL,
			Title:      v.Title,
			VisitTime:  isoOrEmpty(v.VisitTime),
			VisitCount: v.VisitCount,
			TypedCount: v.TypedCount,
			Transition: v.Transition,
			Hidden:     v.Hidden,
		}
		key := strings.Join([]string{v.Browser, v.Profile, v.URL, row.VisitTime}, "\x1f")
		if existing, ok := seen[key]; ok {
			stats.SkippedDuplicate++
			if row.VisitCount > existing.VisitCount {
				existing.VisitCount = row.VisitCount
			}
			continue
		}
		rowCopy := row
		seen[key] = &rowCopy
		order = append(order, key)
		recordSighting(urls, scope.EvidenceID, v.URL, v.VisitTime)
	}
	rows := make([]VisitRow, 0, len(order))
	for _, key := range order {
		rows = append(rows, *seen[key])
	}
	if len(rows) > 0 {
		if err := e.storage.InsertVisits(rows); err != nil {
			return &surfsifter.StorageUnavailableError{Err: err}
		}
	}
	stats.Inserted += len(rows)
	return nil
}

func (e *Engine) ingestSearchTerms(scope Scope, terms []parse.SearchTerm, stats *surfsifter.IngestStats, warnings *[]surfsifter.Warning) error {
	seen := map[string]bool{}
	var rows []SearchTermRow
	for _, t := range terms {
		if t.Term == "" {
			stats.Failed++
			*warnings = append(*warnings, validationWarning("search_term", "empty term"))
			continue
		}
		row := SearchTermRow{
			Provenance: e.provenance(scope, t.Browser, t.Profile, ""),
			Term:       t.Term,
			URL:        t.URL,
			SearchTime: isoOrEmpty(t.SearchTime),
		}
		key := strings.Join([]string{t.Browser, t.Profile, t.Term, t.URL, row.SearchTime}, "\x1f")
		if seen[key] {
			stats.SkippedDuplicate++
			continue
		}
		seen[key] = true
		rows = append(rows, row)
	}
	if len(rows) > 0 {
		if err := e.storage.InsertSearchTerms(rows); err != nil {
			return &surfsifter.StorageUnavailableError{Err: err}
		}
	}
	stats.Inserted += len(rows)
	return nil
}

func (e *Engine) ingestBookmarks(scope Scope, bookmarks []parse.Bookmark, stats *surfsifter.IngestStats, warnings *[]surfsifter.Warning, urls map[string]*URLSighting) error {
	seen := map[string]bool{}
	var rows []BookmarkRow
	for _, b := range bookmarks {
		if b.URL == "" {
			stats.Failed++
			*warnings = append(*warnings, validationWarning("bookmark", "empty url"))
			continue
		}
		key := strings.Join([]string{b.Browser, b.Profile, b.URL, b.FolderPath}, "\x1f")
		if seen[key] {
			stats.SkippedDuplicate++
			continue
		}
		seen[key] = true
		rows = append(rows, BookmarkRow{
			Provenance: e.provenance(scope, b.Browser, b.Profile, ""),
			URL:        b.URL,
			Title:      b.Title,
			FolderPath: b.FolderPath,
			Added:      isoOrEmpty(b.Added),
		})
		recordSighting(urls, scope.EvidenceID, b.URL, b.Added)
	}
	if len(rows) > 0 {
		if err := e.storage.InsertBookmarks(rows); err != nil {
			return &surfsifter.StorageUnavailableError{Err: err}
		}
	}
	stats.Inserted += len(rows)
	return nil
}

func (e *Engine) ingestCacheEntries(scope Scope, entries []parse.CacheEntry, stats *surfsifter.IngestStats, warnings *[]surfsifter.Warning, urls map[string]*URLSighting) error {
	seen := map[string]bool{}
	var rows []CacheRow
	var discoveries []ImageDiscovery
	for _, c := range entries {
		if c.URL == "" && c.CacheKey == "" {
			stats.Failed++
			*warnings = append(*warnings, validationWarning("cache_entry", "empty url and cache key"))
			continue
		}
		key := strings.Join([]string{c.Browser, c.SourceFile, c.CacheKey}, "\x1f")
		if seen[key] {
			stats.SkippedDuplicate++
			continue
		}
		seen[key] = true

		row := CacheRow{
			Provenance:      e.provenance(scope, c.Browser, "", c.SourceFile),
			URL:             c.URL,
			CacheKey:        c.CacheKey,
			FetchCount:      c.FetchCount,
			LastFetched:     isoOrEmpty(c.LastFetched),
			LastModified:    isoOrEmpty(c.LastModified),
			Expiration:      isoOrEmpty(c.Expiration),
			ContentType:     c.ContentType,
			ContentEncoding: c.ContentEncoding,
			ResponseCode:    c.ResponseCode,
			BodySize:        int64(len(c.Body)),
		}

		if len(c.Body) > 0 && !c.BodyRaw && strings.HasPrefix(c.ContentType, "image/") {
			sum := sha256.Sum256(c.Body)
			row.BodySHA256 = hex.EncodeToString(sum[:])
			if err := e.storage.UpsertImage(Image{
				EvidenceID:  scope.EvidenceID,
				SHA256:      row.BodySHA256,
				ContentType: c.ContentType,
				SizeBytes:   int64(len(c.Body)),
				Data:        c.Body,
			}); err != nil {
				return &surfsifter.StorageUnavailableError{Err: err}
			}
			discoveries = append(discoveries, ImageDiscovery{
				Provenance:  row.Provenance,
				ImageSHA256: row.BodySHA256,
				URL:         c.URL,
			})
		}

		rows = append(rows, row)
		if c.URL != "" {
			recordSighting(urls, scope.EvidenceID, c.URL, c.LastFetched)
		}
	}
	if len(rows) > 0 {
		if err := e.storage.InsertCacheEntries(rows); err != nil {
			return &surfsifter.StorageUnavailableError{Err: err}
		}
	}
	if len(discoveries) > 0 {
		if err := e.storage.InsertImageDiscoveries(discoveries); err != nil {
			return &surfsifter.StorageUnavailableError{Err: err}
		}
	}
	stats.Inserted += len(rows)
	return nil
}

func (e *Engine) ingestLocalStorage(scope Scope, items []parse.LocalStorageItem, stats *surfsifter.IngestStats, warnings *[]surfsifter.Warning) error {
	seen := map[string]int{}
	var rows []LocalStorageRow
	for _, item := range items {
		if item.Origin == "" || item.Key == "" {
			stats.Failed++
			*warnings = append(*warnings, validationWarning("local_storage", "empty origin or key"))
			continue
		}
		key := strings.Join([]string{item.Browser, item.Origin, item.Key}, "\x1f")
		if idx, ok := seen[key]; ok {
			// the last value of a key wins, matching LevelDB read semantics
			stats.SkippedDuplicate++
			rows[idx].Value = item.Value
			continue
		}
		seen[key] = len(rows)
		rows = append(rows, LocalStorageRow{
			Provenance: e.provenance(scope, item.Browser, "", ""),
			Origin:     item.Origin,
			Key:        item.Key,
			Value:      item.Value,
		})
	}
	if len(rows) > 0 {
		if err := e.storage.InsertLocalStorage(rows); err != nil {
			return &surfsifter.StorageUnavailableError{Err: err}
		}
	}
	stats.Inserted += len(rows)
	return nil
}

func recordSighting(urls map[string]*URLSighting, evidenceID, rawURL string, seenAt *time.Time) {
	normalized := NormalizeURL(rawURL)
	when := isoOrEmpty(seenAt)
	sighting, ok := urls[normalized]
	if !ok {
		urls[normalized] = &URLSighting{
			EvidenceID:  evidenceID,
			URL:         normalized,
			FirstSeen:   when,
			LastSeen:    when,
			Occurrences: 1,
		}
		return
	}
	sighting.Occurrences++
	if when != "" && (sighting.FirstSeen == "" || when < sighting.FirstSeen) {
		sighting.FirstSeen = when
	}
	if when > sighting.LastSeen {
		sighting.LastSeen = when
	}
}

func validationWarning(record, reason string) surfsifter.Warning {
	return surfsifter.Warning{
		Type:      surfsifter.WarnValidation,
		Severity:  surfsifter.SeverityWarning,
		ItemName:  record,
		ItemValue: reason,
	}
}

func isoOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return surfsifter.Timestamp(*t)
}

// NormalizeURL canonicalizes a URL for the unified URL registry: lowercased
// scheme and host, default ports and fragments stripped. Strings that do not
// parse as absolute URLs are kept verbatim apart from whitespace trimming.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" {
		return trimmed
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	switch {
	case parsed.Scheme == "http" && strings.HasSuffix(parsed.Host, ":80"):
		parsed.Host = strings.TrimSuffix(parsed.Host, ":80")
	case parsed.Scheme == "https" && strings.HasSuffix(parsed.Host, ":443"):
		parsed.Host = strings.TrimSuffix(parsed.Host, ":443")
	}
	return parsed.String()
}
