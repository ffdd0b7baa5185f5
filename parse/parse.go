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

// Package parse defines the format parser contract and the explicit parser
// registry. A parser is a pure function of the staged bytes it is given: it
// reads the file (and declared companions), emits typed record batches and
// warnings, and has no other side effects. The set of supported formats is
// closed and wired at startup; there is no runtime plugin scanning.
package parse

import (
	"sort"
	"time"

	surfsifter "github.com/gaestu/SurfSifter"
)

// Parser turns one staged file into typed records. Implementations must
// treat all input as untrusted: malformed bytes degrade to warnings, never
// to panics. A non-nil error is reserved for environmental failures
// (unreadable staged file); format-level corruption is reported through
// warnings and an empty batch.
type Parser interface {
	// Name identifies the parser in provenance tags.
	Name() string
	// ArtifactTypes lists the artifact types this parser handles.
	ArtifactTypes() []string
	// Parse reads the staged file at path. Companions are staged paths of
	// files from the same manifest group (WAL, journal, log files).
	Parse(path string, companions []string) (*Records, []surfsifter.Warning, error)
}

// Records is the closed union of record batches a parser can produce.
// Exactly the families the ingestion engine knows how to store.
type Records struct {
	Visits       []HistoryVisit
	SearchTerms  []SearchTerm
	Bookmarks    []Bookmark
	CacheEntries []CacheEntry
	LocalStorage []LocalStorageItem
}

// Empty reports whether no family contains records.
func (r *Records) Empty() bool {
	return r == nil ||
		len(r.Visits) == 0 && len(r.SearchTerms) == 0 && len(r.Bookmarks) == 0 &&
			len(r.CacheEntries) == 0 && len(r.LocalStorage) == 0
}

// Merge appends all batches of other into r.
func (r *Records) Merge(other *Records) {
	if other == nil {
		return
	}
	r.Visits = append(r.Visits, other.Visits...)
	r.SearchTerms = append(r.SearchTerms, other.SearchTerms...)
	r.Bookmarks = append(r.Bookmarks, other.Bookmarks...)
	r.CacheEntries = append(r.CacheEntries, other.CacheEntries...)
	r.LocalStorage = append(r.LocalStorage, other.LocalStorage...)
}

// HistoryVisit is a single per-visit browser history record.
type HistoryVisit struct {
	Browser    string
	Profile    string
	URL        string
	Title      string
	VisitTime  *time.Time
	VisitCount int
	TypedCount int
	Transition int
	Hidden     bool
}

// SearchTerm is a keyword search typed into the browser omnibox.
type SearchTerm struct {
	Browser    string
	Profile    string
	Term       string
	URL        string
	SearchTime *time.Time
}

// Bookmark is one bookmarked URL with its folder path.
type Bookmark struct {
	Browser    string
	Profile    string
	URL        string
	Title      string
	FolderPath string
	Added      *time.Time
}

// CacheEntry is one parsed browser cache record. Body carries the response
// body when it could be located; BodyRaw marks bodies kept compressed
// because decompression failed.
type CacheEntry struct {
	Browser         string
	SourceFile      string
	URL             string
	CacheKey        string
	FetchCount      int
	LastFetched     *time.Time
	LastModified    *time.Time
	Expiration      *time.Time
	ContentType     string
	ContentEncoding string
	ResponseCode    int
	Body            []byte
	BodyRaw         bool
}

// LocalStorageItem is one DOM storage key/value pair.
type LocalStorageItem struct {
	Browser string
	Origin  string
	Key     string
	Value   string
}

// Registry maps artifact types to parsers. It is populated explicitly at
// startup and immutable afterwards.
type Registry struct {
	byArtifact map[string]Parser
}

// NewRegistry creates a registry over the given parsers. Registering two
// parsers for the same artifact type is a programming error and panics at
// startup.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{byArtifact: map[string]Parser{}}
	for _, p := range parsers {
		for _, artifactType := range p.ArtifactTypes() {
			if existing, ok := r.byArtifact[artifactType]; ok {
				panic("parse: artifact type " + artifactType + " claimed by both " +
					existing.Name() + " and " + p.Name())
			}
			r.byArtifact[artifactType] = p
		}
	}
	return r
}

// For returns the parser of an artifact type.
func (r *Registry) For(artifactType string) (Parser, bool) {
	p, ok := r.byArtifact[artifactType]
	return p, ok
}

// ArtifactTypes lists all registered artifact types in sorted order.
func (r *Registry) ArtifactTypes() []string {
	types := make([]string, 0, len(r.byArtifact))
	for t := range r.byArtifact {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
