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

// Package pipeline orchestrates a full processing run: discovery, staging,
// parsing and ingestion, with the run state machine and its audit trail
// persisted in the store. Every stage transition is recorded; a crash leaves
// the run in a non-terminal state and the manifest on disk for replay.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	surfsifter "github.com/gaestu/SurfSifter"
	"github.com/gaestu/SurfSifter/discover"
	"github.com/gaestu/SurfSifter/evidence"
	"github.com/gaestu/SurfSifter/extract"
	"github.com/gaestu/SurfSifter/ingest"
	"github.com/gaestu/SurfSifter/parse"
	"github.com/gaestu/SurfSifter/parse/chromium"
	"github.com/gaestu/SurfSifter/parse/firefox"
	"github.com/gaestu/SurfSifter/parse/localstorage"
	"github.com/gaestu/SurfSifter/pattern"
	"github.com/gaestu/SurfSifter/store"
)

// DefaultExtractorName tags runs, warnings and ingested rows of this engine.
const DefaultExtractorName = "browser_artifacts"

// Registries returns the built-in parser registries keyed by browser engine.
func Registries() map[string]*parse.Registry {
	return map[string]*parse.Registry{
		"chromium": parse.NewRegistry(
			chromium.HistoryParser{},
			chromium.BookmarksParser{},
			localstorage.Parser{},
		),
		"gecko": parse.NewRegistry(
			firefox.PlacesParser{},
			firefox.BookmarkBackupParser{},
			firefox.Cache2Parser{},
		),
	}
}

// Pipeline wires the processing stages over one store.
type Pipeline struct {
	store      *store.Store
	patterns   *pattern.Set
	registries map[string]*parse.Registry
	extractor  string
	outputDir  string
	workers    int
	useIndex   bool
	log        *logrus.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPatterns replaces the embedded pattern tables.
func WithPatterns(p *pattern.Set) Option {
	return func(pl *Pipeline) { pl.patterns = p }
}

// WithExtractorName overrides the extractor tag.
func WithExtractorName(name string) Option {
	return func(pl *Pipeline) { pl.extractor = name }
}

// WithWorkers bounds the staging worker pool.
func WithWorkers(n int) Option {
	return func(pl *Pipeline) { pl.workers = n }
}

// WithFileIndex makes discovery read the precomputed file index from the
// store instead of walking the evidence.
func WithFileIndex() Option {
	return func(pl *Pipeline) { pl.useIndex = true }
}

// WithLogger sets the pipeline logger.
func WithLogger(log *logrus.Logger) Option {
	return func(pl *Pipeline) { pl.log = log }
}

// New creates a pipeline writing staged files below outputDir and records
// into s.
func New(s *store.Store, outputDir string, opts ...Option) *Pipeline {
	pl := &Pipeline{
		store:      s,
		patterns:   pattern.Default(),
		registries: Registries(),
		extractor:  DefaultExtractorName,
		outputDir:  outputDir,
		workers:    4,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(pl)
	}
	return pl
}

// Run executes the full pipeline for the given artifact types (all known
// types when nil) and returns the finished run. The returned run is in a
// terminal state; the error describes why a run failed.
func (pl *Pipeline) Run(ctx context.Context, src *evidence.Source, artifactTypes []string, partitions []int) (*surfsifter.Run, error) {
	run, manifest, err := pl.Extract(ctx, src, artifactTypes, partitions)
	if err != nil {
		return run, err
	}
	if err := pl.ingestManifest(ctx, run, manifest, pl.outputDir); err != nil {
		return run, pl.fail(run, err)
	}
	return run, nil
}

// Extract runs discovery and staging only, leaving the run in the extracted
// state with its manifest on disk. Ingestion can follow later through
// IngestManifest, also on a machine without evidence access.
func (pl *Pipeline) Extract(ctx context.Context, src *evidence.Source, artifactTypes []string, partitions []int) (*surfsifter.Run, *surfsifter.Manifest, error) {
	run := surfsifter.NewRun(src.ID(), pl.extractor)
	if err := pl.store.SaveRun(run); err != nil {
		return nil, nil, err
	}
	if artifactTypes == nil {
		artifactTypes = pl.patterns.ArtifactTypes()
	}

	if err := pl.store.TransitionRun(run, surfsifter.StatusExtracting,
		fmt.Sprintf("artifact types: %v", artifactTypes)); err != nil {
		return run, nil, err
	}

	candidates, err := pl.discoverAll(ctx, src, artifactTypes, partitions)
	if err != nil {
		return run, nil, pl.fail(run, err)
	}

	extractor := extract.New(pl.outputDir, extract.WithWorkers(pl.workers), extract.WithLogger(pl.log))
	manifest, err := extractor.Extract(ctx, run, src, candidates)
	if err != nil {
		return run, manifest, pl.fail(run, err)
	}

	detail := fmt.Sprintf("%d candidates, %d manifest entries", len(candidates), len(manifest.Entries))
	if manifest.Degraded() {
		detail += " (degraded)"
	}
	if err := pl.store.TransitionRun(run, surfsifter.StatusExtracted, detail); err != nil {
		return run, manifest, err
	}
	if err := pl.store.InsertExtractedFiles(run.ID, run.EvidenceID, manifest.Entries); err != nil {
		return run, manifest, pl.fail(run, err)
	}
	return run, manifest, nil
}

// IngestManifest replays a previously written manifest without evidence
// access. When the manifest's run is still waiting for ingestion it is
// continued; otherwise a fresh run is registered for the replay.
func (pl *Pipeline) IngestManifest(ctx context.Context, outputDir string) (*surfsifter.Run, error) {
	manifest, err := extract.LoadManifest(filepath.Join(outputDir, extract.ManifestFilename))
	if err != nil {
		return nil, err
	}

	run, err := pl.store.GetRun(manifest.RunID)
	if err != nil || run.Status != surfsifter.StatusExtracted {
		replay := surfsifter.NewRun(manifest.EvidenceID, manifest.ExtractorName)
		detail := fmt.Sprintf("replaying manifest of run %s", manifest.RunID)
		if err := pl.store.SaveRun(replay); err != nil {
			return nil, err
		}
		if err := pl.store.TransitionRun(replay, surfsifter.StatusExtracting, detail); err != nil {
			return replay, err
		}
		if err := pl.store.TransitionRun(replay, surfsifter.StatusExtracted, detail); err != nil {
			return replay, err
		}
		run = replay
	}

	if err := pl.store.DeleteExtractedFiles(run.ID); err != nil {
		return run, pl.fail(run, err)
	}
	if err := pl.store.InsertExtractedFiles(run.ID, manifest.EvidenceID, manifest.Entries); err != nil {
		return run, pl.fail(run, err)
	}

	if err := pl.ingestManifest(ctx, run, manifest, outputDir); err != nil {
		return run, pl.fail(run, err)
	}
	return run, nil
}

// BuildFileIndex walks all partitions of the evidence and stores the file
// lists, so later discovery runs can skip the walk.
func (pl *Pipeline) BuildFileIndex(ctx context.Context, src *evidence.Source) error {
	for _, partition := range src.Partitions() {
		files, err := discover.WalkPartition(ctx, src, partition, pl.log)
		if err != nil {
			return err
		}
		if err := pl.store.ReplaceFileIndex(src.ID(), partition, files); err != nil {
			return err
		}
		pl.log.WithFields(logrus.Fields{
			"evidence":  src.ID(),
			"partition": partition,
			"files":     len(files),
		}).Info("file index built")
	}
	return nil
}

func (pl *Pipeline) discoverAll(ctx context.Context, src *evidence.Source, artifactTypes []string, partitions []int) ([]surfsifter.Candidate, error) {
	var opts []discover.Option
	opts = append(opts, discover.WithLogger(pl.log))
	if pl.useIndex {
		opts = append(opts, discover.WithIndex(pl.store))
	}
	engine := discover.New(pl.patterns, opts...)

	var candidates []surfsifter.Candidate
	for _, artifactType := range artifactTypes {
		found, err := engine.Discover(ctx, src, artifactType, partitions)
		if err != nil {
			return nil, err
		}
		pl.log.WithFields(logrus.Fields{
			"artifact":   artifactType,
			"candidates": len(found),
		}).Info("discovery finished")
		candidates = append(candidates, found...)
	}
	return candidates, nil
}

// ingestManifest parses all staged files of a manifest and ingests the
// merged record batch under the run's scope. outputDir is the staging root
// the manifest's dest paths are relative to, which for a replay differs from
// the pipeline's own staging root.
func (pl *Pipeline) ingestManifest(ctx context.Context, run *surfsifter.Run, manifest *surfsifter.Manifest, outputDir string) error {
	if err := pl.store.TransitionRun(run, surfsifter.StatusIngesting, ""); err != nil {
		return err
	}

	records, warnings := pl.parseManifest(ctx, manifest, outputDir)

	engine := ingest.New(pl.store, ingest.WithLogger(pl.log))
	scope := ingest.Scope{
		EvidenceID: manifest.EvidenceID,
		RunID:      run.ID,
		Extractor:  manifest.ExtractorName,
	}
	stats, err := engine.Ingest(ctx, scope, records, warnings)
	if err != nil {
		return err
	}

	detail := fmt.Sprintf("%d inserted, %d duplicates, %d failed, %d warnings",
		stats.Inserted, stats.SkippedDuplicate, stats.Failed, stats.Warnings)
	return pl.store.TransitionRun(run, surfsifter.StatusIngested, detail)
}

func (pl *Pipeline) parseManifest(ctx context.Context, manifest *surfsifter.Manifest, outputDir string) (*parse.Records, []surfsifter.Warning) {
	companions := map[string][]string{}
	for _, entry := range manifest.Succeeded() {
		if entry.Group != "" && entry.Group != entry.SourcePath {
			companions[entry.Group] = append(companions[entry.Group],
				filepath.Join(outputDir, filepath.FromSlash(entry.DestRelPath)))
		}
	}

	records := &parse.Records{}
	var warnings []surfsifter.Warning
	for _, entry := range manifest.Succeeded() {
		if ctx.Err() != nil {
			break
		}
		if entry.Group != "" && entry.Group != entry.SourcePath {
			// companion files are parsed through their primary
			continue
		}
		parser := pl.parserFor(entry)
		if parser == nil {
			continue
		}

		stagedPath := filepath.Join(outputDir, filepath.FromSlash(entry.DestRelPath))
		batch, parseWarnings, err := parser.Parse(stagedPath, companions[entry.Group])
		warnings = append(warnings, parseWarnings...)
		if err != nil {
			pl.log.WithField("path", entry.DestRelPath).WithError(err).Warn("parser failed")
			warnings = append(warnings, surfsifter.Warning{
				Type:      surfsifter.WarnParse,
				Severity:  surfsifter.SeverityError,
				ItemName:  entry.DestRelPath,
				ItemValue: err.Error(),
			})
			continue
		}

		applyProvenance(batch, entry.Browser, pattern.Profile(entry.SourcePath))
		records.Merge(batch)
	}
	return records, warnings
}

func (pl *Pipeline) parserFor(entry surfsifter.ManifestEntry) parse.Parser {
	engine := pl.patterns.EngineOf(entry.Browser)
	registry, ok := pl.registries[engine]
	if !ok {
		return nil
	}
	parser, ok := registry.For(entry.ArtifactType)
	if !ok {
		return nil
	}
	return parser
}

// applyProvenance fills browser and profile on records whose parser left
// them empty. Parsers only know bytes; the manifest knows where they came
// from.
func applyProvenance(records *parse.Records, browser, profile string) {
	for i := range records.Visits {
		if records.Visits[i].Browser == "" {
			records.Visits[i].Browser = browser
		}
		if records.Visits[i].Profile == "" {
			records.Visits[i].Profile = profile
		}
	}
	for i := range records.SearchTerms {
		if records.SearchTerms[i].Browser == "" {
			records.SearchTerms[i].Browser = browser
		}
		if records.SearchTerms[i].Profile == "" {
			records.SearchTerms[i].Profile = profile
		}
	}
	for i := range records.Bookmarks {
		if records.Bookmarks[i].Browser == "" {
			records.Bookmarks[i].Browser = browser
		}
		if records.Bookmarks[i].Profile == "" {
			records.Bookmarks[i].Profile = profile
		}
	}
	for i := range records.CacheEntries {
		if records.CacheEntries[i].Browser == "" {
			records.CacheEntries[i].Browser = browser
		}
	}
	for i := range records.LocalStorage {
		if records.LocalStorage[i].Browser == "" {
			records.LocalStorage[i].Browser = browser
		}
	}
}

func (pl *Pipeline) fail(run *surfsifter.Run, cause error) error {
	if run.Status.Terminal() {
		return cause
	}
	if err := pl.store.TransitionRun(run, surfsifter.StatusRunFailed, cause.Error()); err != nil {
		pl.log.WithError(err).Error("cannot mark run failed")
	}
	return cause
}
