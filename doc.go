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

// Package surfsifter locates browser and operating system artifacts in
// read-only evidence filesystems, stages them into a hash-verified output
// directory and ingests parsed records into a relational artifact store.
//
// # Pipeline
//
// Processing one evidence item is a run, identified by a run id. A run moves
// through a fixed sequence of stages:
//
//	discover → extract → parse → ingest
//
// Discovery resolves declarative path patterns (package pattern) against a
// read-only evidence filesystem (package evidence) and yields candidate
// files. The staging engine (package extract) copies candidates and their
// companion files into the run's output directory, hashing every byte on the
// way, and records each copy in a replayable manifest. Format parsers
// (package parse and subpackages) turn staged bytes into typed record
// batches which the ingestion engine (package ingest) deduplicates and
// writes through narrow storage ports (implemented by package store).
//
// # Forensic guarantees
//
//   - The evidence source is never written to.
//   - Re-running a run against unchanged evidence produces identical stored
//     records; prior records of the same scope are replaced, not duplicated.
//   - Ingestion can be replayed from a persisted manifest and the staged
//     files alone, without access to the original evidence.
//   - Unknown tables, columns and enum values degrade to extraction warnings
//     instead of silently dropping data.
//
// This package holds the data model shared by all stages: candidates,
// manifest entries, runs and their state machine, warnings and the error
// taxonomy.
package surfsifter
