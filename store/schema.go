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

package store

// storeVersion is stored in user_version, storeApplicationID in
// application_id. Opening a database with a different application id fails.
const (
	storeVersion       = 1
	storeApplicationID = 0x53524653 // "SRFS"
)

// Discovery tables carry full provenance. The urls registry is an aggregate
// rebuilt from the per-scope url_sightings rows; images are content addressed
// per evidence item and survive scope replacement.
const schema = `
CREATE TABLE IF NOT EXISTS "runs" (
	"id" TEXT PRIMARY KEY,
	"evidence_id" TEXT NOT NULL,
	"extractor_name" TEXT NOT NULL,
	"extractor_version" TEXT,
	"status" TEXT NOT NULL,
	"started_at" TEXT,
	"finished_at" TEXT
);

CREATE TABLE IF NOT EXISTS "process_log" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"run_id" TEXT NOT NULL,
	"timestamp" TEXT NOT NULL,
	"from_status" TEXT,
	"to_status" TEXT NOT NULL,
	"detail" TEXT
);

CREATE TABLE IF NOT EXISTS "extraction_warnings" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"run_id" TEXT,
	"extractor_name" TEXT,
	"warning_type" TEXT NOT NULL,
	"severity" TEXT NOT NULL,
	"category" TEXT,
	"item_name" TEXT,
	"item_value" TEXT,
	"context" TEXT
);

CREATE TABLE IF NOT EXISTS "extracted_files" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"run_id" TEXT NOT NULL,
	"evidence_id" TEXT NOT NULL,
	"source_path" TEXT NOT NULL,
	"source_inode" TEXT,
	"partition_index" INTEGER NOT NULL DEFAULT 0,
	"artifact_type" TEXT,
	"browser" TEXT,
	"group" TEXT,
	"dest_rel_path" TEXT NOT NULL,
	"dest_filename" TEXT,
	"size_bytes" INTEGER,
	"md5" TEXT,
	"sha256" TEXT,
	"status" TEXT NOT NULL,
	"error_message" TEXT,
	"extracted_at" TEXT,
	UNIQUE ("run_id", "dest_rel_path")
);

CREATE TABLE IF NOT EXISTS "history_visits" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"evidence_id" TEXT NOT NULL,
	"run_id" TEXT,
	"extractor" TEXT NOT NULL,
	"browser" TEXT,
	"profile" TEXT,
	"source_path" TEXT,
	"url" TEXT NOT NULL,
	"title" TEXT,
	"visit_time" TEXT,
	"visit_count" INTEGER,
	"typed_count" INTEGER,
	"transition" INTEGER,
	"hidden" INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS "search_terms" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"evidence_id" TEXT NOT NULL,
	"run_id" TEXT,
	"extractor" TEXT NOT NULL,
	"browser" TEXT,
	"profile" TEXT,
	"source_path" TEXT,
	"term" TEXT NOT NULL,
	"url" TEXT,
	"search_time" TEXT
);

CREATE TABLE IF NOT EXISTS "bookmarks" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"evidence_id" TEXT NOT NULL,
	"run_id" TEXT,
	"extractor" TEXT NOT NULL,
	"browser" TEXT,
	"profile" TEXT,
	"source_path" TEXT,
	"url" TEXT NOT NULL,
	"title" TEXT,
	"folder_path" TEXT,
	"added" TEXT
);

CREATE TABLE IF NOT EXISTS "cache_entries" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"evidence_id" TEXT NOT NULL,
	"run_id" TEXT,
	"extractor" TEXT NOT NULL,
	"browser" TEXT,
	"profile" TEXT,
	"source_path" TEXT,
	"url" TEXT,
	"cache_key" TEXT,
	"fetch_count" INTEGER,
	"last_fetched" TEXT,
	"last_modified" TEXT,
	"expiration" TEXT,
	"content_type" TEXT,
	"content_encoding" TEXT,
	"response_code" INTEGER,
	"body_size" INTEGER,
	"body_sha256" TEXT
);

CREATE TABLE IF NOT EXISTS "local_storage" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"evidence_id" TEXT NOT NULL,
	"run_id" TEXT,
	"extractor" TEXT NOT NULL,
	"browser" TEXT,
	"profile" TEXT,
	"source_path" TEXT,
	"origin" TEXT NOT NULL,
	"key" TEXT NOT NULL,
	"value" TEXT
);

CREATE TABLE IF NOT EXISTS "url_sightings" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"evidence_id" TEXT NOT NULL,
	"extractor" TEXT NOT NULL,
	"url" TEXT NOT NULL,
	"first_seen" TEXT,
	"last_seen" TEXT,
	"occurrence_count" INTEGER NOT NULL DEFAULT 0,
	UNIQUE ("evidence_id", "extractor", "url")
);

CREATE TABLE IF NOT EXISTS "urls" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"evidence_id" TEXT NOT NULL,
	"url" TEXT NOT NULL,
	"first_seen" TEXT,
	"last_seen" TEXT,
	"occurrence_count" INTEGER NOT NULL DEFAULT 0,
	UNIQUE ("evidence_id", "url")
);

CREATE TABLE IF NOT EXISTS "images" (
	"evidence_id" TEXT NOT NULL,
	"sha256" TEXT NOT NULL,
	"content_type" TEXT,
	"size_bytes" INTEGER,
	"data" BLOB,
	PRIMARY KEY ("evidence_id", "sha256")
);

CREATE TABLE IF NOT EXISTS "image_discoveries" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"evidence_id" TEXT NOT NULL,
	"run_id" TEXT,
	"extractor" TEXT NOT NULL,
	"browser" TEXT,
	"profile" TEXT,
	"image_sha256" TEXT NOT NULL,
	"url" TEXT,
	"source_path" TEXT
);

CREATE TABLE IF NOT EXISTS "file_index" (
	"id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"evidence_id" TEXT NOT NULL,
	"partition_index" INTEGER NOT NULL,
	"path" TEXT NOT NULL,
	"name" TEXT,
	"size" INTEGER,
	"mtime" TEXT,
	"inode" TEXT
);

CREATE INDEX IF NOT EXISTS "idx_visits_scope" ON "history_visits" ("evidence_id", "extractor");
CREATE INDEX IF NOT EXISTS "idx_search_terms_scope" ON "search_terms" ("evidence_id", "extractor");
CREATE INDEX IF NOT EXISTS "idx_bookmarks_scope" ON "bookmarks" ("evidence_id", "extractor");
CREATE INDEX IF NOT EXISTS "idx_cache_scope" ON "cache_entries" ("evidence_id", "extractor");
CREATE INDEX IF NOT EXISTS "idx_local_storage_scope" ON "local_storage" ("evidence_id", "extractor");
CREATE INDEX IF NOT EXISTS "idx_image_discoveries_scope" ON "image_discoveries" ("evidence_id", "extractor");
CREATE INDEX IF NOT EXISTS "idx_url_sightings_scope" ON "url_sightings" ("evidence_id", "extractor");
CREATE INDEX IF NOT EXISTS "idx_file_index_lookup" ON "file_index" ("evidence_id", "partition_index");
`
