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

package firefox

import (
	"path/filepath"
	"testing"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	surfsifter "github.com/gaestu/SurfSifter"
)

const placesSchema = `
	CREATE TABLE moz_places (
		id INTEGER PRIMARY KEY,
		url TEXT,
		title TEXT,
		visit_count INTEGER DEFAULT 0,
		typed INTEGER DEFAULT 0,
		hidden INTEGER DEFAULT 0
	);
	CREATE TABLE moz_historyvisits (
		id INTEGER PRIMARY KEY,
		place_id INTEGER,
		visit_date INTEGER,
		visit_type INTEGER DEFAULT 1
	);
	CREATE TABLE moz_inputhistory (
		place_id INTEGER,
		input TEXT,
		use_count REAL
	);`

func TestPlacesParser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "places.sqlite")

	conn, err := sqlite.OpenConn(path, 0)
	require.NoError(t, err)
	require.NoError(t, sqlitex.ExecScript(conn, placesSchema))
	require.NoError(t, sqlitex.ExecScript(conn, `
		INSERT INTO moz_places (id, url, title, visit_count, typed)
			VALUES (1, 'https://example.org/', 'Example Org', 4, 1);
		INSERT INTO moz_historyvisits (id, place_id, visit_date, visit_type)
			VALUES (1, 1, 1573660776000000, 1);
		INSERT INTO moz_inputhistory (place_id, input, use_count)
			VALUES (1, 'example', 1.0);
		CREATE TABLE moz_future_feature (id INTEGER PRIMARY KEY);`))
	require.NoError(t, conn.Close())

	records, warnings, err := PlacesParser{}.Parse(path, nil)
	require.NoError(t, err)
	require.Len(t, records.Visits, 1)

	visit := records.Visits[0]
	assert.Equal(t, "https://example.org/", visit.URL)
	assert.Equal(t, 4, visit.VisitCount)
	require.NotNil(t, visit.VisitTime)
	assert.Equal(t, "2019-11-13T15:59:36Z", surfsifter.Timestamp(*visit.VisitTime))

	require.Len(t, records.SearchTerms, 1)
	assert.Equal(t, "example", records.SearchTerms[0].Term)
	assert.Equal(t, "https://example.org/", records.SearchTerms[0].URL)

	var unknown bool
	for _, w := range warnings {
		unknown = unknown || (w.Type == surfsifter.WarnUnknownTable && w.ItemName == "moz_future_feature")
	}
	assert.True(t, unknown)
}

func TestPlacesParserMissingFile(t *testing.T) {
	_, _, err := PlacesParser{}.Parse(filepath.Join(t.TempDir(), "places.sqlite"), nil)
	assert.Error(t, err)
}
