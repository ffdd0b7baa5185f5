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

package chromium

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	surfsifter "github.com/gaestu/SurfSifter"
)

const sampleBookmarks = `{
	"checksum": "ignored",
	"roots": {
		"bookmark_bar": {
			"type": "folder",
			"name": "Bookmarks bar",
			"children": [
				{
					"type": "url",
					"name": "Example",
					"url": "https://example.com/",
					"date_added": "13218134376000000"
				},
				{
					"type": "folder",
					"name": "Work",
					"children": [
						{
							"type": "url",
							"name": "Tracker",
							"url": "https://tracker.example/board",
							"date_added": "13218134376000000"
						}
					]
				},
				{
					"type": "hologram",
					"name": "From the future"
				}
			]
		},
		"other": {"type": "folder", "name": "Other bookmarks", "children": []},
		"synced": {"type": "folder", "name": "Mobile bookmarks", "children": []},
		"vendor_extension": {"type": "folder", "name": "Vendor", "children": []}
	},
	"version": 1
}`

func TestBookmarksParser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Bookmarks")
	require.NoError(t, os.WriteFile(path, []byte(sampleBookmarks), 0640))

	records, warnings, err := BookmarksParser{}.Parse(path, nil)
	require.NoError(t, err)
	require.Len(t, records.Bookmarks, 2)

	first := records.Bookmarks[0]
	assert.Equal(t, "https://example.com/", first.URL)
	assert.Equal(t, "Example", first.Title)
	assert.Equal(t, "bookmark_bar/Bookmarks bar", first.FolderPath)
	require.NotNil(t, first.Added)
	assert.Equal(t, "2019-11-13T15:59:36Z", surfsifter.Timestamp(*first.Added))

	nested := records.Bookmarks[1]
	assert.Equal(t, "bookmark_bar/Bookmarks bar/Work", nested.FolderPath)

	var unknownEnum, unknownKey bool
	for _, w := range warnings {
		switch w.Type {
		case surfsifter.WarnUnknownEnumValue:
			unknownEnum = w.ItemValue == "hologram"
		case surfsifter.WarnUnknownKey:
			unknownKey = w.ItemName == "roots.vendor_extension"
		}
	}
	assert.True(t, unknownEnum, "unknown node type should warn")
	assert.True(t, unknownKey, "unknown root should warn")
}

func TestBookmarksParserMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Bookmarks")
	require.NoError(t, os.WriteFile(path, []byte(`{"roots": {`), 0640))

	records, warnings, err := BookmarksParser{}.Parse(path, nil)
	require.NoError(t, err)
	assert.True(t, records.Empty())
	require.NotEmpty(t, warnings)
	assert.Equal(t, surfsifter.SeverityError, warnings[0].Severity)
}
