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
	"bytes"
	"encoding/binary"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	surfsifter "github.com/gaestu/SurfSifter"
	"github.com/gaestu/SurfSifter/parse"
	"github.com/gaestu/SurfSifter/timeconv"
)

// mozLz4Magic precedes every mozLz4 file: eight magic bytes, then the
// little-endian decompressed size, then one raw LZ4 block.
var mozLz4Magic = []byte("mozLz40\x00")

// maxMozLz4Size caps the declared decompressed size. Bookmark backups are
// small; a larger declaration indicates corruption or a decompression bomb.
const maxMozLz4Size = 512 << 20

const (
	placeTypeBookmark  = "text/x-moz-place"
	placeTypeContainer = "text/x-moz-place-container"
	placeTypeSeparator = "text/x-moz-place-separator"
)

// DecompressMozLz4 unwraps a mozLz4 container.
func DecompressMozLz4(data []byte) ([]byte, error) {
	if len(data) < len(mozLz4Magic)+4 {
		return nil, errors.Errorf("file too short for mozLz4: %d bytes", len(data))
	}
	if !bytes.Equal(data[:len(mozLz4Magic)], mozLz4Magic) {
		return nil, errors.New("missing mozLz4 magic")
	}
	size := binary.LittleEndian.Uint32(data[len(mozLz4Magic):])
	if size > maxMozLz4Size {
		return nil, errors.Errorf("declared size %d exceeds limit", size)
	}
	out := make([]byte, size)
	n, err := lz4.UncompressBlock(data[len(mozLz4Magic)+4:], out)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 block decompression failed")
	}
	if n != int(size) {
		return nil, errors.Errorf("decompressed %d bytes, header declared %d", n, size)
	}
	return out, nil
}

// BookmarkBackupParser parses Firefox bookmarkbackups/*.jsonlz4 files: a
// mozLz4 container around a places bookmark tree. Timestamps are PRTime,
// microseconds since the Unix epoch.
type BookmarkBackupParser struct{}

// Name implements parse.Parser.
func (BookmarkBackupParser) Name() string { return "firefox_bookmarkbackup" }

// ArtifactTypes implements parse.Parser.
func (BookmarkBackupParser) ArtifactTypes() []string { return []string{"bookmarkbackups"} }

// Parse decompresses and walks the backup tree.
func (p BookmarkBackupParser) Parse(path string, companions []string) (*parse.Records, []surfsifter.Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "staged bookmark backup missing")
	}

	var warnings []surfsifter.Warning
	plain, err := DecompressMozLz4(data)
	if err != nil {
		warnings = append(warnings, surfsifter.Warning{
			Type:      surfsifter.WarnCorruptContainer,
			Severity:  surfsifter.SeverityWarning,
			Category:  surfsifter.CategoryBinary,
			ItemName:  path,
			ItemValue: err.Error(),
		})
		return &parse.Records{}, warnings, nil
	}
	if !gjson.ValidBytes(plain) {
		warnings = append(warnings, surfsifter.Warning{
			Type:     surfsifter.WarnParse,
			Severity: surfsifter.SeverityError,
			Category: surfsifter.CategoryJSON,
			ItemName: path,
		})
		return &parse.Records{}, warnings, nil
	}

	records := &parse.Records{}
	p.walkPlace(gjson.ParseBytes(plain), "", records, &warnings, path)
	return records, warnings, nil
}

func (p BookmarkBackupParser) walkPlace(node gjson.Result, folder string, records *parse.Records, warnings *[]surfsifter.Warning, path string) {
	switch node.Get("type").String() {
	case placeTypeBookmark:
		uri := node.Get("uri").String()
		if uri == "" {
			return
		}
		records.Bookmarks = append(records.Bookmarks, parse.Bookmark{
			URL:        uri,
			Title:      node.Get("title").String(),
			FolderPath: folder,
			Added:      timeconv.FromPRTime(node.Get("dateAdded").Int()),
		})
	case placeTypeContainer, "":
		childFolder := folder
		if title := node.Get("title").String(); title != "" {
			if childFolder != "" {
				childFolder += "/"
			}
			childFolder += title
		}
		node.Get("children").ForEach(func(_, child gjson.Result) bool {
			p.walkPlace(child, childFolder, records, warnings, path)
			return true
		})
	case placeTypeSeparator:
		// carries no URL
	default:
		*warnings = append(*warnings, surfsifter.Warning{
			Type:      surfsifter.WarnUnknownEnumValue,
			Severity:  surfsifter.SeverityInfo,
			Category:  surfsifter.CategoryJSON,
			ItemName:  "type",
			ItemValue: node.Get("type").String(),
			Context:   path,
		})
	}
}
