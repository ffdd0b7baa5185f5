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
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	surfsifter "github.com/gaestu/SurfSifter"
	"github.com/gaestu/SurfSifter/parse"
	"github.com/gaestu/SurfSifter/timeconv"
)

// The bookmark roots Chromium writes. Additional roots are parsed anyway and
// reported as unknown keys.
var knownBookmarkRoots = map[string]bool{
	"bookmark_bar": true, "other": true, "synced": true,
}

// BookmarksParser parses the Chromium Bookmarks JSON document. It walks the
// folder tree recursively; date_added is a WebKit timestamp serialized as a
// decimal string.
type BookmarksParser struct{}

// Name implements parse.Parser.
func (BookmarksParser) Name() string { return "chromium_bookmarks" }

// ArtifactTypes implements parse.Parser.
func (BookmarksParser) ArtifactTypes() []string { return []string{"bookmarks"} }

// Parse reads every url node reachable from the roots object.
func (p BookmarksParser) Parse(path string, companions []string) (*parse.Records, []surfsifter.Warning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "staged bookmarks file missing")
	}

	var warnings []surfsifter.Warning
	if !gjson.ValidBytes(data) {
		warnings = append(warnings, surfsifter.Warning{
			Type:     surfsifter.WarnParse,
			Severity: surfsifter.SeverityError,
			Category: surfsifter.CategoryJSON,
			ItemName: path,
		})
		return &parse.Records{}, warnings, nil
	}

	records := &parse.Records{}
	roots := gjson.GetBytes(data, "roots")
	roots.ForEach(func(key, root gjson.Result) bool {
		if !knownBookmarkRoots[key.String()] {
			warnings = append(warnings, surfsifter.Warning{
				Type:     surfsifter.WarnUnknownKey,
				Severity: surfsifter.SeverityInfo,
				Category: surfsifter.CategoryJSON,
				ItemName: "roots." + key.String(),
				Context:  path,
			})
		}
		p.walkNode(root, key.String(), records, &warnings, path)
		return true
	})
	return records, warnings, nil
}

func (p BookmarksParser) walkNode(node gjson.Result, folder string, records *parse.Records, warnings *[]surfsifter.Warning, path string) {
	switch node.Get("type").String() {
	case "url":
		records.Bookmarks = append(records.Bookmarks, parse.Bookmark{
			URL:        node.Get("url").String(),
			Title:      node.Get("name").String(),
			FolderPath: folder,
			Added:      webkitString(node.Get("date_added").String()),
		})
	case "folder", "":
		name := node.Get("name").String()
		childFolder := folder
		if name != "" {
			childFolder = folder + "/" + name
		}
		node.Get("children").ForEach(func(_, child gjson.Result) bool {
			p.walkNode(child, childFolder, records, warnings, path)
			return true
		})
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

func webkitString(s string) *time.Time {
	if s == "" {
		return nil
	}
	us, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return timeconv.FromWebKit(us)
}
