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

// Package localstorage parses the Chromium Local Storage LevelDB database.
// Record keys look like "_<origin>\x00\x01<storage key>"; values carry a
// one-byte encoding tag, 0 for UTF-16LE and 1 for Latin-1.
package localstorage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	surfsifter "github.com/gaestu/SurfSifter"
	"github.com/gaestu/SurfSifter/parse"
)

const (
	encodingUTF16LE = 0x00
	encodingLatin1  = 0x01
)

// Parser reads all storage records of one LevelDB directory. Discovery
// stages every file of the leveldb directory into one staging directory;
// to parse the database exactly once, only the CURRENT file triggers a
// parse and every other staged file yields an empty batch.
type Parser struct{}

// Name implements parse.Parser.
func (Parser) Name() string { return "chromium_localstorage" }

// ArtifactTypes implements parse.Parser.
func (Parser) ArtifactTypes() []string { return []string{"localstorage"} }

// Parse opens the staged LevelDB directory read-only and decodes all
// storage records. Corruption degrades to a corrupt_container warning.
func (p Parser) Parse(path string, companions []string) (*parse.Records, []surfsifter.Warning, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, errors.Wrap(err, "staged leveldb file missing")
	}
	if filepath.Base(path) != "CURRENT" {
		return &parse.Records{}, nil, nil
	}

	dir := filepath.Dir(path)
	db, err := leveldb.OpenFile(dir, &opt.Options{
		ReadOnly:       true,
		ErrorIfMissing: true,
	})
	if err != nil {
		return &parse.Records{}, []surfsifter.Warning{{
			Type:      surfsifter.WarnCorruptContainer,
			Severity:  surfsifter.SeverityWarning,
			Category:  surfsifter.CategoryLevelDB,
			ItemName:  dir,
			ItemValue: err.Error(),
		}}, nil
	}
	defer db.Close()

	records := &parse.Records{}
	var warnings []surfsifter.Warning

	iter := db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		key := append([]byte{}, iter.Key()...)
		value := append([]byte{}, iter.Value()...)

		switch {
		case len(key) > 0 && key[0] == '_':
			item, ok := decodeRecord(key, value, &warnings, dir)
			if ok {
				records.LocalStorage = append(records.LocalStorage, item)
			}
		case bytes.HasPrefix(key, []byte("META:")), string(key) == "VERSION":
			// bookkeeping rows carry no user data
		default:
			warnings = append(warnings, surfsifter.Warning{
				Type:      surfsifter.WarnUnknownPrefix,
				Severity:  surfsifter.SeverityInfo,
				Category:  surfsifter.CategoryLevelDB,
				ItemName:  printableKey(key),
				Context:   dir,
			})
		}
	}
	if err := iter.Error(); err != nil {
		warnings = append(warnings, surfsifter.Warning{
			Type:      surfsifter.WarnCorruptContainer,
			Severity:  surfsifter.SeverityWarning,
			Category:  surfsifter.CategoryLevelDB,
			ItemName:  dir,
			ItemValue: err.Error(),
		})
	}
	return records, warnings, nil
}

func decodeRecord(key, value []byte, warnings *[]surfsifter.Warning, dir string) (parse.LocalStorageItem, bool) {
	sep := bytes.Index(key, []byte{0x00, 0x01})
	if sep < 1 {
		*warnings = append(*warnings, surfsifter.Warning{
			Type:      surfsifter.WarnUnknownPrefix,
			Severity:  surfsifter.SeverityInfo,
			Category:  surfsifter.CategoryLevelDB,
			ItemName:  printableKey(key),
			Context:   dir,
		})
		return parse.LocalStorageItem{}, false
	}
	origin := string(key[1:sep])
	storageKey := string(key[sep+2:])

	decoded, ok := decodeValue(value)
	if !ok {
		*warnings = append(*warnings, surfsifter.Warning{
			Type:      surfsifter.WarnUnknownEnumValue,
			Severity:  surfsifter.SeverityWarning,
			Category:  surfsifter.CategoryLevelDB,
			ItemName:  "value encoding",
			ItemValue: printableKey(value[:1]),
			Context:   dir,
		})
		return parse.LocalStorageItem{}, false
	}
	return parse.LocalStorageItem{Origin: origin, Key: storageKey, Value: decoded}, true
}

func decodeValue(value []byte) (string, bool) {
	if len(value) == 0 {
		return "", true
	}
	payload := value[1:]
	switch value[0] {
	case encodingUTF16LE:
		if len(payload)%2 != 0 {
			payload = payload[:len(payload)-1]
		}
		units := make([]uint16, len(payload)/2)
		for i := range units {
			units[i] = uint16(payload[2*i]) | uint16(payload[2*i+1])<<8
		}
		return string(utf16.Decode(units)), true
	case encodingLatin1:
		runes := make([]rune, len(payload))
		for i, b := range payload {
			runes[i] = rune(b)
		}
		return string(runes), true
	default:
		return "", false
	}
}

func printableKey(key []byte) string {
	var b strings.Builder
	for _, c := range key {
		if c >= 0x20 && c < 0x7f {
			b.WriteByte(c)
		} else {
			b.WriteString("\\x")
			const hexdigits = "0123456789abcdef"
			b.WriteByte(hexdigits[c>>4])
			b.WriteByte(hexdigits[c&0x0f])
		}
	}
	return b.String()
}
