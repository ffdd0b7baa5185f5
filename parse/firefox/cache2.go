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

// Package firefox parses Mozilla Firefox artifacts: cache2 entry files and
// mozLz4 compressed bookmark backups.
package firefox

import (
	"bufio"
	"bytes"
	"compress/flate"
	"compress/gzip"
	"encoding/binary"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	surfsifter "github.com/gaestu/SurfSifter"
	"github.com/gaestu/SurfSifter/parse"
	"github.com/gaestu/SurfSifter/timeconv"
)

// cache2 entry file layout, back to front: the last four bytes are the
// big-endian offset of the metadata block; the body occupies [0, metaOffset);
// at metaOffset sits a big-endian SuperFastHash over everything between it
// and the trailing offset word; then the fixed header, the null-terminated
// key and the key\0value\0 element list.
const (
	cache2HeaderLenV1 = 28
	cache2HeaderLenV2 = 32
	cache2MinFileLen  = 4 + 4 + cache2HeaderLenV1
)

// Element keys the browser is known to write into cache2 metadata.
var knownCache2Elements = map[string]bool{
	"request-method": true, "response-head": true, "original-response-headers": true,
	"security-info": true, "predictor::origin": true, "net-response-time-onstart": true,
	"net-response-time-onstop": true, "necko:classified": true, "strongly-framed": true,
	"alt-data": true, "ctid": true, "eTLD1Access": true,
}

type cache2Header struct {
	version      uint32
	fetchCount   uint32
	lastFetched  uint32
	lastModified uint32
	frecency     uint32
	expiration   uint32
	keySize      uint32
	flags        uint32
}

// Cache2Parser parses Firefox cache2 entry files. The artifact glob matches
// the entries directory, so a staged candidate can be either a single entry
// file or an index file that is skipped.
type Cache2Parser struct {
	// Fs abstracts file access for tests; nil means the OS filesystem.
	Fs afero.Fs
}

// Name implements parse.Parser.
func (Cache2Parser) Name() string { return "firefox_cache2" }

// ArtifactTypes implements parse.Parser.
func (Cache2Parser) ArtifactTypes() []string { return []string{"cache"} }

func (p Cache2Parser) fs() afero.Fs {
	if p.Fs != nil {
		return p.Fs
	}
	return afero.NewOsFs()
}

// Parse reads one cache2 entry file. Structural corruption, including a
// checksum mismatch, degrades to a corrupt_container warning and an empty
// batch; only an unreadable file is an error.
func (p Cache2Parser) Parse(path string, companions []string) (*parse.Records, []surfsifter.Warning, error) {
	data, err := afero.ReadFile(p.fs(), path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "staged cache file missing")
	}

	// the cache index carries no entry data
	if filepath.Base(path) == "index" {
		return &parse.Records{}, nil, nil
	}

	entry, warnings, perr := p.parseEntry(data, path)
	if perr != nil {
		warnings = append(warnings, surfsifter.Warning{
			Type:      surfsifter.WarnCorruptContainer,
			Severity:  surfsifter.SeverityWarning,
			Category:  surfsifter.CategoryBinary,
			ItemName:  path,
			ItemValue: perr.Error(),
		})
		return &parse.Records{}, warnings, nil
	}
	return &parse.Records{CacheEntries: []parse.CacheEntry{*entry}}, warnings, nil
}

func (p Cache2Parser) parseEntry(data []byte, path string) (*parse.CacheEntry, []surfsifter.Warning, error) {
	if len(data) < cache2MinFileLen {
		return nil, nil, errors.Errorf("file too short for a cache entry: %d bytes", len(data))
	}

	metaOffset := binary.BigEndian.Uint32(data[len(data)-4:])
	metaStart := int(metaOffset)
	if metaStart < 0 || metaStart+4 > len(data)-4 {
		return nil, nil, errors.Errorf("metadata offset %d outside file of %d bytes", metaOffset, len(data))
	}

	wantChecksum := binary.BigEndian.Uint32(data[metaStart:])
	meta := data[metaStart+4 : len(data)-4]
	if got := SuperFastHash(meta); got != wantChecksum {
		return nil, nil, &surfsifter.ChecksumMismatchError{File: path, Expected: wantChecksum, Actual: got}
	}

	header, rest, err := parseCache2Header(meta)
	if err != nil {
		return nil, nil, err
	}
	if int(header.keySize) > len(rest) {
		return nil, nil, errors.Errorf("key size %d exceeds metadata", header.keySize)
	}
	key := string(rest[:header.keySize])
	rest = rest[header.keySize:]
	if len(rest) > 0 && rest[0] == 0 {
		rest = rest[1:]
	}

	entry := &parse.CacheEntry{
		SourceFile:   filepath.Base(path),
		CacheKey:     key,
		URL:          urlFromCacheKey(key),
		FetchCount:   int(header.fetchCount),
		LastFetched:  timeconv.FromUnixSeconds(int64(header.lastFetched)),
		LastModified: timeconv.FromUnixSeconds(int64(header.lastModified)),
		Expiration:   timeconv.FromUnixSeconds(int64(header.expiration)),
		Body:         data[:metaStart],
	}

	var warnings []surfsifter.Warning
	for elemKey, elemValue := range parseElements(rest) {
		if !knownCache2Elements[elemKey] {
			warnings = append(warnings, surfsifter.Warning{
				Type:     surfsifter.WarnUnknownKey,
				Severity: surfsifter.SeverityInfo,
				Category: surfsifter.CategoryBinary,
				ItemName: elemKey,
				Context:  path,
			})
		}
		if elemKey == "response-head" {
			applyResponseHead(entry, elemValue)
		}
	}

	if len(entry.Body) > 0 && entry.ContentEncoding != "" {
		decoded, derr := decompressBody(entry.Body, entry.ContentEncoding)
		if derr != nil {
			// keep the compressed bytes rather than losing the record
			entry.BodyRaw = true
			warnings = append(warnings, surfsifter.Warning{
				Type:      surfsifter.WarnCompression,
				Severity:  surfsifter.SeverityWarning,
				Category:  surfsifter.CategoryBinary,
				ItemName:  path,
				ItemValue: entry.ContentEncoding + ": " + derr.Error(),
			})
		} else {
			entry.Body = decoded
		}
	}
	return entry, warnings, nil
}

func parseCache2Header(meta []byte) (cache2Header, []byte, error) {
	if len(meta) < cache2HeaderLenV1 {
		return cache2Header{}, nil, errors.Errorf("metadata too short: %d bytes", len(meta))
	}
	h := cache2Header{
		version:      binary.BigEndian.Uint32(meta[0:]),
		fetchCount:   binary.BigEndian.Uint32(meta[4:]),
		lastFetched:  binary.BigEndian.Uint32(meta[8:]),
		lastModified: binary.BigEndian.Uint32(meta[12:]),
		frecency:     binary.BigEndian.Uint32(meta[16:]),
		expiration:   binary.BigEndian.Uint32(meta[20:]),
		keySize:      binary.BigEndian.Uint32(meta[24:]),
	}
	headerLen := cache2HeaderLenV1
	if h.version >= 2 {
		if len(meta) < cache2HeaderLenV2 {
			return cache2Header{}, nil, errors.Errorf("version %d metadata too short", h.version)
		}
		h.flags = binary.BigEndian.Uint32(meta[28:])
		headerLen = cache2HeaderLenV2
	}
	return h, meta[headerLen:], nil
}

// parseElements splits the trailing key\0value\0 list. A trailing key with a
// missing value terminator is dropped.
func parseElements(data []byte) map[string]string {
	elements := map[string]string{}
	parts := bytes.Split(data, []byte{0})
	for i := 0; i+1 < len(parts); i += 2 {
		if len(parts[i]) == 0 {
			continue
		}
		elements[string(parts[i])] = string(parts[i+1])
	}
	return elements
}

// urlFromCacheKey strips the context tags of a cache key. Keys look like
// "a,~1234,:https://example.com/x"; the URL starts after the first ":".
func urlFromCacheKey(key string) string {
	if idx := strings.Index(key, ":"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}

// applyResponseHead extracts the status code and relevant headers from the
// stored HTTP response head.
func applyResponseHead(entry *parse.CacheEntry, head string) {
	scanner := bufio.NewScanner(strings.NewReader(head))
	first := true
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if first {
			first = false
			fields := strings.Fields(line)
			if len(fields) >= 2 && strings.HasPrefix(fields[0], "HTTP/") {
				if code, err := strconv.Atoi(fields[1]); err == nil {
					entry.ResponseCode = code
				}
			}
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(name) {
		case "content-type":
			entry.ContentType = value
		case "content-encoding":
			entry.ContentEncoding = strings.ToLower(value)
		}
	}
}

func decompressBody(body []byte, encoding string) ([]byte, error) {
	switch encoding {
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "deflate":
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		return io.ReadAll(r)
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
	case "zstd":
		r, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "identity", "":
		return body, nil
	default:
		return nil, errors.Errorf("unsupported content encoding %q", encoding)
	}
}
