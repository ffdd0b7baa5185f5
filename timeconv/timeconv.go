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

// Package timeconv converts the timestamp epochs found in browser artifacts
// to UTC time values. Every format gets an explicit, named conversion
// function; a zero or negative source value converts to nil ("unknown"),
// never to the current time.
package timeconv

import "time"

// Seconds between 1601-01-01 and 1970-01-01.
const windowsToUnixSeconds = 11644473600

// Seconds between 1970-01-01 and 2001-01-01.
const unixToCocoaSeconds = 978307200

// FromWebKit converts a WebKit/Chromium timestamp, microseconds since
// 1601-01-01 UTC. Used by Chromium History, Cookies and Bookmarks.
func FromWebKit(us int64) *time.Time {
	if us <= 0 {
		return nil
	}
	unixUs := us - windowsToUnixSeconds*1e6
	t := time.Unix(unixUs/1e6, (unixUs%1e6)*1000).UTC()
	return &t
}

// FromFiletime converts a Windows FILETIME, 100-nanosecond intervals since
// 1601-01-01 UTC. Used by registry hives, LNK files and ESE databases.
func FromFiletime(ticks int64) *time.Time {
	if ticks <= 0 {
		return nil
	}
	unixNs := (ticks - windowsToUnixSeconds*1e7) * 100
	t := time.Unix(0, unixNs).UTC()
	return &t
}

// FromPRTime converts a Mozilla PRTime, microseconds since 1970-01-01 UTC.
// Used by places.sqlite and Firefox bookmark backups.
func FromPRTime(us int64) *time.Time {
	if us <= 0 {
		return nil
	}
	t := time.Unix(us/1e6, (us%1e6)*1000).UTC()
	return &t
}

// FromUnixSeconds converts seconds since 1970-01-01 UTC. Used by Firefox
// cache2 headers and most JSON artifacts.
func FromUnixSeconds(s int64) *time.Time {
	if s <= 0 {
		return nil
	}
	t := time.Unix(s, 0).UTC()
	return &t
}

// FromUnixMilli converts milliseconds since 1970-01-01 UTC. Used by LevelDB
// records and some session formats.
func FromUnixMilli(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

// FromCocoa converts a Cocoa/Core Data timestamp, seconds since 2001-01-01
// UTC. Used by Safari History.db.
func FromCocoa(s float64) *time.Time {
	if s <= 0 {
		return nil
	}
	sec := int64(s)
	nsec := int64((s - float64(sec)) * 1e9)
	t := time.Unix(sec+unixToCocoaSeconds, nsec).UTC()
	return &t
}

// ISO formats a converted timestamp for storage. Nil formats to "".
func ISO(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
