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

package timeconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromWebKit(t *testing.T) {
	tests := []struct {
		name string
		us   int64
		want string
	}{
		{"epoch start is unknown", 0, ""},
		{"negative is unknown", -1, ""},
		{"unix epoch", 11644473600000000, "1970-01-01T00:00:00Z"},
		{"known visit time", 13218134376000000, "2019-11-13T15:59:36Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ISO(FromWebKit(tt.us)))
		})
	}
}

func TestFromFiletime(t *testing.T) {
	// 2020-01-01T00:00:00Z as FILETIME ticks
	got := FromFiletime(132223104000000000)
	require.NotNil(t, got)
	assert.Equal(t, "2020-01-01T00:00:00Z", ISO(got))

	assert.Nil(t, FromFiletime(0))
}

func TestFromPRTime(t *testing.T) {
	got := FromPRTime(1573660776000000)
	require.NotNil(t, got)
	assert.Equal(t, "2019-11-13T15:59:36Z", ISO(got))

	assert.Nil(t, FromPRTime(0))
}

func TestFromUnixSeconds(t *testing.T) {
	got := FromUnixSeconds(1573660776)
	require.NotNil(t, got)
	assert.Equal(t, "2019-11-13T15:59:36Z", ISO(got))

	assert.Nil(t, FromUnixSeconds(-5))
}

func TestFromUnixMilli(t *testing.T) {
	got := FromUnixMilli(1573660776123)
	require.NotNil(t, got)
	assert.Equal(t, "2019-11-13T15:59:36Z", ISO(got))

	assert.Nil(t, FromUnixMilli(0))
}

func TestFromCocoa(t *testing.T) {
	// 2019-11-13T15:59:36Z is 595353576 seconds after 2001-01-01
	got := FromCocoa(595353576)
	require.NotNil(t, got)
	assert.Equal(t, "2019-11-13T15:59:36Z", ISO(got))

	assert.Nil(t, FromCocoa(0))
}

func TestISONil(t *testing.T) {
	assert.Equal(t, "", ISO(nil))
}
