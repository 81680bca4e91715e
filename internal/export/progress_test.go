package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadMeter(t *testing.T) {
	tests := map[string]struct {
		total    int64
		writes   []string
		status   bool
		expLines []string
	}{
		"A known size should show the percentage.": {
			total:    10,
			writes:   []string{"hello", "world"},
			status:   true,
			expLines: []string{"  acme/api [===============               ]  50% of 10 B", "  acme/api [==============================] 100% of 10 B"},
		},
		"An unknown size should show the downloaded bytes.": {
			total:    -1,
			writes:   []string{"data", "more"},
			status:   true,
			expLines: []string{"  acme/api 4 B downloaded", "  acme/api 8 B downloaded"},
		},
		"Writes that don't change the shown percentage should not redraw.": {
			total:    1000,
			writes:   []string{"a", "b", "c"},
			status:   true,
			expLines: []string{"  acme/api [                              ]   0% of 1000 B"},
		},
		"Without a status writer nothing should be drawn.": {
			total:  10,
			writes: []string{"hello"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			require := require.New(t)
			assert := assert.New(t)

			var dst, status bytes.Buffer
			m := newDownloadMeter(&dst, nil, "acme/api", test.total)
			if test.status {
				m = newDownloadMeter(&dst, &status, "acme/api", test.total)
			}

			for _, w := range test.writes {
				_, err := m.Write([]byte(w))
				require.NoError(err)
			}
			m.done()

			all := strings.Join(test.writes, "")
			assert.Equal(all, dst.String())
			assert.Equal(int64(len(all)), m.written)

			if !test.status {
				return
			}
			exp := "\r" + strings.Join(test.expLines, "\r") + "\n"
			assert.Equal(exp, status.String())
		})
	}
}

func TestDownloadMeterDoneWithoutWrites(t *testing.T) {
	var status bytes.Buffer
	m := newDownloadMeter(&bytes.Buffer{}, &status, "acme/api", 10)
	m.done()
	assert.Empty(t, status.String())
}

func TestFormatSize(t *testing.T) {
	tests := map[string]struct {
		bytes int64
		exp   string
	}{
		"Bytes":     {bytes: 512, exp: "512 B"},
		"Kilobytes": {bytes: 2048, exp: "2.0 KB"},
		"Megabytes": {bytes: 5 << 20, exp: "5.0 MB"},
		"Gigabytes": {bytes: 3 << 30, exp: "3.0 GB"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, formatSize(test.bytes))
		})
	}
}
