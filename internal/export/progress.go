package export

import (
	"fmt"
	"io"
	"strings"
)

const progressBarWidth = 30

// downloadMeter counts the archive bytes written to dst and, when a status
// writer is set, redraws a progress line every time the shown value changes.
type downloadMeter struct {
	dst     io.Writer
	status  io.Writer
	project string
	// total is the advertised archive size, <= 0 when unknown.
	total   int64
	written int64
	shown   string
}

func newDownloadMeter(dst, status io.Writer, project string, total int64) *downloadMeter {
	return &downloadMeter{
		dst:     dst,
		status:  status,
		project: project,
		total:   total,
	}
}

func (m *downloadMeter) Write(p []byte) (int, error) {
	n, err := m.dst.Write(p)
	m.written += int64(n)
	m.render()
	return n, err
}

// done ends the progress line, if any was drawn.
func (m *downloadMeter) done() {
	if m.status != nil && m.shown != "" {
		fmt.Fprintln(m.status)
	}
}

func (m *downloadMeter) render() {
	if m.status == nil {
		return
	}

	var line string
	if m.total > 0 {
		pct := min(m.written*100/m.total, 100)
		filled := int(pct) * progressBarWidth / 100
		bar := strings.Repeat("=", filled) + strings.Repeat(" ", progressBarWidth-filled)
		line = fmt.Sprintf("  %s [%s] %3d%% of %s", m.project, bar, pct, formatSize(m.total))
	} else {
		line = fmt.Sprintf("  %s %s downloaded", m.project, formatSize(m.written))
	}

	if line == m.shown {
		return
	}
	m.shown = line
	fmt.Fprintf(m.status, "\r%s", line)
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
