package output

import (
	"fmt"

	"github.com/rootsploit/deepx/internal/probe"
)

// FormatRecord renders one liveness report line.
//
//	https://a.example.com [status: 200] [title: Home] [size: 512 bytes]
//	https://b.example.com [not alive]
func FormatRecord(r probe.Record) string {
	if !r.Alive {
		return fmt.Sprintf("%s [not alive]", r.URL())
	}
	title := r.Title
	if title == "" {
		title = "N/A"
	}
	return fmt.Sprintf("%s [status: %d] [title: %s] [size: %d bytes]", r.URL(), r.StatusCode, title, r.Size)
}

// FormatReport renders every record, alive ones first, each group in input
// order.
func FormatReport(records []probe.Record) []string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		if r.Alive {
			lines = append(lines, FormatRecord(r))
		}
	}
	for _, r := range records {
		if !r.Alive {
			lines = append(lines, FormatRecord(r))
		}
	}
	return lines
}
