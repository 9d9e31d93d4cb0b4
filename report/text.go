package report

import (
	"bufio"
	"io"
	"strings"

	"zen-records/domain"
)

// WriteText renders r as plain text, one line per report line.
func WriteText(w io.Writer, r Report) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(r.Title + "\n")
	bw.WriteString(r.Subtitle + "\n")
	bw.WriteString("Generated: " + domain.LongDate(r.GeneratedAt) + "\n")
	bw.WriteString(strings.Repeat("-", 40) + "\n")
	for _, s := range r.Sections {
		bw.WriteString("\n")
		if s.Heading != "" {
			bw.WriteString(s.Heading + "\n")
		}
		for _, l := range s.Lines {
			bw.WriteString(l + "\n")
		}
	}
	return bw.Flush()
}
