// Package bulletin parses AMFI NAV history bulletins: semicolon-delimited data
// lines interleaved with section headers that name the scheme type and fund house.
package bulletin

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nav-cli/internal/model"
)

const (
	fieldSep   = ";"
	fieldCount = 8
)

// Stats describes one parse pass.
type Stats struct {
	Encoding  string `json:"encoding"`
	Lines     int    `json:"lines"`
	Blank     int    `json:"blank"`
	Headers   int    `json:"headers"`
	Rows      int    `json:"rows"`
	Discarded int    `json:"discarded"` // delimited lines without exactly eight fields
}

// Parse decodes a raw bulletin and returns its data rows in file order.
func Parse(data []byte) ([]model.NavRow, error) {
	rows, _, err := ParseWithStats(data)
	return rows, err
}

// ParseWithStats is Parse plus counters for the pass.
func ParseWithStats(data []byte) ([]model.NavRow, Stats, error) {
	text, charset, err := Decode(data)
	if err != nil {
		return nil, Stats{Encoding: charset}, err
	}
	rows, stats := ParseText(text)
	stats.Encoding = charset
	return rows, stats, nil
}

// ParseFile reads and parses the bulletin at path.
func ParseFile(path string) ([]model.NavRow, Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Stats{}, eris.Wrapf(err, "bulletin: read %s", path)
	}
	return ParseWithStats(data)
}

// ParseText runs the section state machine over already-decoded text.
func ParseText(text string) ([]model.NavRow, Stats) {
	var (
		rows  []model.NavRow
		stats Stats
		sec   Section
	)
	for i, raw := range splitLines(text) {
		stats.Lines++
		line := strings.TrimSpace(raw)
		if line == "" {
			stats.Blank++
			continue
		}

		next, header := sec.Next(line)
		if header {
			sec = next
			stats.Headers++
			continue
		}

		fields := strings.Split(line, fieldSep)
		if len(fields) != fieldCount {
			stats.Discarded++
			continue
		}
		rows = append(rows, sec.Stamp(fields, i+1))
		stats.Rows++
	}
	return rows, stats
}

// splitLines splits on \n, \r\n and bare \r.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}
