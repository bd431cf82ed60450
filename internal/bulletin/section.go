package bulletin

import (
	"strings"

	"github.com/sells-group/nav-cli/internal/model"
)

// Section is the header context carried forward onto data rows. Fields stay
// set until a later header line replaces them; data rows never change them.
type Section struct {
	SchemeType        string
	SchemeCategory    string
	SchemeSubCategory string
	FundHouse         string
}

// Next applies line to s. It reports false for data lines (those containing
// the field separator), returning s unchanged. Header lines that match no
// rule are consumed without changing s.
func (s Section) Next(line string) (Section, bool) {
	if strings.Contains(line, fieldSep) {
		return s, false
	}
	switch {
	case strings.HasPrefix(line, "Open Ended"), strings.HasPrefix(line, "Close Ended"):
		s.SchemeType = line
		s.SchemeCategory = ""
		s.SchemeSubCategory = ""
	case strings.Contains(line, "Fund"):
		s.FundHouse = line
	}
	return s, true
}

// Stamp builds a NavRow from the eight positional fields of a data line.
// Repurchase and sale prices (fields 6 and 7) are discarded.
func (s Section) Stamp(fields []string, line int) model.NavRow {
	f := func(i int) string { return strings.TrimSpace(fields[i]) }
	return model.NavRow{
		SchemeType:        s.SchemeType,
		SchemeCategory:    s.SchemeCategory,
		SchemeSubCategory: s.SchemeSubCategory,
		SchemeCode:        f(0),
		SchemeName:        f(1),
		ISINGrowth:        f(2),
		ISINReinv:         f(3),
		NAV:               f(4),
		NAVDate:           f(7),
		FundStructure:     s.FundHouse,
		Line:              line,
	}
}
