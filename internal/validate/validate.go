// Package validate turns parsed bulletin rows into typed NAV records, dropping
// rows whose NAV or date cannot be trusted and counting every drop.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/nav-cli/internal/model"
)

// navPlaces is the fixed number of fractional digits stored for a NAV.
const navPlaces = 4

// headerCode marks the column-header line that bulletins carry as a data row.
const headerCode = "Scheme Code"

// maxNAV is the largest magnitude that fits NUMERIC(10,4).
var maxNAV = decimal.RequireFromString("999999.9999")

// ErrEmptyInput is returned when there are no rows to validate.
var ErrEmptyInput = eris.New("validate: empty input")

// SchemaError reports required fields that are blank on every row, which
// means the bulletin layout is not the one this package understands.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("validate: required fields absent: %s", strings.Join(e.Missing, ", "))
}

// Summary counts what happened to each input row.
type Summary struct {
	TotalIn     int `json:"total_in"`
	HeaderRows  int `json:"header_rows"`
	InvalidNAV  int `json:"invalid_nav"`
	InvalidDate int `json:"invalid_date"`
	OutOfRange  int `json:"out_of_range"`
	Missing     int `json:"missing"`
	TotalOut    int `json:"total_out"`
}

// Dropped is the number of input rows that did not survive.
func (s Summary) Dropped() int {
	return s.HeaderRows + s.InvalidNAV + s.InvalidDate + s.OutOfRange + s.Missing
}

// Result is the ordered set of surviving records.
type Result struct {
	Records []model.NavRecord
	Summary Summary
}

// ParseNAVDate parses a bulletin date such as 02-Apr-2025. Month names match
// case-insensitively. The result is midnight UTC.
func ParseNAVDate(s string) (time.Time, error) {
	return time.Parse(model.BulletinDateLayout, strings.TrimSpace(s))
}

// Validate converts rows to records. Rows are checked in order: header strip,
// NAV parse, date parse, range bound, rounding, final guard. A row is dropped
// at the first check it fails.
func Validate(rows []model.NavRow) (*Result, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}
	log := zap.L().With(zap.String("component", "validate"))

	sum := Summary{TotalIn: len(rows)}
	if rows[0].SchemeCode == headerCode {
		sum.HeaderRows = 1
		rows = rows[1:]
	}
	if len(rows) > 0 {
		if missing := absentFields(rows); len(missing) > 0 {
			return nil, &SchemaError{Missing: missing}
		}
	}

	out := make([]model.NavRecord, 0, len(rows))
	for _, r := range rows {
		nav, err := decimal.NewFromString(strings.TrimSpace(r.NAV))
		if err != nil {
			sum.InvalidNAV++
			log.Debug("invalid nav", zap.Int("line", r.Line), zap.String("scheme_code", r.SchemeCode), zap.String("nav", r.NAV))
			continue
		}

		date, err := ParseNAVDate(r.NAVDate)
		if err != nil {
			sum.InvalidDate++
			log.Debug("invalid nav date", zap.Int("line", r.Line), zap.String("scheme_code", r.SchemeCode), zap.String("nav_date", r.NAVDate))
			continue
		}

		if nav.Abs().GreaterThan(maxNAV) {
			sum.OutOfRange++
			log.Debug("nav out of range", zap.Int("line", r.Line), zap.String("scheme_code", r.SchemeCode), zap.String("nav", nav.String()))
			continue
		}

		nav = nav.RoundBank(navPlaces)

		if date.IsZero() || strings.TrimSpace(r.NAV) == "" {
			sum.Missing++
			continue
		}

		out = append(out, model.NavRecord{
			SchemeType:        r.SchemeType,
			SchemeCategory:    r.SchemeCategory,
			SchemeSubCategory: r.SchemeSubCategory,
			SchemeCode:        r.SchemeCode,
			ISINGrowth:        r.ISINGrowth,
			ISINReinv:         r.ISINReinv,
			SchemeName:        r.SchemeName,
			NAV:               nav,
			NAVDate:           date,
			FundStructure:     r.FundStructure,
		})
	}
	sum.TotalOut = len(out)

	logSummary(log, sum)
	return &Result{Records: out, Summary: sum}, nil
}

// absentFields lists required fields that are blank on every row.
func absentFields(rows []model.NavRow) []string {
	required := []struct {
		name string
		get  func(model.NavRow) string
	}{
		{"scheme_code", func(r model.NavRow) string { return r.SchemeCode }},
		{"scheme_name", func(r model.NavRow) string { return r.SchemeName }},
		{"nav", func(r model.NavRow) string { return r.NAV }},
		{"nav_date", func(r model.NavRow) string { return r.NAVDate }},
	}

	var missing []string
	for _, f := range required {
		present := false
		for _, r := range rows {
			if strings.TrimSpace(f.get(r)) != "" {
				present = true
				break
			}
		}
		if !present {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func logSummary(log *zap.Logger, sum Summary) {
	if sum.HeaderRows > 0 {
		log.Debug("dropped header row")
	}
	if sum.InvalidNAV > 0 {
		log.Warn("dropped rows with invalid nav", zap.Int("count", sum.InvalidNAV))
	}
	if sum.InvalidDate > 0 {
		log.Warn("dropped rows with invalid nav date", zap.Int("count", sum.InvalidDate))
	}
	if sum.OutOfRange > 0 {
		log.Warn("dropped rows with nav out of range", zap.Int("count", sum.OutOfRange))
	}
	if sum.Missing > 0 {
		log.Warn("dropped rows missing nav or date", zap.Int("count", sum.Missing))
	}
	log.Info("validation complete",
		zap.Int("total_in", sum.TotalIn),
		zap.Int("total_out", sum.TotalOut),
		zap.Int("dropped", sum.Dropped()),
	)
}
