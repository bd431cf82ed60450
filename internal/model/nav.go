package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Date layouts used by the bulletin and the store.
const (
	BulletinDateLayout = "02-Jan-2006" // e.g. 02-Apr-2025
	ISODateLayout      = "2006-01-02"
)

// NavTable is the persistence table for NAV records.
const NavTable = "nav_data"

// NavColumns is the fixed persistence column order for NavRecord tuples.
var NavColumns = []string{
	"scheme_type",
	"scheme_category",
	"scheme_sub_category",
	"scheme_code",
	"isin_growth",
	"isin_reinv",
	"scheme_name",
	"nav",
	"nav_date",
	"fund_structure",
}

// NavKeyColumns form the identity key of a persisted NAV row.
var NavKeyColumns = []string{"scheme_code", "nav_date"}

// NavUpdateColumns are the only columns overwritten when a key is upserted again.
// Scheme type, categories and ISINs keep their first-inserted values.
var NavUpdateColumns = []string{"nav", "scheme_name", "fund_structure"}

// NavRow is one data line of a bulletin, stamped with the section context that
// was active when it was read. Values are kept as text until validation.
type NavRow struct {
	SchemeType        string `json:"scheme_type"`
	SchemeCategory    string `json:"scheme_category"`
	SchemeSubCategory string `json:"scheme_sub_category"`
	SchemeCode        string `json:"scheme_code"`
	ISINGrowth        string `json:"isin_growth"`
	ISINReinv         string `json:"isin_reinv"`
	SchemeName        string `json:"scheme_name"`
	NAV               string `json:"nav"`
	NAVDate           string `json:"nav_date"`
	FundStructure     string `json:"fund_structure"`
	Line              int    `json:"line"` // 1-based line number in the decoded bulletin
}

// NavRecord is a validated NAV observation ready for persistence.
type NavRecord struct {
	SchemeType        string          `json:"scheme_type"`
	SchemeCategory    string          `json:"scheme_category"`
	SchemeSubCategory string          `json:"scheme_sub_category"`
	SchemeCode        string          `json:"scheme_code"`
	ISINGrowth        string          `json:"isin_growth"`
	ISINReinv         string          `json:"isin_reinv"`
	SchemeName        string          `json:"scheme_name"`
	NAV               decimal.Decimal `json:"nav"`
	NAVDate           time.Time       `json:"nav_date"`
	FundStructure     string          `json:"fund_structure"`
}

// NavKey identifies a persisted NAV row.
type NavKey struct {
	SchemeCode string
	NAVDate    string // ISO date
}

// Key returns the (scheme_code, nav_date) identity of r.
func (r NavRecord) Key() NavKey {
	return NavKey{SchemeCode: r.SchemeCode, NAVDate: r.NAVDate.Format(ISODateLayout)}
}

// LoadSummary reports the outcome of loading one set of validated records.
type LoadSummary struct {
	Records    int           `json:"records"`
	Superseded int           `json:"superseded"`
	Inserted   int64         `json:"inserted"`
	Updated    int64         `json:"updated"`
	Batches    int           `json:"batches"`
	BatchSize  int           `json:"batch_size"`
	Duration   time.Duration `json:"duration"`
}
