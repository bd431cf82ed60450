package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nav-cli/internal/model"
)

// DefaultBaseURL is the AMFI NAV history report endpoint.
const DefaultBaseURL = "https://portal.amfiindia.com/DownloadNAVHistoryReport_Po.aspx"

// maxBulletinBytes caps a single download.
const maxBulletinBytes = 256 << 20

// FetchError reports that no usable bulletin could be retrieved for a date.
type FetchError struct {
	Date   time.Time
	URL    string
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetcher: bulletin for %s: %s", e.Date.Format(model.ISODateLayout), e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Bulletins retrieves one-day NAV bulletins and stores them under a data directory.
type Bulletins struct {
	fetcher Fetcher
	baseURL string
	dataDir string
}

// NewBulletins creates a Bulletins. An empty baseURL selects DefaultBaseURL.
func NewBulletins(f Fetcher, baseURL, dataDir string) *Bulletins {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Bulletins{fetcher: f, baseURL: baseURL, dataDir: dataDir}
}

// URL returns the report URL covering exactly date.
func (b *Bulletins) URL(date time.Time) string {
	d := date.Format(model.BulletinDateLayout)
	q := url.Values{}
	q.Set("frmdt", d)
	q.Set("todt", d)
	return b.baseURL + "?" + q.Encode()
}

// Path returns where the bulletin for date is stored.
func (b *Bulletins) Path(date time.Time) string {
	return filepath.Join(b.dataDir, "navall_"+date.Format(model.ISODateLayout)+".txt")
}

// Fetch downloads the bulletin for date and writes it to Path(date). A
// non-200 response or a body without a single digit is a *FetchError.
func (b *Bulletins) Fetch(ctx context.Context, date time.Time) (string, error) {
	u := b.URL(date)
	log := zap.L().With(zap.String("component", "fetcher"), zap.String("date", date.Format(model.ISODateLayout)))

	body, err := b.fetcher.Download(ctx, u)
	if err != nil {
		return "", &FetchError{Date: date, URL: u, Reason: "download failed", Err: err}
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(body, maxBulletinBytes))
	if err != nil {
		return "", &FetchError{Date: date, URL: u, Reason: "read body", Err: err}
	}
	if !bytes.ContainsAny(data, "0123456789") {
		return "", &FetchError{Date: date, URL: u, Reason: "nothing to parse"}
	}

	path := b.Path(date)
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	log.Info("bulletin saved", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "fetcher: create dir for %s", path)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "fetcher: create temp for %s", path)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrapf(err, "fetcher: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrapf(err, "fetcher: close %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return eris.Wrapf(err, "fetcher: rename into %s", path)
	}
	return nil
}
