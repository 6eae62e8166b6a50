// Package csvimport turns uploaded CSV and XLSX files into leads.
package csvimport

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"leadboard-engine/internal/domain"
	"leadboard-engine/internal/ingest/mapping"
)

var ErrNoRows = errors.New("csvimport: no data rows")

// Options control how columns become lead fields.
type Options struct {
	// Mapping is csv header -> lead field. When empty the fixed alias headers
	// are used and unrecognized columns are dropped.
	Mapping map[string]string
	Now     time.Time
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// Parse reads a header-first CSV document. Blank lines are skipped; a
// malformed document fails as a whole.
func Parse(r io.Reader, opts Options) ([]domain.Lead, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return FromRows(rows, opts)
}

// ParseXLSX reads the named worksheet, or the first one when sheet is empty.
func ParseXLSX(r io.Reader, sheet string, opts Options) ([]domain.Lead, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, fmt.Errorf("open xlsx: no worksheet found")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return FromRows(rows, opts)
}

// Sniff picks the parser from the upload's leading bytes: XLSX files are zip
// archives, everything else is treated as CSV.
func Sniff(data []byte, sheet string, opts Options) ([]domain.Lead, error) {
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return ParseXLSX(bytes.NewReader(data), sheet, opts)
	}
	return Parse(bytes.NewReader(data), opts)
}

// FromRows maps already-split rows, header row first.
func FromRows(rows [][]string, opts Options) ([]domain.Lead, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		headers[i] = strings.TrimSpace(h)
	}

	var data [][]string
	for _, r := range rows[1:] {
		if !blank(r) {
			data = append(data, r)
		}
	}
	if len(data) == 0 {
		return nil, ErrNoRows
	}

	now := opts.now()
	if len(opts.Mapping) > 0 {
		return byMapping(headers, data, opts.Mapping, now), nil
	}
	return byAlias(headers, data, now), nil
}

func byAlias(headers []string, data [][]string, now time.Time) []domain.Lead {
	plan := mapping.Resolve(headers, mapping.ExactOnly)
	out := make([]domain.Lead, 0, len(data))
	for i, r := range data {
		l := plan.Lead(r)
		l.Extra = nil
		l.ID = fmt.Sprintf("imported-%d", i+1)
		l.ApplyDefaults(now)
		out = append(out, l)
	}
	return out
}

func byMapping(headers []string, data [][]string, m map[string]string, now time.Time) []domain.Lead {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	stamp := now.UnixMilli()
	out := make([]domain.Lead, 0, len(data))
	for i, r := range data {
		l := domain.Lead{
			ID:        fmt.Sprintf("imported-%d-%d", stamp, i),
			CreatedAt: now.Format(domain.DateLayout),
		}
		for header, field := range m {
			field = strings.TrimSpace(field)
			col, ok := idx[strings.TrimSpace(header)]
			if !ok || field == "" || col >= len(r) {
				continue
			}
			v := strings.TrimSpace(r[col])
			if field == "createdAt" {
				if v == "" {
					continue
				}
				v = domain.NormalizeDate(v)
			}
			l.SetField(field, v)
		}
		l.ApplyDefaults(now)
		out = append(out, l)
	}
	return out
}

func blank(r []string) bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
