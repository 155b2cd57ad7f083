package target

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMissingColumn is returned by the tabular parser when no recognizable
// phone column exists. Structural problem, unlike a bad row which is skipped.
var ErrMissingColumn = errors.New("target: no phone number column found")

// phoneColumnAliases are matched exactly first, then case-insensitively.
var phoneColumnAliases = []string{"phone", "number", "phone_number", "Phone", "Number"}

// Row is a single decoded tabular record, header name -> cell value.
type Row map[string]string

// SkipReason classifies why a bulk input line or row was not turned into a target.
type SkipReason string

const (
	SkipInvalidNumber SkipReason = "invalid_number"
	SkipEmptyCell     SkipReason = "empty_cell"
)

// Skip records one rejected line/row so a partially valid import stays visible
// to the caller instead of silently shrinking.
type Skip struct {
	Index  int        `json:"index"`
	Value  string     `json:"value"`
	Reason SkipReason `json:"reason"`
}

// Report is the outcome of a bulk parse. Targets preserve input order,
// including duplicates; de-duplication is a caller concern.
type Report struct {
	Targets []CallTarget `json:"targets"`
	Skipped []Skip       `json:"skipped"`
	Total   int          `json:"total"`
}

func (r Report) ValidCount() int   { return len(r.Targets) }
func (r Report) SkippedCount() int { return len(r.Skipped) }

// ParseText parses free text, one phone number per line. Empty lines are
// ignored, invalid lines are reported as skips, and nothing ever raises:
// one bad line must not abort the whole import.
func ParseText(block string) Report {
	var out Report
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(StripNonPrintable(line))
		if line == "" {
			continue
		}
		out.Total++
		if !ValidPhoneNumber(line) {
			out.Skipped = append(out.Skipped, Skip{Index: out.Total - 1, Value: line, Reason: SkipInvalidNumber})
			continue
		}
		out.Targets = append(out.Targets, CallTarget{Number: line})
	}
	return out
}

// ParseRows parses decoded tabular data. The phone column is located via the
// alias set; rows with unusable cells become skips, never errors.
//
// Cells that are purely numeric apart from ". -" punctuation and lack a
// leading "+" get one prepended: spreadsheet tools strip the "+" or store
// numbers as floats, and this recovers them.
func ParseRows(rows []Row) (Report, error) {
	col, err := findPhoneColumn(rows)
	if err != nil {
		return Report{}, err
	}

	var out Report
	for i, row := range rows {
		out.Total++
		cell := strings.TrimSpace(StripNonPrintable(row[col]))
		if cell == "" {
			out.Skipped = append(out.Skipped, Skip{Index: i, Reason: SkipEmptyCell})
			continue
		}
		cell = coerceNumericCell(cell)
		if !ValidPhoneNumber(cell) {
			out.Skipped = append(out.Skipped, Skip{Index: i, Value: cell, Reason: SkipInvalidNumber})
			continue
		}
		t := CallTarget{Number: cell}
		if v := strings.TrimSpace(StripNonPrintable(row["name"])); v != "" {
			t.Name = v
		}
		if v := strings.TrimSpace(StripNonPrintable(row["email"])); v != "" {
			t.Email = v
		}
		out.Targets = append(out.Targets, t)
	}
	return out, nil
}

// ParseCSV decodes CSV input (first record is the header) and parses it as rows.
func ParseCSV(r io.Reader) (Report, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return Report{}, fmt.Errorf("target: read csv: %w", err)
	}
	if len(records) == 0 {
		return Report{}, ErrMissingColumn
	}

	header := records[0]
	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := Row{}
		for i, h := range header {
			if i < len(rec) {
				row[strings.TrimSpace(h)] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return ParseRows(rows)
}

func findPhoneColumn(rows []Row) (string, error) {
	if len(rows) == 0 {
		return "", ErrMissingColumn
	}
	for _, alias := range phoneColumnAliases {
		if _, ok := rows[0][alias]; ok {
			return alias, nil
		}
	}
	for key := range rows[0] {
		for _, alias := range phoneColumnAliases {
			if strings.EqualFold(key, alias) {
				return key, nil
			}
		}
	}
	return "", ErrMissingColumn
}

// coerceNumericCell prepends "+" to cells that are numbers in disguise.
// "15551234567" or "15551234567.0" become "+15551234567"; anything with a
// "+" already, or with non-numeric characters, is returned as-is.
func coerceNumericCell(cell string) string {
	if strings.HasPrefix(cell, "+") {
		return cell
	}
	stripped := strings.NewReplacer(".", "", "-", "").Replace(cell)
	if stripped == "" {
		return cell
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return cell
		}
	}
	// float cells like "15551234567.0" drop their fractional zero along with
	// the punctuation; the digits are what matter.
	if i := strings.IndexByte(cell, '.'); i >= 0 {
		stripped = strings.ReplaceAll(cell[:i], "-", "")
	}
	return "+" + stripped
}
