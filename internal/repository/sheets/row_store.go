// Package sheets implements the row store on top of a Google Sheets spreadsheet,
// one sheet per table, with a header row in row 1.
package sheets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/and161185/lumen/internal/repository"
)

const (
	valueInputRaw  = "RAW"
	insertDataRows = "INSERT_ROWS"
	// headerRows is the number of rows above the first data row.
	headerRows = 1
)

// RowStore implements repository.RowStore over the Sheets API v4.
type RowStore struct {
	values        *gsheets.SpreadsheetsValuesService
	spreadsheetID string
}

// New constructs a row store for the given spreadsheet.
func New(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*RowStore, error) {
	if spreadsheetID == "" {
		return nil, errors.New("sheets: empty spreadsheet id")
	}
	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: new service: %w", err)
	}
	return &RowStore{values: svc.Spreadsheets.Values, spreadsheetID: spreadsheetID}, nil
}

// ClientOptions builds credential options from a service-account file path or a
// base64-encoded service-account JSON; the file wins when both are set.
func ClientOptions(credsFile, credsB64 string) ([]option.ClientOption, error) {
	opts := []option.ClientOption{option.WithScopes(gsheets.SpreadsheetsScope)}
	switch {
	case strings.TrimSpace(credsFile) != "":
		opts = append(opts, option.WithCredentialsFile(credsFile))
	case strings.TrimSpace(credsB64) != "":
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(credsB64))
		if err != nil {
			return nil, fmt.Errorf("sheets: decode service account: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(raw))
	default:
		return nil, errors.New("sheets: no service account credentials")
	}
	return opts, nil
}

func dataRange(table string) string { return fmt.Sprintf("%s!A%d:Z", table, headerRows+1) }

func rowRange(table string, index int) string {
	return fmt.Sprintf("%s!A%d", table, index+headerRows+1)
}

func toValues(cells []string) [][]interface{} {
	row := make([]interface{}, len(cells))
	for i, c := range cells {
		row[i] = c
	}
	return [][]interface{}{row}
}

// QueryRows reads the whole data range of a sheet. Blank rows inside the range keep
// their position so indexes stay aligned with sheet rows.
func (s *RowStore) QueryRows(ctx context.Context, table string) ([]repository.Row, error) {
	resp, err := s.values.Get(s.spreadsheetID, dataRange(table)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	out := make([]repository.Row, 0, len(resp.Values))
	for i, r := range resp.Values {
		cells := make([]string, len(r))
		for j, c := range r {
			cells[j] = fmt.Sprint(c)
		}
		out = append(out, repository.Row{Index: i, Cells: cells})
	}
	return out, nil
}

// AppendRow appends after the last non-empty row of the sheet.
func (s *RowStore) AppendRow(ctx context.Context, table string, cells []string) error {
	vr := &gsheets.ValueRange{Values: toValues(cells)}
	_, err := s.values.Append(s.spreadsheetID, table+"!A1", vr).
		ValueInputOption(valueInputRaw).
		InsertDataOption(insertDataRows).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append %s: %w", table, err)
	}
	return nil
}

// UpdateRow overwrites the row at index starting from column A.
func (s *RowStore) UpdateRow(ctx context.Context, table string, index int, cells []string) error {
	vr := &gsheets.ValueRange{Values: toValues(cells)}
	_, err := s.values.Update(s.spreadsheetID, rowRange(table, index), vr).
		ValueInputOption(valueInputRaw).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s row %d: %w", table, index, err)
	}
	return nil
}
