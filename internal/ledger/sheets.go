// Package ledger persists classified threads into Google-Sheets-backed
// ledgers with idempotent prepend-below-header writes.
package ledger

import (
	"context"
	"encoding/base64"
	"fmt"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// ValuesAPI is the cell-level surface of the spreadsheet backend.
type ValuesAPI interface {
	Get(ctx context.Context, rng string) ([][]string, error)
	Update(ctx context.Context, rng string, values [][]string) error
}

// StructuralAPI is the sheet-level surface: listing, creation and row
// insertion.
type StructuralAPI interface {
	SheetNames(ctx context.Context) ([]string, error)
	AddSheet(ctx context.Context, title string) error
	InsertRows(ctx context.Context, sheetTitle string, start, end int64) error
}

// SheetsClient implements both API surfaces against one Google spreadsheet.
// A shared limiter keeps the call rate under the per-minute write quota.
type SheetsClient struct {
	svc           *sheets.Service
	spreadsheetID string
	limiter       *rate.Limiter
}

// Credentials locates the service account key, either as a file path or as
// base64-encoded JSON.
type Credentials struct {
	File string
	B64  string
}

func NewSheetsClient(ctx context.Context, creds Credentials, spreadsheetID string) (*SheetsClient, error) {
	var opt option.ClientOption
	switch {
	case creds.B64 != "":
		raw, err := base64.StdEncoding.DecodeString(creds.B64)
		if err != nil {
			return nil, fmt.Errorf("decoding credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(raw)
	case creds.File != "":
		opt = option.WithCredentialsFile(creds.File)
	default:
		return nil, fmt.Errorf("no spreadsheet credentials configured")
	}

	svc, err := sheets.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	return &SheetsClient{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		limiter:       rate.NewLimiter(rate.Limit(1), 3),
	}, nil
}

func (c *SheetsClient) Get(ctx context.Context, rng string) ([][]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rng, err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			row = append(row, fmt.Sprint(cell))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *SheetsClient) Update(ctx context.Context, rng string, values [][]string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	vr := &sheets.ValueRange{Values: toAnyRows(values)}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("writing %s: %w", rng, err)
	}
	return nil
}

func (c *SheetsClient) SheetNames(ctx context.Context) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("reading spreadsheet metadata: %w", err)
	}
	names := make([]string, 0, len(meta.Sheets))
	for _, s := range meta.Sheets {
		names = append(names, s.Properties.Title)
	}
	return names, nil
}

func (c *SheetsClient) AddSheet(ctx context.Context, title string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("adding sheet %s: %w", title, err)
	}
	return nil
}

func (c *SheetsClient) InsertRows(ctx context.Context, sheetTitle string, start, end int64) error {
	sheetID, err := c.sheetID(ctx, sheetTitle)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			InsertDimension: &sheets.InsertDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: start,
					EndIndex:   end,
				},
				InheritFromBefore: false,
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("inserting rows in %s: %w", sheetTitle, err)
	}
	return nil
}

func (c *SheetsClient) sheetID(ctx context.Context, title string) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("reading spreadsheet metadata: %w", err)
	}
	for _, s := range meta.Sheets {
		if s.Properties.Title == title {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", title)
}

func toAnyRows(values [][]string) [][]any {
	out := make([][]any, len(values))
	for i, row := range values {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		out[i] = cells
	}
	return out
}
