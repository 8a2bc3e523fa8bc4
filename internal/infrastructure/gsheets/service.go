// Package gsheets reads candidate rows from a Google spreadsheet and
// mirrors the article store into a dedicated worksheet.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"ArticleDesk/internal/domain"
)

// Backend is the subset of the Sheets API the connector and mirror need.
// Cells are exchanged as strings; ranges use A1 notation.
type Backend interface {
	Read(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
	Write(ctx context.Context, spreadsheetID, rng string, rows [][]string) error
	Clear(ctx context.Context, spreadsheetID, rng string) error
	EnsureTab(ctx context.Context, spreadsheetID, title string) (created bool, err error)
}

// Service is the production Backend on top of sheets/v4.
type Service struct {
	api *sheets.Service
}

var _ Backend = (*Service)(nil)

// NewService authenticates with a service-account JSON key.
func NewService(ctx context.Context, credentialsJSON []byte) (*Service, error) {
	if len(credentialsJSON) == 0 {
		return nil, fmt.Errorf("sheets credentials: %w", domain.ErrNotAuthenticated)
	}
	api, err := sheets.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return &Service{api: api}, nil
}

func (s *Service) Read(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	resp, err := s.api.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, classify(err))
	}
	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			rows[i][j] = fmt.Sprint(cell)
		}
	}
	return rows, nil
}

func (s *Service) Write(ctx context.Context, spreadsheetID, rng string, rows [][]string) error {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}
	_, err := s.api.Spreadsheets.Values.
		Update(spreadsheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", rng, classify(err))
	}
	return nil
}

func (s *Service) Clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := s.api.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", rng, classify(err))
	}
	return nil
}

func (s *Service) EnsureTab(ctx context.Context, spreadsheetID, title string) (bool, error) {
	doc, err := s.api.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("get spreadsheet: %w", classify(err))
	}
	for _, sheet := range doc.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == title {
			return false, nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
		AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
	}}}
	if _, err := s.api.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("add tab %s: %w", title, classify(err))
	}
	return true, nil
}

// classify maps Google API status codes onto the domain error taxonomy.
func classify(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Code {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", domain.ErrNotAuthenticated, apiErr.Message)
	case http.StatusForbidden, http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrSheetAccess, apiErr.Message)
	default:
		return err
	}
}

var (
	sheetURLPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)
	sheetIDPattern  = regexp.MustCompile(`^[a-zA-Z0-9_-]{20,}$`)
)

// ParseSheetRef extracts a spreadsheet ID from an ID or a docs.google.com URL.
// Lookup by document title needs the Drive API and is not supported.
func ParseSheetRef(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if strings.Contains(ref, "docs.google.com") {
		if m := sheetURLPattern.FindStringSubmatch(ref); m != nil {
			return m[1], nil
		}
		return "", fmt.Errorf("%w: no spreadsheet id in %q", domain.ErrSheetAccess, ref)
	}
	if sheetIDPattern.MatchString(ref) {
		return ref, nil
	}
	return "", fmt.Errorf("%w: %q is not a spreadsheet id or url", domain.ErrSheetAccess, ref)
}
