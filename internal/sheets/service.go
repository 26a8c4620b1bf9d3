package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"docauto/internal/logger"
	"docauto/pkg/models"
)

// columnCount is the number of columns written per record (A to J).
const columnCount = 10

var headers = []interface{}{
	"Plik", "Odbiorca", "Adres odbiorcy", "Rachunek", "Kwota",
	"Płatnik", "Nr polisy", "Adres płatnika", "Próby", "Przetworzono",
}

// Service appends extracted policy records to a Google Sheet.
type Service struct {
	api           *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// NewSheetsService opens the spreadsheet behind sheetURL using service account
// credentials from GOOGLE_APPLICATION_CREDENTIALS (a file) or GOOGLE_CREDENTIALS (JSON).
func NewSheetsService(ctx context.Context, sheetURL string) (*Service, error) {
	const op = "NewSheetsService"

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	creds, err := loadCredentials()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	jwt, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: parse credentials: %w", op, err)
	}

	api, err := sheets.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: create client: %w", op, err)
	}
	return NewWithService(api, spreadsheetID), nil
}

func loadCredentials() ([]byte, error) {
	if path := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		return data, nil
	}
	if raw := os.Getenv("GOOGLE_CREDENTIALS"); raw != "" {
		return []byte(raw), nil
	}
	return nil, fmt.Errorf("neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set")
}

// NewWithService wraps an existing Sheets client.
func NewWithService(api *sheets.Service, spreadsheetID string) *Service {
	log := logger.WithComponent("sheets")
	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Using spreadsheet")
	return &Service{api: api, spreadsheetID: spreadsheetID, log: log}
}

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

func extractSpreadsheetID(url string) (string, error) {
	m := spreadsheetIDPattern.FindStringSubmatch(url)
	if m == nil {
		return "", fmt.Errorf("not a Google Sheets URL: %q", url)
	}
	return m[1], nil
}

// AppendRecords appends one row per record to worksheet, creating the worksheet and
// its header row when missing. Records whose source file is already listed in the
// worksheet are skipped, so a rerun over the same batch adds no duplicate rows.
func (s *Service) AppendRecords(ctx context.Context, worksheet string, records []models.PolicyRecord) error {
	const op = "AppendRecords"

	if len(records) == 0 {
		return nil
	}

	log := s.log.With().Str("worksheet", worksheet).Logger()
	log.Info().Int("rows", len(records)).Msg("Writing policy records to Google Sheet")

	if err := s.prepareWorksheet(ctx, worksheet); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	existing, err := s.existingSources(ctx, worksheet)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var rows [][]interface{}
	for _, rec := range records {
		if existing[rec.SourceFile] {
			log.Debug().Str("file", rec.SourceFile).Msg("Record already in sheet, skipping")
			continue
		}
		existing[rec.SourceFile] = true
		rows = append(rows, recordToValues(rec))
	}
	if len(rows) == 0 {
		log.Info().Msg("All records already in sheet")
		return nil
	}

	call := s.api.Spreadsheets.Values.Append(s.spreadsheetID, columnRange(worksheet, 0), &sheets.ValueRange{Values: rows})
	if _, err := call.ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: append rows: %w", op, err)
	}

	log.Info().Int("rows_written", len(rows)).Msg("Policy records appended")
	return nil
}

// existingSources returns the source file column below the header row.
func (s *Service) existingSources(ctx context.Context, worksheet string) (map[string]bool, error) {
	values, err := s.ReadRange(ctx, worksheet+"!A2:A")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(values))
	for _, row := range values {
		if len(row) > 0 {
			seen[fmt.Sprint(row[0])] = true
		}
	}
	return seen, nil
}

// columnRange returns the A:J range of worksheet, limited to row when row > 0.
func columnRange(worksheet string, row int) string {
	last := string(rune('A' + columnCount - 1))
	if row > 0 {
		return fmt.Sprintf("%s!A%d:%s%d", worksheet, row, last, row)
	}
	return fmt.Sprintf("%s!A:%s", worksheet, last)
}

// recordToValues lays a record out in header order. Account and policy numbers are
// written as text so leading zeros survive.
func recordToValues(rec models.PolicyRecord) []interface{} {
	f := rec.Fields
	processed := ""
	if !rec.ProcessedAt.IsZero() {
		processed = rec.ProcessedAt.Format("2006-01-02 15:04:05")
	}
	return []interface{}{
		rec.SourceFile,
		f.RecipientName,
		f.RecipientAddress,
		f.RecipientBankAccount,
		f.PaymentAmount,
		f.PayerCompany,
		f.PolicyNumber,
		f.PayerAddress,
		strconv.Itoa(rec.Attempts),
		processed,
	}
}

// prepareWorksheet makes sure worksheet exists and its first row holds the headers.
func (s *Service) prepareWorksheet(ctx context.Context, worksheet string) error {
	sheetID, found, err := s.findWorksheet(ctx, worksheet)
	if err != nil {
		return err
	}
	if !found {
		if sheetID, err = s.addWorksheet(ctx, worksheet); err != nil {
			return err
		}
	}

	headerRange := columnRange(worksheet, 1)
	existing, err := s.api.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header row: %w", err)
	}
	if len(existing.Values) > 0 && len(existing.Values[0]) > 0 {
		return nil
	}

	s.log.Info().Str("worksheet", worksheet).Msg("Writing header row")
	body := &sheets.ValueRange{Values: [][]interface{}{headers}}
	if _, err := s.api.Spreadsheets.Values.Update(s.spreadsheetID, headerRange, body).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}

	if err := s.styleHeaderRow(ctx, sheetID); err != nil {
		s.log.Warn().Err(err).Msg("Header row left unstyled")
	}
	return nil
}

func (s *Service) findWorksheet(ctx context.Context, title string) (int64, bool, error) {
	doc, err := s.api.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range doc.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return sh.Properties.SheetId, true, nil
		}
	}
	return 0, false, nil
}

func (s *Service) addWorksheet(ctx context.Context, title string) (int64, error) {
	s.log.Info().Str("worksheet", title).Msg("Creating worksheet")

	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{{
		AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
	}}}
	resp, err := s.api.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("add worksheet %q: %w", title, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil {
		return 0, nil
	}
	return resp.Replies[0].AddSheet.Properties.SheetId, nil
}

// styleHeaderRow bolds and shades the header cells and fits the column widths.
func (s *Service) styleHeaderRow(ctx context.Context, sheetID int64) error {
	bold := &sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
		Range: &sheets.GridRange{SheetId: sheetID, EndRowIndex: 1, EndColumnIndex: columnCount},
		Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
			TextFormat:      &sheets.TextFormat{Bold: true},
			BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
		}},
		Fields: "userEnteredFormat(textFormat,backgroundColor)",
	}}
	fit := &sheets.Request{AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
		Dimensions: &sheets.DimensionRange{SheetId: sheetID, Dimension: "COLUMNS", EndIndex: columnCount},
	}}

	req := &sheets.BatchUpdateSpreadsheetRequest{Requests: []*sheets.Request{bold, fit}}
	if _, err := s.api.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("style header row: %w", err)
	}
	return nil
}

// ReadRange returns the values of an A1 range such as "Polisy!A2:J".
func (s *Service) ReadRange(ctx context.Context, a1 string) ([][]interface{}, error) {
	resp, err := s.api.Spreadsheets.Values.Get(s.spreadsheetID, a1).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("ReadRange %s: %w", a1, err)
	}
	s.log.Debug().Int("rows", len(resp.Values)).Str("range", a1).Msg("Read range")
	return resp.Values, nil
}
