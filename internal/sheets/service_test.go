package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"docauto/internal/testutil"
	"docauto/pkg/models"
)

func TestExtractSpreadsheetID(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"edit url", "https://docs.google.com/spreadsheets/d/1AbC-d_E/edit#gid=0", "1AbC-d_E", false},
		{"bare url", "https://docs.google.com/spreadsheets/d/xyz", "xyz", false},
		{"not a sheet", "https://example.com/doc/1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractSpreadsheetID(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecordToValues(t *testing.T) {
	rec := models.PolicyRecord{
		SourceFile:  "c1_acme/policy.pdf",
		Fields:      testutil.PolicyTextFields,
		Attempts:    3,
		ProcessedAt: time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
	}

	values := recordToValues(rec)
	require.Len(t, values, columnCount)
	require.Len(t, headers, columnCount)
	assert.Equal(t, "c1_acme/policy.pdf", values[0])
	assert.Equal(t, "12345678901234567890123456", values[3])
	assert.Equal(t, "123456789", values[6])
	assert.Equal(t, "3", values[8])
	assert.Equal(t, "2024-01-02 15:04:05", values[9])
}

// fakeSheets serves the subset of the Sheets v4 REST API used by Service.
type fakeSheets struct {
	mu       sync.Mutex
	sheets   []string
	header   bool
	appended [][]interface{}
	calls    []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")

	switch {
	case strings.HasSuffix(path, ":batchUpdate"):
		f.calls = append(f.calls, "batchUpdate")
		var req sheets.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := sheets.BatchUpdateSpreadsheetResponse{}
		for _, rq := range req.Requests {
			if rq.AddSheet != nil {
				f.sheets = append(f.sheets, rq.AddSheet.Properties.Title)
				resp.Replies = append(resp.Replies, &sheets.Response{
					AddSheet: &sheets.AddSheetResponse{Properties: &sheets.SheetProperties{SheetId: 7, Title: rq.AddSheet.Properties.Title}},
				})
			}
		}
		_ = json.NewEncoder(w).Encode(resp)

	case strings.HasSuffix(path, ":append"):
		f.calls = append(f.calls, "append")
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.appended = append(f.appended, vr.Values...)
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{})

	case strings.Contains(path, "/values/") && r.Method == http.MethodPut:
		f.calls = append(f.calls, "headers")
		f.header = true
		_ = json.NewEncoder(w).Encode(sheets.UpdateValuesResponse{})

	case strings.Contains(path, "/values/") && strings.HasSuffix(path, "!A2:A"):
		vr := sheets.ValueRange{}
		for _, row := range f.appended {
			vr.Values = append(vr.Values, row[:1])
		}
		_ = json.NewEncoder(w).Encode(vr)

	case strings.Contains(path, "/values/"):
		vr := sheets.ValueRange{}
		if f.header {
			vr.Values = [][]interface{}{headers}
		}
		_ = json.NewEncoder(w).Encode(vr)

	default:
		ss := sheets.Spreadsheet{}
		for i, title := range f.sheets {
			ss.Sheets = append(ss.Sheets, &sheets.Sheet{Properties: &sheets.SheetProperties{SheetId: int64(i), Title: title}})
		}
		_ = json.NewEncoder(w).Encode(ss)
	}
}

func newTestService(t *testing.T, fake *fakeSheets) *Service {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewWithService(svc, "sheet-id")
}

func TestAppendRecords(t *testing.T) {
	fake := &fakeSheets{}
	s := newTestService(t, fake)

	records := []models.PolicyRecord{
		{SourceFile: "a.pdf", Fields: testutil.PolicyTextFields, Attempts: 1},
		{SourceFile: "b.pdf", Fields: testutil.PolicyTextFields, Attempts: 2},
	}
	require.NoError(t, s.AppendRecords(context.Background(), "Polisy", records))

	assert.Equal(t, []string{"Polisy"}, fake.sheets)
	assert.Equal(t, []string{"batchUpdate", "headers", "batchUpdate", "append"}, fake.calls)
	require.Len(t, fake.appended, 2)
	assert.Equal(t, "b.pdf", fake.appended[1][0])

	// Second run reuses the sheet and its header row and skips files already listed.
	fake.calls = nil
	again := append(records[:1:1], models.PolicyRecord{SourceFile: "c.pdf", Fields: testutil.PolicyTextFields})
	require.NoError(t, s.AppendRecords(context.Background(), "Polisy", again))
	assert.Equal(t, []string{"append"}, fake.calls)
	require.Len(t, fake.appended, 3)
	assert.Equal(t, "c.pdf", fake.appended[2][0])

	fake.calls = nil
	require.NoError(t, s.AppendRecords(context.Background(), "Polisy", records))
	assert.Empty(t, fake.calls)
}

func TestAppendRecordsEmpty(t *testing.T) {
	fake := &fakeSheets{}
	s := newTestService(t, fake)

	require.NoError(t, s.AppendRecords(context.Background(), "Polisy", nil))
	assert.Empty(t, fake.calls)
}

func TestColumnRange(t *testing.T) {
	assert.Equal(t, "Polisy!A:J", columnRange("Polisy", 0))
	assert.Equal(t, "Polisy!A1:J1", columnRange("Polisy", 1))
}

func TestReadRange(t *testing.T) {
	fake := &fakeSheets{sheets: []string{"Polisy"}, header: true}
	s := newTestService(t, fake)

	rows, err := s.ReadRange(context.Background(), columnRange("Polisy", 1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Plik", rows[0][0])
}
