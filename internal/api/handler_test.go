package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/insightdelivered/recurring-detector/internal/pipeline"
)

const statementCSV = `Date,Description,Amount
2025-01-01,NETFLIX.COM,-15.99
2025-01-15,SALARY ACME,2500.00
2025-02-01,NETFLIX.COM,-15.99
2025-02-15,SALARY ACME,2500.00
2025-03-01,NETFLIX.COM,-15.99
2025-03-03,TESCO STORES 1234,-42.10
2025-04-01,NETFLIX.COM,-15.99
2025-05-01,NETFLIX.COM,-15.99
`

func setupTestApp() *fiber.App {
	h := &Handler{Pipeline: pipeline.New(pipeline.Options{}), Version: "test"}
	return h.NewApp()
}

// detectRequest builds a multipart upload. An empty filename leaves the file
// part out.
func detectRequest(t *testing.T, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(fw, content)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", "/api/detect", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request, out any) int {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("failed to decode response %q: %v", body, err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoint(t *testing.T) {
	app := setupTestApp()

	var result map[string]string
	status := do(t, app, httptest.NewRequest("GET", "/api/health", nil), &result)
	if status != fiber.StatusOK {
		t.Errorf("expected 200, got %d", status)
	}
	if result["status"] != "ok" {
		t.Errorf("expected status=ok, got %q", result["status"])
	}
	if result["engine"] != "fiber" {
		t.Errorf("expected engine=fiber, got %q", result["engine"])
	}
	if result["version"] != "test" {
		t.Errorf("expected version=test, got %q", result["version"])
	}
}

func TestProfilesEndpoint(t *testing.T) {
	app := setupTestApp()

	var result struct {
		Profiles []string `json:"profiles"`
	}
	status := do(t, app, httptest.NewRequest("GET", "/api/profiles", nil), &result)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(strings.Join(result.Profiles, ","), "monzo") {
		t.Errorf("expected monzo in %v", result.Profiles)
	}
}

func TestDetectEndpoint(t *testing.T) {
	app := setupTestApp()
	existing := `[{"id":"n1","name":"Netflix","amount":"15.99","frequency":"monthly"}]`

	var result DetectResponse
	status := do(t, app, detectRequest(t, "statement.csv", statementCSV, map[string]string{"existing": existing}), &result)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if !result.Success || result.RunID == "" {
		t.Errorf("got %+v", result)
	}

	s := result.Statement
	if s.Format != "csv" || s.Count != 8 || s.PeriodStart != "2025-01-01" || s.PeriodEnd != "2025-05-01" {
		t.Errorf("statement: got %+v", s)
	}
	if s.TotalDebits != "122.05" || s.TotalCredits != "5000.00" || s.NetChange != "4877.95" {
		t.Errorf("totals: got %s / %s / %s", s.TotalDebits, s.TotalCredits, s.NetChange)
	}

	if len(result.Patterns) != 1 {
		t.Fatalf("got %d patterns, want 1", len(result.Patterns))
	}
	p := result.Patterns[0]
	if p["amount"] != "15.99" || p["frequency"] != "monthly" || p["payment_type"] != "subscription" {
		t.Errorf("pattern: got %v", p)
	}
	if len(result.Duplicates) != 1 || result.Duplicates[0]["existing_id"] != "n1" || result.Duplicates[0]["confidence_level"] != "high" {
		t.Errorf("duplicates: got %v", result.Duplicates)
	}
	if !strings.Contains(result.CSV, "NETFLIX.COM") {
		t.Errorf("csv: got %q", result.CSV)
	}
}

func TestDetectEndpointEmptyLists(t *testing.T) {
	app := setupTestApp()

	var result map[string]any
	status := do(t, app, detectRequest(t, "statement.csv", statementCSV, map[string]string{"min_confidence": "0.99"}), &result)
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	for _, key := range []string{"patterns", "duplicates"} {
		list, ok := result[key].([]any)
		if !ok || len(list) != 0 {
			t.Errorf("%s: expected empty list, got %v", key, result[key])
		}
	}
}

func TestDetectEndpointErrors(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		fields   map[string]string
		status   int
		kind     string
	}{
		{"missing file", "", "", nil, fiber.StatusBadRequest, KindBadRequest},
		{"unsupported format", "notes.doc", "hello", nil, fiber.StatusUnsupportedMediaType, KindUnsupported},
		{"empty statement", "empty.csv", "", nil, fiber.StatusUnprocessableEntity, KindEmpty},
		{"unknown profile", "statement.csv", statementCSV, map[string]string{"profile": "nope"}, fiber.StatusBadRequest, KindBadRequest},
		{"bad existing", "statement.csv", statementCSV, map[string]string{"existing": "{"}, fiber.StatusBadRequest, KindBadRequest},
		{"bad min confidence", "statement.csv", statementCSV, map[string]string{"min_confidence": "high"}, fiber.StatusBadRequest, KindBadRequest},
		{"min confidence out of range", "statement.csv", statementCSV, map[string]string{"min_confidence": "2"}, fiber.StatusBadRequest, KindBadRequest},
	}
	app := setupTestApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result ErrorResponse
			status := do(t, app, detectRequest(t, tt.filename, tt.content, tt.fields), &result)
			if status != tt.status {
				t.Errorf("status: got %d, want %d", status, tt.status)
			}
			if result.Success || result.Kind != tt.kind || result.Error == "" {
				t.Errorf("got %+v, want kind %s", result, tt.kind)
			}
		})
	}
}

func TestClassifyErrorDefault(t *testing.T) {
	if status, kind := classifyError(io.ErrUnexpectedEOF); status != fiber.StatusInternalServerError || kind != KindInternal {
		t.Errorf("got %d %s", status, kind)
	}
}
