package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/insightdelivered/recurring-detector/internal/models"
	"github.com/insightdelivered/recurring-detector/internal/pipeline"
	"github.com/insightdelivered/recurring-detector/internal/writer"
)

// MaxUploadSize bounds the statement upload, as the multipart body limit.
const MaxUploadSize = 32 << 20

// Error kinds reported in ErrorResponse.Kind.
const (
	KindBadRequest  = "bad_request"
	KindUnsupported = "unsupported_format"
	KindParse       = "parse_error"
	KindEmpty       = "empty_statement"
	KindInternal    = "internal"
)

// DetectResponse is the JSON response from the /api/detect endpoint.
type DetectResponse struct {
	Success    bool             `json:"success"`
	RunID      string           `json:"runId"`
	Statement  StatementSummary `json:"statement"`
	Patterns   []map[string]any `json:"patterns"`
	Duplicates []map[string]any `json:"duplicates"`
	CSV        string           `json:"csv,omitempty"`
	Version    string           `json:"version,omitempty"`
}

// StatementSummary describes the parsed statement without its transactions.
type StatementSummary struct {
	Bank          string `json:"bank,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	Currency      string `json:"currency,omitempty"`
	Format        string `json:"format"`
	PeriodStart   string `json:"periodStart,omitempty"`
	PeriodEnd     string `json:"periodEnd,omitempty"`
	Count         int    `json:"count"`
	TotalDebits   string `json:"totalDebits"`
	TotalCredits  string `json:"totalCredits"`
	NetChange     string `json:"netChange"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Kind    string `json:"kind"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Pipeline *pipeline.Pipeline
	Version  string
}

// NewApp returns a fiber app with the API routes and the shared middleware.
func (h *Handler) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "recurring-detector",
		BodyLimit:    MaxUploadSize,
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/health", h.handleHealth)
	api.Get("/profiles", h.handleProfiles)
	api.Post("/detect", h.handleDetect)
}

func (h *Handler) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": h.Version,
	})
}

func (h *Handler) handleProfiles(c *fiber.Ctx) error {
	profiles := h.Pipeline.Registry().Profiles()
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}
	return c.JSON(fiber.Map{"profiles": names})
}

func (h *Handler) handleDetect(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, KindBadRequest, "No file uploaded. Use form field 'file'.")
	}
	file, err := header.Open()
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, KindBadRequest, "Failed to read uploaded file.")
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, KindBadRequest, "Failed to read uploaded file.")
	}

	in := pipeline.Input{Data: data, Filename: header.Filename}

	if name := c.FormValue("profile"); name != "" {
		if _, ok := h.Pipeline.Registry().Get(name); !ok {
			return writeError(c, fiber.StatusBadRequest, KindBadRequest, fmt.Sprintf("Unknown bank profile %q.", name))
		}
		in.Profile = name
	}

	if raw := c.FormValue("existing"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Existing); err != nil {
			return writeError(c, fiber.StatusBadRequest, KindBadRequest, fmt.Sprintf("Invalid existing payments: %v", err))
		}
	}

	if raw := c.FormValue("min_confidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			return writeError(c, fiber.StatusBadRequest, KindBadRequest, "min_confidence must be a number between 0 and 1.")
		}
		in.MinConfidence = &v
	}

	res, err := h.Pipeline.Run(c.UserContext(), in)
	if err != nil {
		status, kind := classifyError(err)
		return writeError(c, status, kind, err.Error())
	}

	var csvBuf bytes.Buffer
	csvWriter := &writer.CSVWriter{IncludeHeader: c.FormValue("header") != "false"}
	if err := csvWriter.WritePatterns(&csvBuf, res.Statement, res.Patterns); err != nil {
		return writeError(c, fiber.StatusInternalServerError, KindInternal, fmt.Sprintf("CSV generation failed: %v", err))
	}

	// Ensure lists are never nil (nil marshals to JSON null, not [])
	patterns := make([]map[string]any, 0, len(res.Patterns))
	for _, p := range res.Patterns {
		patterns = append(patterns, p.ToMap())
	}
	duplicates := make([]map[string]any, 0, len(res.Duplicates))
	for _, d := range res.Duplicates {
		duplicates = append(duplicates, d.ToMap())
	}

	return c.JSON(DetectResponse{
		Success:    true,
		RunID:      res.RunID,
		Statement:  summarize(res.Statement),
		Patterns:   patterns,
		Duplicates: duplicates,
		CSV:        csvBuf.String(),
		Version:    h.Version,
	})
}

func summarize(s *models.StatementData) StatementSummary {
	return StatementSummary{
		Bank:          s.BankName,
		AccountNumber: s.AccountNumber,
		Currency:      s.Currency,
		Format:        s.Format.String(),
		PeriodStart:   formatDate(s.PeriodStart),
		PeriodEnd:     formatDate(s.PeriodEnd),
		Count:         len(s.Transactions),
		TotalDebits:   s.TotalDebits().StringFixed(2),
		TotalCredits:  s.TotalCredits().StringFixed(2),
		NetChange:     s.NetChange().StringFixed(2),
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// classifyError maps pipeline errors onto a status code and error kind.
func classifyError(err error) (int, string) {
	var (
		unsupported *models.UnsupportedFormatError
		parseErr    *models.ParseError
		empty       *models.EmptyStatementError
	)
	switch {
	case errors.As(err, &unsupported):
		return fiber.StatusUnsupportedMediaType, KindUnsupported
	case errors.As(err, &empty):
		return fiber.StatusUnprocessableEntity, KindEmpty
	case errors.As(err, &parseErr):
		return fiber.StatusUnprocessableEntity, KindParse
	}
	return fiber.StatusInternalServerError, KindInternal
}

func writeError(c *fiber.Ctx, status int, kind, msg string) error {
	return c.Status(status).JSON(ErrorResponse{
		Success: false,
		Error:   msg,
		Kind:    kind,
	})
}

// errorHandler renders fiber's own errors (body too large, unknown route,
// recovered panics) in the API error shape.
func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	kind := KindInternal
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		if status < fiber.StatusInternalServerError {
			kind = KindBadRequest
		}
	}
	return writeError(c, status, kind, err.Error())
}
