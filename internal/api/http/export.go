package apihttp

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	analyticsapp "github.com/HendrickFS/bio-supply-twin/internal/analytics/application"
	"github.com/HendrickFS/bio-supply-twin/internal/observability/metrics"
	telemetry "github.com/HendrickFS/bio-supply-twin/internal/telemetry/domain"
)

// ExportsHandler renders compliance reports and telemetry dumps as files.
type ExportsHandler struct {
	analytics *analyticsapp.Service
	readings  telemetry.Query
}

// NewExportsHandler constructs an ExportsHandler.
func NewExportsHandler(analytics *analyticsapp.Service, readings telemetry.Query) *ExportsHandler {
	return &ExportsHandler{analytics: analytics, readings: readings}
}

// ServeHTTP routes export requests.
func (h *ExportsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.analytics == nil || h.readings == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	switch r.URL.Path {
	case "/api/v1/exports/compliance.xlsx":
		h.handleCompliance(w, r, "xlsx")
	case "/api/v1/exports/compliance.pdf":
		h.handleCompliance(w, r, "pdf")
	case "/api/v1/exports/telemetry.csv":
		h.handleTelemetryCSV(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ExportsHandler) handleCompliance(w http.ResponseWriter, r *http.Request, format string) {
	start := time.Now()

	since, limit, err := parseSinceLimit(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	report, err := h.analytics.Compliance(r.Context(), analyticsapp.ComplianceRequest{
		BoxID:    r.URL.Query().Get("box"),
		SampleID: r.URL.Query().Get("sample"),
		SLAName:  r.URL.Query().Get("sla_name"),
		Since:    since,
		Limit:    limit,
	})
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(start))
		respondAnalyticsError(w, err)
		return
	}

	var data []byte
	var contentType string
	switch format {
	case "xlsx":
		data, err = buildComplianceXLSX(report)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		data, err = buildCompliancePDF(report)
		contentType = "application/pdf"
	}
	if err != nil {
		metrics.ObserveExport(format, metrics.ResultError, time.Since(start))
		http.Error(w, "render export error", http.StatusInternalServerError)
		return
	}

	metrics.ObserveExport(format, metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="compliance.`+format+`"`)
	_, _ = w.Write(data)
}

func (h *ExportsHandler) handleTelemetryCSV(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	filter, err := parseReadingFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// Exports default to the cap instead of the API page size.
	if r.URL.Query().Get("limit") == "" {
		filter.Limit = maxTelemetryLimit
	}

	readings, err := h.readings.List(r.Context(), filter)
	if err != nil {
		metrics.ObserveExport("csv", metrics.ResultError, time.Since(start))
		http.Error(w, "query telemetry error", http.StatusInternalServerError)
		return
	}

	metrics.ObserveExport("csv", metrics.ResultSuccess, time.Since(start))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="telemetry.csv"`)

	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"box_id",
		"sample_id",
		"timestamp",
		"temperature",
		"humidity",
		"geolocation",
	})
	for _, reading := range readings {
		_ = writer.Write([]string{
			reading.BoxID,
			reading.SampleID,
			reading.Timestamp.UTC().Format(timeLayout),
			formatFloatPtr(reading.Temperature),
			formatFloatPtr(reading.Humidity),
			reading.Geolocation,
		})
	}
	writer.Flush()
}

// buildComplianceXLSX renders a summary sheet plus one excursion row per
// violation.
func buildComplianceXLSX(report *analyticsapp.ComplianceReport) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	excursionSheet := "excursions"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(excursionSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Cold Chain Compliance Report")
	_ = f.SetCellValue(summarySheet, "A3", "Box")
	_ = f.SetCellValue(summarySheet, "B3", report.BoxID)
	_ = f.SetCellValue(summarySheet, "A4", "Sample")
	_ = f.SetCellValue(summarySheet, "B4", report.SampleID)
	_ = f.SetCellValue(summarySheet, "A5", "SLA")
	_ = f.SetCellValue(summarySheet, "B5", report.SLA)
	_ = f.SetCellValue(summarySheet, "A6", "Temperature Band")
	_ = f.SetCellValue(summarySheet, "B6", fmt.Sprintf("%.1f to %.1f", report.Band.TempMin, report.Band.TempMax))
	_ = f.SetCellValue(summarySheet, "A7", "Humidity Band")
	_ = f.SetCellValue(summarySheet, "B7", fmt.Sprintf("%.1f to %.1f", report.Band.HumidityMin, report.Band.HumidityMax))
	_ = f.SetCellValue(summarySheet, "A8", "Points")
	_ = f.SetCellValue(summarySheet, "B8", report.NumPoints)
	_ = f.SetCellValue(summarySheet, "A9", "In Range (%)")
	_ = f.SetCellValue(summarySheet, "B9", report.InRangePct)
	_ = f.SetCellValue(summarySheet, "A10", "Excursions")
	_ = f.SetCellValue(summarySheet, "B10", len(report.Excursions))

	_ = f.SetCellValue(excursionSheet, "A1", "Timestamp")
	_ = f.SetCellValue(excursionSheet, "B1", "Metric")
	_ = f.SetCellValue(excursionSheet, "C1", "Value")
	_ = f.SetCellValue(excursionSheet, "D1", "Band Min")
	_ = f.SetCellValue(excursionSheet, "E1", "Band Max")
	for i, excursion := range report.Excursions {
		row := i + 2
		_ = f.SetCellValue(excursionSheet, fmt.Sprintf("A%d", row), excursion.Timestamp.UTC().Format(timeLayout))
		_ = f.SetCellValue(excursionSheet, fmt.Sprintf("B%d", row), excursion.Metric)
		_ = f.SetCellValue(excursionSheet, fmt.Sprintf("C%d", row), excursion.Value)
		_ = f.SetCellValue(excursionSheet, fmt.Sprintf("D%d", row), excursion.Band[0])
		_ = f.SetCellValue(excursionSheet, fmt.Sprintf("E%d", row), excursion.Band[1])
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// buildCompliancePDF renders a one-page report with an excursion table.
func buildCompliancePDF(report *analyticsapp.ComplianceReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Cold Chain Compliance Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	if report.BoxID != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Box: %s", report.BoxID))
		pdf.Ln(5)
	}
	if report.SampleID != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Sample: %s", report.SampleID))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("SLA: %s", report.SLA))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Temperature Band: %.1f to %.1f", report.Band.TempMin, report.Band.TempMax))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Humidity Band: %.1f to %.1f", report.Band.HumidityMin, report.Band.HumidityMax))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Points: %d", report.NumPoints))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("In Range: %.2f%%", report.InRangePct))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(55, 6, "Timestamp", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Metric", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Band Min", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Band Max", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, excursion := range report.Excursions {
		pdf.CellFormat(55, 6, excursion.Timestamp.UTC().Format(timeLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, excursion.Metric, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", excursion.Value), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", excursion.Band[0]), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", excursion.Band[1]), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloatPtr(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}
