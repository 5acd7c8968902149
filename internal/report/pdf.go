package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/calbin/internal/btp"
	"example.com/calbin/internal/rules"
)

// SaveAcceptancePDF renders the lint acceptance report into a PDF document.
func SaveAcceptancePDF(rep rules.AcceptanceReport, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Calibration Lint Report", false)
	pdf.SetAuthor("calctl", false)
	pdf.SetCreator("calctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Calibration Lint Report")
	addSummarySection(pdf, rep)
	addGateMatrixSection(pdf, rep.GateMatrix)
	addFindingsSection(pdf, rep.Findings)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

// SavePatchPDF renders a parsed BTP container, its integrity state and its
// classification against a target binary into a PDF document. The QR stamp
// encodes the soft code and body checksum.
func SavePatchPDF(p *btp.Patch, status btp.PatchStatus, target string, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Patch Report", false)
	pdf.SetAuthor("calctl", false)
	pdf.SetCreator("calctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Patch Report")

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Container")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Version", value: p.Header.Version},
		{label: "Soft Code", value: emptyFallback(p.Header.SoftCode, "-")},
		{label: "Blocks", value: strconv.Itoa(len(p.Blocks))},
		{label: "Target Size", value: fmt.Sprintf("%d bytes", p.Header.FileSize)},
		{label: "Checksum", value: fmt.Sprintf("%08X (%s)", p.Header.StoredChecksum, crcLabel(p.CrcValid))},
	}
	if target != "" {
		items = append(items, struct {
			label string
			value string
		}{label: "Target", value: target})
		items = append(items, struct {
			label string
			value string
		}{label: "Classification", value: strings.ToUpper(status.String())})
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	addBlockTable(pdf, p.Blocks)
	addQRStamp(pdf, p)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addBlockTable(pdf *gofpdf.Fpdf, blocks []btp.Block) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Blocks")
	pdf.Ln(9)

	headers := []string{"#", "Offset", "Length", "Original", "Modified"}
	widths := []float64{12, 30, 22, 58, 58}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Courier", "", 8)
	lineHeight := 4.5
	for i, blk := range blocks {
		values := []string{
			strconv.Itoa(i),
			fmt.Sprintf("0x%08X", blk.FileOffset),
			strconv.Itoa(int(blk.Length)),
			hexPreview(blk.OriginalData),
			hexPreview(blk.ModifiedData),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addQRStamp(pdf *gofpdf.Fpdf, p *btp.Patch) {
	png, err := PatchStampQR(p.Header.SoftCode, p.Header.StoredChecksum, 256)
	if err != nil {
		return
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("patch-stamp", opts, bytes.NewReader(png))
	pdf.ImageOptions("patch-stamp", 15, pdf.GetY(), 30, 30, false, opts, 0, "")
	pdf.SetXY(50, pdf.GetY()+12)
	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 5, fmt.Sprintf("Stamp: BTP:%s:%08X", p.Header.SoftCode, p.Header.StoredChecksum))
	pdf.Ln(24)
}

func hexPreview(data []byte) string {
	const maxBytes = 16
	var b strings.Builder
	n := len(data)
	if n > maxBytes {
		n = maxBytes
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%02X", data[i])
		if i+1 < n {
			b.WriteByte(' ')
		}
	}
	if len(data) > maxBytes {
		b.WriteString(" ...")
	}
	return b.String()
}

func crcLabel(valid bool) string {
	if valid {
		return "valid"
	}
	return "MISMATCH"
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, rep rules.AcceptanceReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Total Findings", value: strconv.Itoa(rep.Summary.Total)},
		{label: "Errors", value: strconv.Itoa(rep.Summary.Errors)},
		{label: "Warnings", value: strconv.Itoa(rep.Summary.Warnings)},
		{label: "Overall", value: passLabel(rep.Summary.Pass)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addGateMatrixSection(pdf *gofpdf.Fpdf, rows []rules.GateResult) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Gate Matrix")
	pdf.Ln(9)

	headers := []string{"Rule", "Name", "Severity", "Pass", "Findings"}
	widths := []float64{26, 84, 24, 18, 18}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, row := range rows {
		values := []string{
			row.RuleId,
			emptyFallback(row.Name, "-"),
			emptyFallback(row.Severity, "UNKNOWN"),
			passLabel(row.Pass),
			strconv.Itoa(row.Findings),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addFindingsSection(pdf *gofpdf.Fpdf, findings []rules.Diagnostic) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Findings")
	pdf.Ln(9)

	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No findings recorded.", "", "L", false)
		return
	}

	for i, d := range findings {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s (%s)", i+1, d.RuleId, severityLabel(d.Severity))
		pdf.MultiCell(0, 5, header, "", "L", false)

		if msg := strings.TrimSpace(d.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}

		meta := findingMetadata(d)
		if meta != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, meta, "", "L", false)
		}

		if len(d.Refs) > 0 {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, "Refs: "+strings.Join(d.Refs, ", "), "", "L", false)
		}

		pdf.Ln(2)
	}
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func severityLabel(sev rules.Severity) string {
	if s := strings.TrimSpace(string(sev)); s != "" {
		return s
	}
	return "UNKNOWN"
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

func findingMetadata(d rules.Diagnostic) string {
	parts := make([]string, 0, 4)
	if !d.Ts.IsZero() {
		parts = append(parts, d.Ts.Format(time.RFC3339))
	}
	if d.File != "" {
		parts = append(parts, d.File)
	}
	if d.Parameter != "" {
		parts = append(parts, "Parameter "+d.Parameter)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " · ")
}
