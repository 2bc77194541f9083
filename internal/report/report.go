// Package report renders a follow-up record as a PDF report.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// Header identifies the document and follow-up a report belongs to.
type Header struct {
	Document types.DocumentID
	Family   string
	FollowUp int
}

const (
	margin     = 18.0 // mm, about 50pt
	lineHeight = 5.0
	fontFamily = "Helvetica"
)

var (
	headerFill = [3]int{0, 100, 0}     // dark green
	bodyFill   = [3]int{198, 239, 206} // light green
)

// Filename returns "reporte_{fecha without dashes}_{HHMMSS}.pdf".
func Filename(r types.Record, now time.Time) string {
	return fmt.Sprintf("reporte_%s_%s.pdf", strings.ReplaceAll(r.Fecha, "-", ""), now.Format("150405"))
}

// Render writes the PDF report of r to w. Sections with no content are
// left out.
func Render(w io.Writer, h Header, r types.Record, generatedAt time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle("Reporte de seguimiento", true)
	pdf.SetCreator("seguimientos", true)
	pdf.SetCreationDate(generatedAt)
	pdf.SetModificationDate(generatedAt)

	doc := &builder{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 4, doc.tr(fmt.Sprintf("Documento generado automáticamente el %s  |  Página %d",
			generatedAt.Format("02/01/2006 a las 15:04:05"), pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	doc.title("REPORTE DE SEGUIMIENTO")
	doc.subtitle(fmt.Sprintf("Fecha y Hora: %s", strings.TrimSpace(r.Fecha+" "+r.Hora)))
	subject := fmt.Sprintf("Documento %s  |  %s", h.Document.Number, types.FollowUpName(h.FollowUp))
	if h.Family != "" {
		subject += "  |  Familia " + h.Family
	}
	doc.subtitle(subject)
	doc.pdf.Ln(4)

	if len(r.Dimensiones) > 0 {
		doc.section("DIMENSIONES EVALUADAS")
		doc.paragraph(strings.Join(r.Dimensiones, ", "))
	}
	doc.textSection("OBJETIVO", r.Objetivo)
	doc.textSection("ASPECTOS ABORDADOS", r.AspectosAbordados)
	doc.textSection("AVANCES LOGRADOS", r.Avances)
	doc.textSection("RETOS IDENTIFICADOS", r.Retos)
	doc.textSection("OPORTUNIDADES DE MEJORA", r.Oportunidades)

	if len(r.Compromisos) > 0 {
		doc.section("COMPROMISOS ADQUIRIDOS")
		widths := doc.columns(0.6, 0.22, 0.18)
		doc.row(widths, []string{"Descripción", "Fecha de cumplimiento", "Responsable"}, true)
		for _, c := range r.Compromisos {
			doc.row(widths, []string{c.Descripcion, c.FechaCumplimiento, c.Responsable}, false)
		}
		doc.pdf.Ln(4)
	}

	if len(r.Participantes) > 0 {
		doc.section("PARTICIPANTES")
		widths := doc.columns(0.5, 0.5)
		doc.row(widths, []string{"Nombre", "Rol"}, true)
		for _, p := range r.Participantes {
			doc.row(widths, []string{p.Nombre, p.Rol}, false)
		}
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// builder wraps the fpdf document with the report's text styles. tr maps
// UTF-8 text onto the cp1252 encoding of the core fonts.
type builder struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (b *builder) title(text string) {
	b.pdf.SetFont(fontFamily, "B", 18)
	b.pdf.SetTextColor(0, 0, 139)
	b.pdf.CellFormat(0, 10, b.tr(text), "", 1, "C", false, 0, "")
	b.pdf.Ln(2)
}

func (b *builder) subtitle(text string) {
	b.pdf.SetFont(fontFamily, "", 11)
	b.pdf.SetTextColor(64, 64, 64)
	b.pdf.CellFormat(0, 6, b.tr(text), "", 1, "C", false, 0, "")
}

func (b *builder) section(text string) {
	b.pdf.Ln(2)
	b.pdf.SetFont(fontFamily, "B", 13)
	b.pdf.SetTextColor(0, 100, 0)
	b.pdf.CellFormat(0, 8, b.tr(text), "", 1, "L", false, 0, "")
	b.pdf.SetTextColor(0, 0, 0)
}

func (b *builder) paragraph(text string) {
	b.pdf.SetFont(fontFamily, "", 10)
	b.pdf.SetTextColor(0, 0, 0)
	b.pdf.MultiCell(0, lineHeight, b.tr(text), "", "L", false)
	b.pdf.Ln(2)
}

func (b *builder) textSection(heading, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	b.section(heading)
	b.paragraph(text)
}

// columns splits the printable width by the given fractions.
func (b *builder) columns(fractions ...float64) []float64 {
	pageW, _ := b.pdf.GetPageSize()
	left, _, right, _ := b.pdf.GetMargins()
	usable := pageW - left - right
	widths := make([]float64, len(fractions))
	for i, f := range fractions {
		widths[i] = usable * f
	}
	return widths
}

// row draws one table row. Cells wrap, and every cell in the row takes the
// height of the tallest one.
func (b *builder) row(widths []float64, cells []string, header bool) {
	if header {
		b.pdf.SetFont(fontFamily, "B", 10)
		b.pdf.SetFillColor(headerFill[0], headerFill[1], headerFill[2])
		b.pdf.SetTextColor(255, 255, 255)
	} else {
		b.pdf.SetFont(fontFamily, "", 9)
		b.pdf.SetFillColor(bodyFill[0], bodyFill[1], bodyFill[2])
		b.pdf.SetTextColor(0, 0, 0)
	}

	lines := 1
	translated := make([]string, len(cells))
	for i, c := range cells {
		translated[i] = b.tr(c)
		if n := len(b.pdf.SplitText(translated[i], widths[i]-2)); n > lines {
			lines = n
		}
	}
	height := float64(lines)*lineHeight + 2

	_, pageH := b.pdf.GetPageSize()
	_, _, _, bottom := b.pdf.GetMargins()
	if b.pdf.GetY()+height > pageH-bottom {
		b.pdf.AddPage()
	}

	x, y := b.pdf.GetXY()
	for i, text := range translated {
		b.pdf.Rect(x, y, widths[i], height, "FD")
		b.pdf.SetXY(x+1, y+1)
		b.pdf.MultiCell(widths[i]-2, lineHeight, text, "", "L", false)
		x += widths[i]
	}
	left, _, _, _ := b.pdf.GetMargins()
	b.pdf.SetXY(left, y+height)
}
