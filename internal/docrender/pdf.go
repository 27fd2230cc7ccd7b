package docrender

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/magabrotheeeer/legal-letters/internal/models"
)

const (
	margin     = 25.4
	lineHeight = 6.0
	dateLayout = "January 2, 2006"
)

// PDFRenderer рисует письмо на странице формата Letter и сохраняет его в Store.
type PDFRenderer struct {
	store *Store
	now   func() time.Time
}

// NewPDFRenderer создаёт рендерер поверх хранилища файлов.
func NewPDFRenderer(store *Store) *PDFRenderer {
	return &PDFRenderer{store: store, now: time.Now}
}

// Render отрисовывает письмо и возвращает имя сохранённого файла.
func (r *PDFRenderer) Render(ctx context.Context, l models.Letter) (string, error) {
	const op = "docrender.PDFRenderer.Render"
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if l.ID == "" {
		return "", fmt.Errorf("%s: letter id is empty", op)
	}

	now := r.now()
	name := FileName(l.ID, now)
	date := now
	if l.CompletedAt != nil {
		date = *l.CompletedAt
	}

	err := r.store.Save(name, func(w io.Writer) error {
		return writeLetter(w, l, date)
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return name, nil
}

func writeLetter(w io.Writer, l models.Letter, date time.Time) error {
	pdf := fpdf.New("P", "mm", "Letter", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(tr("Legal Letter - "+l.Subject), false)

	footer := tr(fmt.Sprintf("This letter was generated on %s | Document ID: %s", date.Format(dateLayout), l.ID))
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Times", "I", 8)
		pdf.SetTextColor(136, 136, 136)
		pdf.CellFormat(0, 5, footer, "T", 0, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	})
	pdf.AddPage()

	firm := l.SenderFirmName
	if firm == "" {
		firm = "LEGAL SERVICES"
	}
	pdf.SetFont("Times", "B", 18)
	pdf.CellFormat(0, 9, tr(firm), "", 1, "C", false, 0, "")
	pdf.SetFont("Times", "", 11)
	pdf.CellFormat(0, 6, "Professional Legal Correspondence", "B", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.CellFormat(0, lineHeight, date.Format(dateLayout), "", 1, "R", false, 0, "")
	pdf.Ln(4)

	addressBlock(pdf, tr, "FROM:", l.SenderName, l.SenderAddress)
	addressBlock(pdf, tr, "TO:", l.RecipientName, l.RecipientAddress)

	pdf.SetFont("Times", "BU", 12)
	pdf.MultiCell(0, lineHeight, tr("RE: "+l.Subject), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Times", "", 12)
	for _, p := range paragraphs(l.Body()) {
		pdf.MultiCell(0, lineHeight, tr(p), "", "J", false)
		pdf.Ln(3)
	}

	pdf.Ln(8)
	pdf.CellFormat(0, lineHeight, "Sincerely,", "", 1, "L", false, 0, "")
	pdf.Ln(14)
	x, y := pdf.GetXY()
	pdf.Line(x, y, x+65, y)
	pdf.Ln(2)
	pdf.SetFont("Times", "B", 12)
	pdf.CellFormat(0, lineHeight, tr(l.SenderName), "", 1, "L", false, 0, "")
	if l.SenderFirmName != "" {
		pdf.SetFont("Times", "", 10)
		pdf.CellFormat(0, lineHeight, tr(l.SenderFirmName), "", 1, "L", false, 0, "")
	}

	return pdf.Output(w)
}

func addressBlock(pdf *fpdf.Fpdf, tr func(string) string, label, name string, a models.Address) {
	a = a.WithDefaults()
	pdf.SetFont("Times", "B", 9)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(0, 5, label, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Times", "B", 11)
	pdf.CellFormat(0, 5, tr(name), "", 1, "L", false, 0, "")
	pdf.SetFont("Times", "", 11)
	for _, line := range []string{
		a.Street,
		fmt.Sprintf("%s, %s %s", a.City, a.State, a.Zip),
		a.Country,
	} {
		pdf.CellFormat(0, 5, tr(line), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)
}

// paragraphs делит текст по пустым строкам, склеивая переносы внутри абзаца.
func paragraphs(content string) []string {
	if strings.TrimSpace(content) == "" {
		return []string{"No content available."}
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(content, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, strings.Join(strings.Fields(strings.ReplaceAll(p, "\n", " ")), " "))
	}
	return out
}
