package ticket

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/malulos-pos/api/internal/database"
	"github.com/malulos-pos/api/internal/enum"
)

// 80mm thermal roll. Height grows with content; gofpdf just needs a
// starting page size.
const (
	pageWidth  = 80.0
	pageHeight = 200.0
	margin     = 5.0
)

// Printer renders order receipts as PDF sized for an 80mm thermal
// printer. Implements the handler's TicketRenderer.
type Printer struct {
	businessName    string
	businessAddress string
	businessPhone   string
}

// NewPrinter creates a Printer with the business header printed on
// every receipt.
func NewPrinter(name, address, phone string) *Printer {
	if name == "" {
		name = "Malulos"
	}
	return &Printer{
		businessName:    name,
		businessAddress: address,
		businessPhone:   phone,
	}
}

// Render produces the receipt PDF for an order and its items.
func (p *Printer) Render(order database.Order, items []database.OrderItem) ([]byte, error) {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.AddPage()

	usable := pageWidth - 2*margin

	// Header
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(usable, 6, p.businessName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	if p.businessAddress != "" {
		pdf.CellFormat(usable, 4, p.businessAddress, "", 1, "C", false, 0, "")
	}
	if p.businessPhone != "" {
		pdf.CellFormat(usable, 4, "Tel: "+p.businessPhone, "", 1, "C", false, 0, "")
	}
	p.divider(pdf, usable)

	// Order header
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(usable, 5, "Orden "+order.OrderNumber, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(usable, 4, order.CreatedAt.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.CellFormat(usable, 4, channelLabel(order.Channel), "", 1, "L", false, 0, "")
	if order.Note.Valid && order.Note.String != "" {
		pdf.MultiCell(usable, 4, "Nota: "+order.Note.String, "", "L", false)
	}
	p.divider(pdf, usable)

	// Items
	pdf.SetFont("Helvetica", "", 8)
	for _, item := range items {
		name := item.ProductName
		if item.SizeName.Valid && item.SizeName.String != "" {
			name += " (" + item.SizeName.String + ")"
		}
		line := fmt.Sprintf("%dx %s", item.Quantity, name)
		pdf.CellFormat(usable-18, 4, line, "", 0, "L", false, 0, "")
		pdf.CellFormat(18, 4, money(item.LineTotal), "", 1, "R", false, 0, "")

		for _, mod := range item.Modifiers {
			pdf.CellFormat(usable, 4, "   + "+mod.Name, "", 1, "L", false, 0, "")
		}
		if item.Note.Valid && item.Note.String != "" {
			pdf.MultiCell(usable, 4, "   * "+item.Note.String, "", "L", false)
		}
	}
	p.divider(pdf, usable)

	// Totals
	p.totalRow(pdf, usable, "Subtotal", money(order.Subtotal), false)
	if dec := numericDecimal(order.Discount); !dec.IsZero() {
		p.totalRow(pdf, usable, "Descuento", "-"+money(order.Discount), false)
	}
	if dec := numericDecimal(order.Tax); !dec.IsZero() {
		p.totalRow(pdf, usable, "Impuesto", money(order.Tax), false)
	}
	p.totalRow(pdf, usable, "TOTAL", money(order.Total), true)

	if order.PaymentStatus == enum.PaymentStatusPaid {
		p.divider(pdf, usable)
		method := ""
		if order.PaymentMethod.Valid {
			method = order.PaymentMethod.String
		}
		p.totalRow(pdf, usable, "Pago ("+method+")", money(order.PaidAmount), false)
		if method == enum.PaymentMethodCash {
			p.totalRow(pdf, usable, "Recibido", money(order.TenderedAmount), false)
			p.totalRow(pdf, usable, "Cambio", money(order.ChangeAmount), false)
		}
	}

	p.divider(pdf, usable)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(usable, 4, "Gracias por su visita!", "", 1, "C", false, 0, "")
	pdf.CellFormat(usable, 4, time.Now().Format("2006-01-02 15:04:05"), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("ticket output: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Printer) divider(pdf *gofpdf.Fpdf, usable float64) {
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(usable, 3, strings.Repeat("-", 42), "", 1, "C", false, 0, "")
}

func (p *Printer) totalRow(pdf *gofpdf.Fpdf, usable float64, label, amount string, bold bool) {
	style := ""
	size := 8.0
	if bold {
		style = "B"
		size = 10
	}
	pdf.SetFont("Helvetica", style, size)
	pdf.CellFormat(usable-22, 5, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(22, 5, amount, "", 1, "R", false, 0, "")
}

func channelLabel(channel string) string {
	switch channel {
	case enum.ChannelDineIn:
		return "En mesa"
	case enum.ChannelTakeout:
		return "Para llevar"
	case enum.ChannelDelivery:
		return "Domicilio"
	}
	return channel
}

func numericDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func money(n pgtype.Numeric) string {
	return "$" + numericDecimal(n).StringFixed(2)
}
