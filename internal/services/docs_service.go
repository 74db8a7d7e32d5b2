package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"travelapp/internal/domain/models"
	"travelapp/internal/repositories"
	"travelapp/internal/utils"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
)

// DocsService renders booking receipts and invoices as PDF.
type DocsService struct {
	BookingRepo   repositories.BookingRepository
	PaymentRepo   repositories.PaymentRepository
	TripRepo      repositories.TripRepository
	PassengerRepo repositories.PassengerRepository
	RequestID     string
	Now           func() time.Time
	Loader        func(ctx context.Context, bookingID int64) (bookingDocData, error)
}

type bookingDocData struct {
	BookingID     int64
	CustomerName  string
	CustomerEmail string
	TripTitle     string
	Destination   string
	Adults        int
	Children      int
	Currency      string
	TotalPrice    decimal.Decimal
	TotalPaid     decimal.Decimal
	PaymentStatus models.PaymentStatus
	Payments      []docPaymentLine
	Passengers    []string
}

type docPaymentLine struct {
	Date      time.Time
	Method    string
	Reference string
	Amount    decimal.Decimal
}

func (d bookingDocData) balance() decimal.Decimal {
	return decimal.Max(d.TotalPrice.Sub(d.TotalPaid), decimal.Zero)
}

func (s DocsService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return utils.NowUTC()
}

// GenerateReceipt lists the payments that count toward the booking.
func (s DocsService) GenerateReceipt(ctx context.Context, bookingID int64) ([]byte, string, error) {
	data, err := s.loadBookingDocData(ctx, bookingID)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "docs", "generate_receipt", fmt.Sprintf("booking_id=%d", bookingID))
	return buildReceiptPDF(data, s.now())
}

func (s DocsService) GenerateInvoice(ctx context.Context, bookingID int64) ([]byte, string, error) {
	data, err := s.loadBookingDocData(ctx, bookingID)
	if err != nil {
		return nil, "", err
	}
	utils.LogEvent(s.RequestID, "docs", "generate_invoice", fmt.Sprintf("booking_id=%d", bookingID))
	return buildInvoicePDF(data, s.now())
}

func (s DocsService) loadBookingDocData(ctx context.Context, bookingID int64) (bookingDocData, error) {
	if s.Loader != nil {
		return s.Loader(ctx, bookingID)
	}
	b, err := s.BookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return bookingDocData{}, err
	}
	ledger, err := s.PaymentRepo.ListByBookingID(ctx, bookingID)
	if err != nil {
		return bookingDocData{}, err
	}
	_, paid := ComputePaymentStatus(b.TotalPrice, ledger)

	out := bookingDocData{
		BookingID:     b.ID,
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		Adults:        b.Adults,
		Children:      b.Children,
		Currency:      b.Currency,
		TotalPrice:    b.TotalPrice,
		TotalPaid:     paid,
		PaymentStatus: b.PaymentStatus,
	}
	for _, p := range ledger {
		if !p.Counts() || p.Amount.IsZero() {
			continue
		}
		out.Payments = append(out.Payments, docPaymentLine{
			Date:      p.CreatedAt,
			Method:    string(p.Method),
			Reference: p.Reference,
			Amount:    p.Amount,
		})
	}

	// trip and passengers are decoration; the document still renders without them
	if trip, err := s.TripRepo.GetByID(ctx, b.TripID); err == nil {
		out.TripTitle = trip.Title
		out.Destination = trip.Destination
	}
	if passengers, err := s.PassengerRepo.ListByBookingID(ctx, b.ID); err == nil {
		for _, p := range passengers {
			out.Passengers = append(out.Passengers, p.FullName)
		}
	}
	return out, nil
}

func buildReceiptPDF(d bookingDocData, now time.Time) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Payment receipt", false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "PAYMENT RECEIPT")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Booking        : #%d", d.BookingID),
		fmt.Sprintf("Customer       : %s", safe(d.CustomerName, "-")),
		fmt.Sprintf("Email          : %s", safe(d.CustomerEmail, "-")),
		fmt.Sprintf("Trip           : %s", safe(d.TripTitle, "-")),
		fmt.Sprintf("Destination    : %s", safe(d.Destination, "-")),
		fmt.Sprintf("Travellers     : %d adult(s), %d child(ren)", d.Adults, d.Children),
		fmt.Sprintf("Issued         : %s UTC", utils.FormatDateTime(now)),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Payments received:")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	if len(d.Payments) == 0 {
		pdf.Cell(0, 6, "No payments received yet.")
		pdf.Ln(6)
	}
	for i, p := range d.Payments {
		pdf.Cell(0, 6, fmt.Sprintf("%d) %s  %-13s %s  %s", i+1, utils.FormatDate(p.Date), p.Method, safe(p.Reference, "-"), utils.FormatMoney(p.Amount, d.Currency)))
		pdf.Ln(6)
	}

	pdf.Ln(4)
	writeTotals(pdf, d)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("RECEIPT_%d_%s.pdf", d.BookingID, utils.SafeFilenamePart(d.CustomerName))
	return buf.Bytes(), filename, nil
}

func buildInvoicePDF(d bookingDocData, now time.Time) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "INVOICE")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, fmt.Sprintf("Invoice no   : INV-%d", d.BookingID))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Date         : "+utils.FormatDate(now))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Billed to:")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, safe(d.CustomerName, "-"))
	pdf.Ln(7)
	pdf.Cell(0, 7, safe(d.CustomerEmail, "-"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Details:")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 11)
	desc := fmt.Sprintf("%s (%s), %d adult(s), %d child(ren)",
		safe(d.TripTitle, "Trip"), safe(d.Destination, "-"), d.Adults, d.Children)
	pdf.MultiCell(0, 6, "1) "+desc, "", "", false)
	if len(d.Passengers) > 0 {
		pdf.MultiCell(0, 6, "Passengers: "+strings.Join(d.Passengers, ", "), "", "", false)
	}
	pdf.Ln(4)
	writeTotals(pdf, d)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("INVOICE_%d_%s.pdf", d.BookingID, utils.SafeFilenamePart(d.CustomerName))
	return buf.Bytes(), filename, nil
}

func writeTotals(pdf *gofpdf.Fpdf, d bookingDocData) {
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Total price : "+utils.FormatMoney(d.TotalPrice, d.Currency))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Paid        : "+utils.FormatMoney(d.TotalPaid, d.Currency))
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Balance due : "+utils.FormatMoney(d.balance(), d.Currency))
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.Cell(0, 6, "Payment status: "+safe(string(d.PaymentStatus), "pending"))
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}
