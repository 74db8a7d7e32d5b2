package notifications

import (
	"context"
	"fmt"

	"travelapp/internal/domain/models"
	"travelapp/internal/utils"
)

// Notifier renders booking emails and hands them to a Mailer, which may be a
// direct SMTP mailer or the async Dispatcher.
type Notifier struct {
	Mailer Mailer
	From   string
}

func (n Notifier) PaymentReceived(ctx context.Context, b models.Booking, completionURL string) error {
	return n.send(ctx, TemplatePaymentReceived, b, templateData{
		Name:          b.CustomerName,
		BookingID:     b.ID,
		Total:         utils.FormatMoney(b.TotalPrice, b.Currency),
		PaymentStatus: string(b.PaymentStatus),
		CompletionURL: completionURL,
		ExpiresAt:     utils.FormatDate(b.TokenExpiresAt),
	})
}

func (n Notifier) DetailsReceived(ctx context.Context, b models.Booking) error {
	return n.send(ctx, TemplateDetailsReceived, b, templateData{
		Name:          b.CustomerName,
		BookingID:     b.ID,
		Total:         utils.FormatMoney(b.TotalPrice, b.Currency),
		PaymentStatus: string(b.PaymentStatus),
		Passengers:    b.PassengerCount(),
	})
}

func (n Notifier) send(ctx context.Context, name string, b models.Booking, data templateData) error {
	if b.CustomerEmail == "" {
		return fmt.Errorf("booking %d has no customer email", b.ID)
	}
	subject, html, text, err := render(name, data)
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	return n.Mailer.Send(ctx, Email{
		Template: name,
		From:     n.From,
		To:       b.CustomerEmail,
		Subject:  subject,
		HTML:     html,
		Text:     text,
	})
}

// FromHeader formats the sender as "Name <address>".
func FromHeader(name, address string) string {
	if name == "" {
		return address
	}
	return fmt.Sprintf("%s <%s>", name, address)
}
