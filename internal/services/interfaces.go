package services

import (
	"context"

	"travelapp/internal/domain/models"
	"travelapp/internal/gateway"
)

// PaymentGateway is the slice of the processor client the services use.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (gateway.Order, error)
	GetOrder(ctx context.Context, orderID string) (gateway.Order, error)
}

// BookingNotifier sends customer-facing emails. Implementations are best
// effort; callers log and drop their errors.
type BookingNotifier interface {
	PaymentReceived(ctx context.Context, booking models.Booking, completionURL string) error
	DetailsReceived(ctx context.Context, booking models.Booking) error
}

type noopNotifier struct{}

func (noopNotifier) PaymentReceived(context.Context, models.Booking, string) error { return nil }
func (noopNotifier) DetailsReceived(context.Context, models.Booking) error         { return nil }
