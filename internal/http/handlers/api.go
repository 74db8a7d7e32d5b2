package handlers

import (
	"database/sql"

	intconfig "travelapp/internal/config"
	intdb "travelapp/internal/db"
	"travelapp/internal/http/middleware"
	"travelapp/internal/repositories"
	"travelapp/internal/services"

	"github.com/gin-gonic/gin"
)

// API carries the dependencies handlers build their per-request services
// from.
type API struct {
	Env      intconfig.Env
	DB       *sql.DB
	Tx       intdb.TxManager
	Gateway  services.PaymentGateway
	Notifier services.BookingNotifier
}

func (a API) repos() (repositories.BookingRepository, repositories.PaymentRepository) {
	return repositories.BookingRepository{DB: a.DB}, repositories.PaymentRepository{DB: a.DB}
}

func (a API) bookingService(c *gin.Context) services.BookingService {
	bookings, payments := a.repos()
	return services.BookingService{
		BookingRepo:   bookings,
		PaymentRepo:   payments,
		TripRepo:      repositories.TripRepository{DB: a.DB},
		PassengerRepo: repositories.PassengerRepository{DB: a.DB},
		Gateway:       a.Gateway,
		Tx:            a.Tx,
		Notifier:      a.Notifier,
		SiteURL:       a.Env.SiteURL,
		RequestID:     middleware.GetRequestID(c),
	}
}

func (a API) webhookService(c *gin.Context) services.WebhookService {
	bookings, payments := a.repos()
	return services.WebhookService{
		PaymentRepo:   payments,
		BookingRepo:   bookings,
		Tx:            a.Tx,
		Notifier:      a.Notifier,
		Secret:        a.Env.Revolut.WebhookSecret,
		AllowUnsigned: a.Env.Revolut.AllowUnsignedWebhooks,
		SiteURL:       a.Env.SiteURL,
		RequestID:     middleware.GetRequestID(c),
	}
}

func (a API) paymentService(c *gin.Context) services.PaymentService {
	bookings, payments := a.repos()
	return services.PaymentService{
		BookingRepo: bookings,
		PaymentRepo: payments,
		Gateway:     a.Gateway,
		Tx:          a.Tx,
		Notifier:    a.Notifier,
		SiteURL:     a.Env.SiteURL,
		RequestID:   middleware.GetRequestID(c),
	}
}

func (a API) docsService(c *gin.Context) services.DocsService {
	bookings, payments := a.repos()
	return services.DocsService{
		BookingRepo:   bookings,
		PaymentRepo:   payments,
		TripRepo:      repositories.TripRepository{DB: a.DB},
		PassengerRepo: repositories.PassengerRepository{DB: a.DB},
		RequestID:     middleware.GetRequestID(c),
	}
}

// AuthService is exported so the router can hand its parser to the admin
// middleware.
func (a API) AuthService(requestID string) services.AuthService {
	return services.AuthService{
		AdminRepo: repositories.AdminRepository{DB: a.DB},
		Secret:    []byte(a.Env.JWTSecret),
		RequestID: requestID,
	}
}
