package handlers

import (
	"net/http"

	"travelapp/internal/domain/models"
	"travelapp/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreatePaymentLink opens a booking and returns the processor checkout URL.
//
// POST /api/bookings/payment-link
func (a API) CreatePaymentLink(c *gin.Context) {
	var in services.CreateBookingInput
	if !BindJSONOrError(c, &in) {
		return
	}
	link, err := a.bookingService(c).CreatePaymentLink(c.Request.Context(), in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

// GET /api/bookings/complete/:token
func (a API) GetByToken(c *gin.Context) {
	view, err := a.bookingService(c).AccessByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type detailsRequest struct {
	Passengers []models.Passenger `json:"passengers"`
}

// POST /api/bookings/complete/:token/details
func (a API) CompleteDetails(c *gin.Context) {
	var req detailsRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	view, err := a.bookingService(c).CompleteDetails(c.Request.Context(), c.Param("token"), req.Passengers)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type balanceRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// CreateBalanceLink charges the remaining balance, or part of it.
//
// POST /api/bookings/complete/:token/pay
func (a API) CreateBalanceLink(c *gin.Context) {
	var req balanceRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid_payload", "invalid JSON payload", err.Error())
			return
		}
	}
	link, err := a.bookingService(c).CreateBalancePaymentLink(c.Request.Context(), c.Param("token"), req.Amount)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

// GetReceiptByToken streams the customer receipt.
//
// GET /api/bookings/complete/:token/receipt
func (a API) GetReceiptByToken(c *gin.Context) {
	view, err := a.bookingService(c).AccessByToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if view.TokenExpired {
		respondError(c, http.StatusGone, "token_expired", "completion link has expired", nil)
		return
	}
	body, filename, err := a.docsService(c).GenerateReceipt(c.Request.Context(), view.Booking.ID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	sendPDF(c, "inline", filename, body)
}
