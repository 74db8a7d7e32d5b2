package handlers

import (
	"fmt"
	"net/http"

	"travelapp/internal/domain"
	"travelapp/internal/http/middleware"
	"travelapp/internal/services"
	"travelapp/internal/utils"

	"github.com/gin-gonic/gin"
)

// GET /api/admin/bookings?page=&pageSize=&status=
func (a API) ListBookings(c *gin.Context) {
	page := domain.Pagination{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 20),
	}
	items, page, err := a.bookingService(c).List(c.Request.Context(), page, c.Query("status"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "pagination": page})
}

// GET /api/admin/bookings/:id
func (a API) GetBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := a.bookingService(c).Get(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type statusRequest struct {
	Status string `json:"status"`
}

// PUT /api/admin/bookings/:id/status
func (a API) UpdateBookingStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	b, err := a.bookingService(c).UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	a.audit(c, "booking.status", id, req.Status)
	c.JSON(http.StatusOK, b)
}

// POST /api/admin/bookings/:id/payments
func (a API) RecordPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var in services.ManualPaymentInput
	if !BindJSONOrError(c, &in) {
		return
	}
	change, err := a.paymentService(c).RecordManualPayment(c.Request.Context(), id, in)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	a.audit(c, "payment.create", id, in.Amount.StringFixed(2))
	c.JSON(http.StatusCreated, change)
}

// DELETE /api/admin/payments/:id
func (a API) DeletePayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	change, err := a.paymentService(c).DeletePayment(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	a.audit(c, "payment.delete", id, "")
	c.JSON(http.StatusOK, change)
}

// POST /api/admin/bookings/:id/reconcile
func (a API) ReconcileBooking(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := a.paymentService(c).ReconcileBooking(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SyncPayment pulls the current order state from the processor, for
// deliveries that never arrived.
//
// POST /api/admin/payments/:id/sync
func (a API) SyncPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := a.paymentService(c).SyncGatewayOrder(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/admin/bookings/:id/invoice
func (a API) GetInvoice(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	body, filename, err := a.docsService(c).GenerateInvoice(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	sendPDF(c, "attachment", filename, body)
}

func (a API) audit(c *gin.Context, action string, id int64, detail string) {
	admin, _ := middleware.GetAdmin(c)
	utils.LogEvent(middleware.GetRequestID(c), "admin", action,
		fmt.Sprintf("admin=%s target=%d detail=%s", admin.Email, id, detail))
}
