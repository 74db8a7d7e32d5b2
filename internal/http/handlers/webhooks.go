package handlers

import (
	"io"
	"net/http"

	"travelapp/internal/gateway"
	"travelapp/internal/services"
	"travelapp/internal/utils"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// RevolutWebhook receives processor events. The body is read raw because the
// signature covers the exact bytes sent.
//
// POST /api/webhooks/revolut
func (a API) RevolutWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read body"})
		return
	}

	svc := a.webhookService(c)
	_, err = svc.Handle(c.Request.Context(), services.WebhookInput{
		Body:      body,
		Signature: c.GetHeader(gateway.SignatureHeader),
		Timestamp: c.GetHeader(gateway.TimestampHeader),
	})
	if err != nil {
		status, _, msg := domainStatus(err)
		if status == http.StatusInternalServerError {
			utils.LogError(svc.RequestID, "webhook", "handle", err)
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
