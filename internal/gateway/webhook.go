package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"travelapp/internal/domain/models"
)

const (
	SignatureHeader = "Revolut-Signature"
	TimestampHeader = "Revolut-Request-Timestamp"

	EventOrderCompleted       = "ORDER_COMPLETED"
	EventOrderCancelled       = "ORDER_CANCELLED"
	EventOrderPaymentFailed   = "ORDER_PAYMENT_FAILED"
	EventOrderPaymentDeclined = "ORDER_PAYMENT_DECLINED"

	signatureVersion = "v1"
)

// WebhookEvent is the subset of the processor payload we act on.
type WebhookEvent struct {
	Event   string `json:"event"`
	OrderID string `json:"order_id"`
	// MerchantOrderExtRef is informational only; lookups go through OrderID.
	MerchantOrderExtRef string `json:"merchant_order_ext_ref,omitempty"`
}

// EventStatus maps a webhook event to the ledger status it sets. ok is false
// for events that carry no payment outcome.
func EventStatus(event string) (status models.ExternalStatus, ok bool) {
	switch event {
	case EventOrderCompleted:
		return models.ExternalCompleted, true
	case EventOrderCancelled:
		return models.ExternalCancelled, true
	case EventOrderPaymentFailed, EventOrderPaymentDeclined:
		return models.ExternalFailed, true
	default:
		return "", false
	}
}

// Sign returns the v1 signature for payload at timestamp.
func Sign(payload []byte, timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + "." + timestamp + "."))
	mac.Write(payload)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature checks header, a comma-separated list of v1=<hex>
// candidates, against payload. Any single match is enough since the processor
// signs with every active key while rotating.
func VerifyWebhookSignature(payload []byte, header, timestamp, secret string) bool {
	if secret == "" || header == "" || timestamp == "" {
		return false
	}
	expected := []byte(Sign(payload, timestamp, secret))

	matched := false
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if hmac.Equal([]byte(candidate), expected) {
			matched = true
		}
	}
	return matched
}
