package gateway

import (
	"strings"

	"go-material-store/internal/model"
)

// MapStatus translates transaction_status and fraud_status into a payment status.
// ok is false for states this system does not act on (refunds, chargebacks, unknown values).
func MapStatus(transactionStatus, fraudStatus string) (status model.PaymentStatus, ok bool) {
	fraud := strings.ToLower(strings.TrimSpace(fraudStatus))
	switch strings.ToLower(strings.TrimSpace(transactionStatus)) {
	case "capture":
		switch fraud {
		case "challenge":
			return model.PaymentChallenge, true
		case "deny":
			return model.PaymentFailed, true
		default:
			return model.PaymentSuccess, true
		}
	case "settlement":
		return model.PaymentSuccess, true
	case "cancel", "deny", "expire", "failure":
		return model.PaymentFailed, true
	case "pending", "authorize":
		return model.PaymentPending, true
	default:
		return "", false
	}
}
