package gateway

import (
	"encoding/json"
	"fmt"

	apperrors "go-material-store/pkg/errors"
	"go-material-store/pkg/validator"
)

// Notification is the asynchronous status callback. OrderID is our payment reference.
type Notification struct {
	OrderID           string     `json:"order_id" validate:"required,max=64"`
	TransactionID     string     `json:"transaction_id"`
	TransactionStatus string     `json:"transaction_status" validate:"required"`
	FraudStatus       string     `json:"fraud_status"`
	StatusCode        string     `json:"status_code" validate:"required,numeric"`
	GrossAmount       string     `json:"gross_amount" validate:"required"`
	SignatureKey      string     `json:"signature_key" validate:"required,hexadecimal"`
	PaymentType       string     `json:"payment_type"`
	StatusMessage     string     `json:"status_message"`
	TransactionTime   string     `json:"transaction_time"`
	SettlementTime    string     `json:"settlement_time"`
	VANumbers         []VANumber `json:"va_numbers"`
}

// ParseNotification decodes and validates a callback body.
func ParseNotification(body []byte) (*Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeValidation, err, "malformed notification")
	}
	if errs := validator.ValidateStruct(&n); len(errs) > 0 {
		return nil, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("invalid notification: %s", validator.Summary(errs))).WithDetails(errs)
	}
	return &n, nil
}

// Verify checks the signature against the server key.
func (n *Notification) Verify(serverKey string) bool {
	return VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey, n.SignatureKey)
}

// DedupKey identifies one delivery of one state of one transaction.
func (n *Notification) DedupKey() string {
	return n.OrderID + ":" + n.TransactionStatus + ":" + n.FraudStatus + ":" + n.StatusCode
}
