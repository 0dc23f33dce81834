package model

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentChallenge PaymentStatus = "CHALLENGE"
	PaymentSuccess   PaymentStatus = "SUCCESS"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentCancelled PaymentStatus = "CANCELLED"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentSuccess, PaymentFailed, PaymentCancelled, PaymentChallenge},
	PaymentChallenge: {PaymentSuccess, PaymentFailed},
}

// CanTransitionTo applies the gateway-driven payment state machine. SUCCESS accepts nothing.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsOpen reports whether the gateway may still move the payment.
func (s PaymentStatus) IsOpen() bool {
	return s == PaymentPending || s == PaymentChallenge
}

type Payment struct {
	BaseModel
	OrderID       uuid.UUID     `gorm:"type:uuid;not null;index" json:"order_id"`
	Amount        int64         `gorm:"not null" json:"amount"`
	PaymentMethod string        `gorm:"type:varchar(30)" json:"payment_method"`
	Bank          string        `gorm:"type:varchar(20)" json:"bank,omitempty"`
	VANumber      string        `gorm:"type:varchar(50)" json:"va_number,omitempty"`
	BillKey       string        `gorm:"type:varchar(50)" json:"bill_key,omitempty"`
	BillerCode    string        `gorm:"type:varchar(50)" json:"biller_code,omitempty"`
	Status        PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	// TransactionID is our reference at the gateway; nil until the gateway accepted it.
	TransactionID        *string    `gorm:"type:varchar(64);uniqueIndex" json:"transaction_id,omitempty"`
	GatewayTransactionID string     `gorm:"type:varchar(64)" json:"gateway_transaction_id,omitempty"`
	PaymentType          string     `gorm:"type:varchar(30)" json:"payment_type,omitempty"`
	TransactionStatus    string     `gorm:"type:varchar(30)" json:"transaction_status,omitempty"`
	FraudStatus          string     `gorm:"type:varchar(30)" json:"fraud_status,omitempty"`
	StatusMessage        string     `gorm:"type:varchar(255)" json:"status_message,omitempty"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	PaidAt               *time.Time `json:"paid_at,omitempty"`
	LastSyncedAt         *time.Time `json:"last_synced_at,omitempty"`
}

// GatewayReferencePrefix starts every id this store sends to the gateway.
const GatewayReferencePrefix = "PAY-"

// GatewayReference is the id sent to the gateway as its order id.
func (p *Payment) GatewayReference() string {
	return GatewayReferencePrefix + p.ID.String()
}
