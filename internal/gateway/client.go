package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "go-material-store/pkg/errors"
)

const (
	defaultBaseURL        = "https://api.sandbox.midtrans.com"
	defaultTimeout        = 15 * time.Second
	responseReadLimit     = 64 * 1024
	defaultExpiryMinutes  = 24 * 60
	statusCodeOK          = "200"
	statusCodeCreated     = "201"
	statusCodeDuplicateID = "406"
	statusCodeNotFound    = "404"
)

const (
	OpCharge  = "charge"
	OpStatus  = "status"
	OpCancel  = "cancel"
	OpApprove = "approve"
)

var (
	errServerKeyRequired = errors.New("gateway server key is required")

	// ErrDuplicateOrder means the gateway already holds a transaction for this order id.
	ErrDuplicateOrder = errors.New("gateway transaction already exists")
	// ErrTransactionNotFound means the gateway has no transaction for this order id.
	ErrTransactionNotFound = errors.New("gateway transaction not found")
	ErrSandboxOnly         = errors.New("approve is only available in sandbox")
)

// Observer is told about every gateway round trip.
type Observer func(operation string, elapsed time.Duration, err error)

// Client speaks the gateway's Core API over HTTP.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	serverKey   string
	sandbox     bool
	defaultBank string
	observer    Observer
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

func WithSandbox(sandbox bool) Option {
	return func(c *Client) { c.sandbox = sandbox }
}

func WithDefaultBank(bank string) Option {
	return func(c *Client) {
		if b := strings.ToLower(strings.TrimSpace(bank)); b != "" {
			c.defaultBank = b
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(c *Client) { c.observer = observer }
}

func NewClient(serverKey string, opts ...Option) (*Client, error) {
	key := strings.TrimSpace(serverKey)
	if key == "" {
		return nil, errServerKeyRequired
	}
	client := &Client{
		httpClient:  &http.Client{Timeout: defaultTimeout},
		baseURL:     defaultBaseURL,
		serverKey:   key,
		sandbox:     true,
		defaultBank: "bca",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

func (c *Client) ServerKey() string {
	return c.serverKey
}

// CustomerDetails is forwarded to the gateway for the payment page and receipts.
type CustomerDetails struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type ItemDetail struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// TransactionRequest is everything needed to open a gateway transaction for one payment.
type TransactionRequest struct {
	OrderID       string
	GrossAmount   int64
	PaymentMethod string
	Bank          string
	Customer      CustomerDetails
	Items         []ItemDetail
	ExpiryMinutes int
}

type VANumber struct {
	Bank     string `json:"bank"`
	VANumber string `json:"va_number"`
}

// Result is the normalized gateway reply. Raw keeps the provider payload verbatim.
type Result struct {
	Success           bool            `json:"-"`
	StatusCode        string          `json:"status_code"`
	StatusMessage     string          `json:"status_message"`
	TransactionID     string          `json:"transaction_id"`
	OrderID           string          `json:"order_id"`
	GrossAmount       string          `json:"gross_amount"`
	PaymentType       string          `json:"payment_type"`
	TransactionStatus string          `json:"transaction_status"`
	FraudStatus       string          `json:"fraud_status"`
	VANumbers         []VANumber      `json:"va_numbers"`
	PermataVANumber   string          `json:"permata_va_number"`
	BillKey           string          `json:"bill_key"`
	BillerCode        string          `json:"biller_code"`
	ExpiryTime        string          `json:"expiry_time"`
	Raw               json.RawMessage `json:"-"`
}

// VA returns the bank and virtual-account number, whichever shape the gateway used.
func (r *Result) VA() (bank string, number string) {
	if r == nil {
		return "", ""
	}
	if len(r.VANumbers) > 0 {
		return r.VANumbers[0].Bank, r.VANumbers[0].VANumber
	}
	if r.PermataVANumber != "" {
		return "permata", r.PermataVANumber
	}
	return "", ""
}

// Expiry parses expiry_time in the gateway's local time (WIB).
func (r *Result) Expiry() *time.Time {
	if r == nil || r.ExpiryTime == "" {
		return nil
	}
	loc := time.FixedZone("WIB", 7*60*60)
	t, err := time.ParseInLocation("2006-01-02 15:04:05", r.ExpiryTime, loc)
	if err != nil {
		return nil
	}
	return &t
}

type chargeRequest struct {
	PaymentType        string             `json:"payment_type"`
	TransactionDetails transactionDetails `json:"transaction_details"`
	BankTransfer       *bankTransfer      `json:"bank_transfer,omitempty"`
	EChannel           *eChannel          `json:"echannel,omitempty"`
	CustomerDetails    CustomerDetails    `json:"customer_details"`
	ItemDetails        []ItemDetail       `json:"item_details"`
	CustomExpiry       customExpiry       `json:"custom_expiry"`
}

type transactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type bankTransfer struct {
	Bank string `json:"bank"`
}

type eChannel struct {
	BillInfo1 string `json:"bill_info1"`
	BillInfo2 string `json:"bill_info2"`
}

type customExpiry struct {
	ExpiryDuration int    `json:"expiry_duration"`
	Unit           string `json:"unit"`
}

// CreateTransaction opens a transaction. Item details must reconcile with GrossAmount.
func (c *Client) CreateTransaction(ctx context.Context, req TransactionRequest) (*Result, error) {
	if strings.TrimSpace(req.OrderID) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "gateway order id is required")
	}
	if err := ReconcileItems(req.Items, req.GrossAmount); err != nil {
		return nil, err
	}

	body := chargeRequest{
		TransactionDetails: transactionDetails{OrderID: req.OrderID, GrossAmount: req.GrossAmount},
		CustomerDetails:    req.Customer,
		ItemDetails:        req.Items,
		CustomExpiry:       customExpiry{ExpiryDuration: req.ExpiryMinutes, Unit: "minute"},
	}
	if body.CustomExpiry.ExpiryDuration <= 0 {
		body.CustomExpiry.ExpiryDuration = defaultExpiryMinutes
	}

	switch method := strings.ToLower(strings.TrimSpace(req.PaymentMethod)); method {
	case "", "bank_transfer":
		bank := strings.ToLower(strings.TrimSpace(req.Bank))
		if bank == "" {
			bank = c.defaultBank
		}
		body.PaymentType = "bank_transfer"
		body.BankTransfer = &bankTransfer{Bank: bank}
	case "echannel":
		body.PaymentType = "echannel"
		body.EChannel = &eChannel{BillInfo1: "Payment:", BillInfo2: "Building materials"}
	case "qris", "gopay":
		body.PaymentType = method
	default:
		return nil, apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", req.PaymentMethod))
	}

	return c.do(ctx, OpCharge, http.MethodPost, "/v2/charge", body)
}

// CheckStatus fetches the current state of a transaction by our order id.
func (c *Client) CheckStatus(ctx context.Context, orderID string) (*Result, error) {
	return c.do(ctx, OpStatus, http.MethodGet, "/v2/"+url.PathEscape(orderID)+"/status", nil)
}

func (c *Client) Cancel(ctx context.Context, orderID string) (*Result, error) {
	return c.do(ctx, OpCancel, http.MethodPost, "/v2/"+url.PathEscape(orderID)+"/cancel", nil)
}

// Approve accepts a challenged transaction. Sandbox only.
func (c *Client) Approve(ctx context.Context, orderID string) (*Result, error) {
	if !c.sandbox {
		return nil, apperrors.Wrap(apperrors.CodeForbidden, ErrSandboxOnly, "approve disabled")
	}
	return c.do(ctx, OpApprove, http.MethodPost, "/v2/"+url.PathEscape(orderID)+"/approve", nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, payload any) (result *Result, err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer(op, time.Since(start), err)
		}
	}()

	var reader io.Reader
	if payload != nil {
		encoded, mErr := json.Marshal(payload)
		if mErr != nil {
			return nil, apperrors.Wrap(apperrors.CodeInternal, mErr, "marshal "+op+" request")
		}
		reader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGateway, err, "build "+op+" request")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.serverKey+":")))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGateway, err, "execute "+op+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGateway, err, "read "+op+" response")
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, apperrors.Wrap(apperrors.CodeGateway,
			fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), op+" request failed")
	}

	var out Result
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeGateway, err, "decode "+op+" response")
	}
	out.Raw = json.RawMessage(raw)

	switch out.StatusCode {
	case statusCodeOK, statusCodeCreated:
		out.Success = true
		return &out, nil
	case statusCodeDuplicateID:
		return &out, apperrors.Wrap(apperrors.CodeGateway, ErrDuplicateOrder, out.StatusMessage).
			WithDetails(map[string]string{"status_code": out.StatusCode})
	case statusCodeNotFound:
		return &out, apperrors.Wrap(apperrors.CodeGateway, ErrTransactionNotFound, out.StatusMessage).
			WithDetails(map[string]string{"status_code": out.StatusCode})
	}
	// status, cancel and approve report the transaction state under codes like 407 (expired) and 202 (denied)
	if op != OpCharge && out.TransactionStatus != "" && !strings.HasPrefix(out.StatusCode, "5") {
		return &out, nil
	}
	return &out, apperrors.Wrap(apperrors.CodeGateway,
		fmt.Errorf("status %s: %s", out.StatusCode, out.StatusMessage), op+" rejected").
		WithDetails(map[string]string{"status_code": out.StatusCode})
}
