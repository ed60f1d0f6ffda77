package gateway

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quangtran/dinehub-backend/pkg/config"
	pkgerrors "github.com/quangtran/dinehub-backend/pkg/errors"
)

const (
	wireVersion    = "2.1.0"
	wireCommand    = "pay"
	wireDateLayout = "20060102150405"
	wireOrderType  = "other"

	// ResponseCodeSuccess is the gateway's outcome code for a paid attempt.
	// Every other code on a callback means the attempt failed at the gateway.
	ResponseCodeSuccess = "00"
)

// gatewayZone pins timestamps to the gateway's expected UTC+7 wall clock.
var gatewayZone = time.FixedZone("ICT", 7*60*60)

// Client builds redirect URLs and parses signed callbacks for the redirect
// payment gateway. It holds no connection state; the gateway is browser-driven.
type Client struct {
	cfg config.GatewayConfig
	now func() time.Time
}

// NewClient validates the gateway credentials and returns a client.
func NewClient(cfg config.GatewayConfig) (*Client, error) {
	if cfg.MerchantCode == "" {
		return nil, fmt.Errorf("gateway merchant code is required")
	}
	if cfg.HashSecret == "" {
		return nil, fmt.Errorf("gateway hash secret is required")
	}
	if cfg.PayURL == "" {
		return nil, fmt.Errorf("gateway pay url is required")
	}
	if cfg.ReturnURL == "" {
		return nil, fmt.Errorf("gateway return url is required")
	}
	return &Client{cfg: cfg, now: time.Now}, nil
}

// RedirectRequest carries everything needed to mint a redirect URL.
type RedirectRequest struct {
	TxnRef    string
	AmountVND int64
	OrderInfo string
	IPAddr    string
	BankCode  string
	Locale    string
	ExpiresAt time.Time
}

// BuildRedirectURL renders the signed pay URL the customer is sent to.
// The amount is multiplied by 100 on the wire per the gateway contract.
func (c *Client) BuildRedirectURL(req RedirectRequest) (string, error) {
	if req.TxnRef == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "txn ref is required")
	}
	if req.AmountVND <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if req.OrderInfo == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order info is required")
	}

	now := c.now().In(gatewayZone)
	locale := req.Locale
	if locale == "" {
		locale = c.cfg.Locale
	}
	ip := req.IPAddr
	if ip == "" {
		ip = "127.0.0.1"
	}

	params := map[string]string{
		"vnp_Version":    wireVersion,
		"vnp_Command":    wireCommand,
		"vnp_TmnCode":    c.cfg.MerchantCode,
		"vnp_Amount":     strconv.FormatInt(req.AmountVND*100, 10),
		"vnp_CurrCode":   c.cfg.Currency,
		"vnp_TxnRef":     req.TxnRef,
		"vnp_OrderInfo":  req.OrderInfo,
		"vnp_OrderType":  wireOrderType,
		"vnp_Locale":     locale,
		"vnp_ReturnUrl":  c.cfg.ReturnURL,
		"vnp_IpAddr":     ip,
		"vnp_CreateDate": now.Format(wireDateLayout),
	}
	if req.BankCode != "" {
		params["vnp_BankCode"] = req.BankCode
	}
	if !req.ExpiresAt.IsZero() {
		params["vnp_ExpireDate"] = req.ExpiresAt.In(gatewayZone).Format(wireDateLayout)
	}

	params[ParamSecureHash] = Sign(c.cfg.HashSecret, params)

	return c.cfg.PayURL + "?" + encodeQuery(params), nil
}

// Callback is a parsed, signature-verified gateway callback (return or IPN).
type Callback struct {
	TxnRef        string
	AmountVND     int64
	ResponseCode  string
	BankCode      string
	TransactionNo string
	PayDate       *time.Time
	Raw           map[string]string
}

// Success reports whether the gateway marked the attempt paid.
func (c *Callback) Success() bool {
	return c.ResponseCode == ResponseCodeSuccess
}

// ErrInvalidSignature marks callbacks whose secure hash does not verify.
var ErrInvalidSignature = pkgerrors.New(pkgerrors.CodeUnauthorized, "gateway signature verification failed")

// ParseCallback verifies the secure hash over the query params and extracts
// the typed fields. The on-wire amount is divided by 100 back into VND.
func (c *Client) ParseCallback(values url.Values) (*Callback, error) {
	params := make(map[string]string, len(values))
	for key := range values {
		params[key] = values.Get(key)
	}

	provided := params[ParamSecureHash]
	if !Verify(c.cfg.HashSecret, params, provided) {
		return nil, ErrInvalidSignature
	}

	txnRef := params["vnp_TxnRef"]
	if txnRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback missing txn ref")
	}

	var amount int64
	if raw := params["vnp_Amount"]; raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback amount is not numeric")
		}
		if parsed%100 != 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback amount is not a whole VND value")
		}
		amount = parsed / 100
	}

	cb := &Callback{
		TxnRef:        txnRef,
		AmountVND:     amount,
		ResponseCode:  params["vnp_ResponseCode"],
		BankCode:      params["vnp_BankCode"],
		TransactionNo: params["vnp_TransactionNo"],
		Raw:           params,
	}
	if raw := params["vnp_PayDate"]; raw != "" {
		if parsed, err := time.ParseInLocation(wireDateLayout, raw, gatewayZone); err == nil {
			cb.PayDate = &parsed
		}
	}
	return cb, nil
}

// encodeQuery mirrors Canonicalize's ordering so the final URL carries its
// params in the same order they were signed.
func encodeQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key, value := range params {
		if value == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[key]))
	}
	return b.String()
}
