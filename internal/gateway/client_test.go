package gateway

import (
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/quangtran/dinehub-backend/pkg/config"
	"github.com/quangtran/dinehub-backend/pkg/enums"
)

func testGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		MerchantCode: "DINEHUB1",
		HashSecret:   "testhashsecret",
		PayURL:       "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:    "https://dinehub.example/payments/vnpay/return",
		Currency:     "VND",
		Locale:       "vn",
		AttemptTTL:   30 * time.Minute,
	}
}

func testClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(testGatewayConfig())
	require.NoError(t, err)
	client.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC)
	}
	return client
}

func TestBuildRedirectURL_SignedAndComplete(t *testing.T) {
	client := testClient(t)

	redirect, err := client.BuildRedirectURL(RedirectRequest{
		TxnRef:    "ORDER_" + uuid.NewString(),
		AmountVND: 970000,
		OrderInfo: "Thanh toan don hang",
		IPAddr:    "203.0.113.10",
		ExpiresAt: time.Date(2025, 6, 1, 13, 0, 45, 0, time.UTC),
	})
	require.NoError(t, err)

	parsed, err := url.Parse(redirect)
	require.NoError(t, err)
	query := parsed.Query()

	require.Equal(t, "2.1.0", query.Get("vnp_Version"))
	require.Equal(t, "pay", query.Get("vnp_Command"))
	require.Equal(t, "DINEHUB1", query.Get("vnp_TmnCode"))
	require.Equal(t, "97000000", query.Get("vnp_Amount"))
	require.Equal(t, "VND", query.Get("vnp_CurrCode"))
	// 12:30:45 UTC renders as 19:30:45 at the gateway's UTC+7 wall clock
	require.Equal(t, "20250601193045", query.Get("vnp_CreateDate"))
	require.Equal(t, "20250601200045", query.Get("vnp_ExpireDate"))
	require.NotEmpty(t, query.Get(ParamSecureHash))

	// the signature must verify over the params we emitted
	params := map[string]string{}
	for key := range query {
		params[key] = query.Get(key)
	}
	require.True(t, Verify("testhashsecret", params, query.Get(ParamSecureHash)))
}

func TestBuildRedirectURL_Validation(t *testing.T) {
	client := testClient(t)

	_, err := client.BuildRedirectURL(RedirectRequest{AmountVND: 1000, OrderInfo: "x"})
	require.Error(t, err)

	_, err = client.BuildRedirectURL(RedirectRequest{TxnRef: "ORDER_x", OrderInfo: "x"})
	require.Error(t, err)

	_, err = client.BuildRedirectURL(RedirectRequest{TxnRef: "ORDER_x", AmountVND: 1000})
	require.Error(t, err)
}

func signedCallback(t *testing.T, secret string, overrides map[string]string) url.Values {
	t.Helper()
	params := map[string]string{
		"vnp_TxnRef":        "ORDER_" + uuid.NewString(),
		"vnp_Amount":        "97000000",
		"vnp_ResponseCode":  "00",
		"vnp_BankCode":      "NCB",
		"vnp_TransactionNo": "14422574",
		"vnp_PayDate":       "20250601194512",
	}
	for key, value := range overrides {
		params[key] = value
	}
	params[ParamSecureHash] = Sign(secret, params)

	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	return values
}

func TestParseCallback_Success(t *testing.T) {
	client := testClient(t)
	values := signedCallback(t, "testhashsecret", nil)

	cb, err := client.ParseCallback(values)
	require.NoError(t, err)
	require.True(t, cb.Success())
	require.Equal(t, int64(970000), cb.AmountVND)
	require.Equal(t, "NCB", cb.BankCode)
	require.NotNil(t, cb.PayDate)
	require.Equal(t, values.Get("vnp_TxnRef"), cb.TxnRef)
}

func TestParseCallback_FailureCode(t *testing.T) {
	client := testClient(t)
	values := signedCallback(t, "testhashsecret", map[string]string{"vnp_ResponseCode": "24"})

	cb, err := client.ParseCallback(values)
	require.NoError(t, err)
	require.False(t, cb.Success())
	require.Equal(t, "24", cb.ResponseCode)
}

func TestParseCallback_TamperedAmountRejected(t *testing.T) {
	client := testClient(t)
	values := signedCallback(t, "testhashsecret", nil)
	tampered, err := strconv.ParseInt(values.Get("vnp_Amount"), 10, 64)
	require.NoError(t, err)
	values.Set("vnp_Amount", strconv.FormatInt(tampered+100, 10))

	_, err = client.ParseCallback(values)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseCallback_WrongSecretRejected(t *testing.T) {
	client := testClient(t)
	values := signedCallback(t, "wrongsecret", nil)

	_, err := client.ParseCallback(values)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseCallback_FractionalAmountRejected(t *testing.T) {
	client := testClient(t)
	values := signedCallback(t, "testhashsecret", map[string]string{"vnp_Amount": "97000050"})

	_, err := client.ParseCallback(values)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidSignature)
}

func TestTxnRefRoundTrip(t *testing.T) {
	orderID := uuid.New()

	for _, kind := range []enums.PaymentKind{
		enums.PaymentKindOrder,
		enums.PaymentKindOrderDeposit,
		enums.PaymentKindReservationDeposit,
	} {
		ref, err := MakeTxnRef(kind, orderID, "")
		require.NoError(t, err)

		gotKind, gotID, err := SplitTxnRef(ref)
		require.NoError(t, err)
		require.Equal(t, kind, gotKind)
		require.Equal(t, orderID, gotID)
	}
}

func TestTxnRefWithNonce(t *testing.T) {
	orderID := uuid.New()
	ref, err := MakeTxnRef(enums.PaymentKindOrder, orderID, "1717243845")
	require.NoError(t, err)

	kind, id, err := SplitTxnRef(ref)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentKindOrder, kind)
	require.Equal(t, orderID, id)
}

func TestSplitTxnRef_DepositOrderNotMistakenForOrder(t *testing.T) {
	id := uuid.New()
	ref, err := MakeTxnRef(enums.PaymentKindOrderDeposit, id, "")
	require.NoError(t, err)

	kind, _, err := SplitTxnRef(ref)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentKindOrderDeposit, kind)
}

func TestSplitTxnRef_Unrecognized(t *testing.T) {
	_, _, err := SplitTxnRef("REFUND_" + uuid.NewString())
	require.Error(t, err)

	_, _, err = SplitTxnRef("ORDER_not-a-uuid")
	require.Error(t, err)
}
