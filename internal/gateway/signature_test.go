package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalize_SortsAndDrops(t *testing.T) {
	params := map[string]string{
		"vnp_TxnRef":         "ORDER_abc",
		"vnp_Amount":         "97000000",
		"vnp_BankCode":       "",
		ParamSecureHash:      "deadbeef",
		ParamSecureHashType:  "HmacSHA512",
		"vnp_OrderInfo":      "Thanh toan don hang",
		"vnp_CurrCode":       "VND",
	}

	got := Canonicalize(params)
	want := "vnp_Amount=97000000&vnp_CurrCode=VND&vnp_OrderInfo=Thanh+toan+don+hang&vnp_TxnRef=ORDER_abc"
	require.Equal(t, want, got)
}

func TestCanonicalize_EncodesSpacesAsPlus(t *testing.T) {
	got := Canonicalize(map[string]string{"vnp_OrderInfo": "nap tien vi"})
	require.Equal(t, "vnp_OrderInfo=nap+tien+vi", got)
}

func TestSignAndVerify_RoundTrip(t *testing.T) {
	secret := "topsecret"
	params := map[string]string{
		"vnp_TxnRef": "ORDER_abc",
		"vnp_Amount": "97000000",
	}

	sig := Sign(secret, params)
	require.Len(t, sig, 128) // hex sha512

	params[ParamSecureHash] = sig
	require.True(t, Verify(secret, params, sig))
}

func TestVerify_CaseInsensitiveDigest(t *testing.T) {
	secret := "topsecret"
	params := map[string]string{"vnp_TxnRef": "ORDER_abc"}
	sig := Sign(secret, params)

	upper := make([]byte, len(sig))
	for i := range sig {
		c := sig[i]
		if c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		upper[i] = c
	}
	require.True(t, Verify(secret, params, string(upper)))
}

func TestVerify_RejectsSingleByteTamper(t *testing.T) {
	secret := "topsecret"
	params := map[string]string{
		"vnp_TxnRef": "ORDER_abc",
		"vnp_Amount": "97000000",
	}
	sig := Sign(secret, params)

	// flip the amount after signing
	params["vnp_Amount"] = "97000001"
	require.False(t, Verify(secret, params, sig))
}

func TestVerify_RejectsWrongSecretAndEmptyHash(t *testing.T) {
	params := map[string]string{"vnp_TxnRef": "ORDER_abc"}
	sig := Sign("secret-a", params)

	require.False(t, Verify("secret-b", params, sig))
	require.False(t, Verify("secret-a", params, ""))
}

func TestVerify_IgnoresHashParamsInPayload(t *testing.T) {
	secret := "topsecret"
	params := map[string]string{"vnp_TxnRef": "ORDER_abc"}
	sig := Sign(secret, params)

	// callbacks echo the hash back inside the param set
	params[ParamSecureHash] = sig
	params[ParamSecureHashType] = "HmacSHA512"
	require.True(t, Verify(secret, params, sig))
}
