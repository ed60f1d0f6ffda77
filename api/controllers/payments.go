package controllers

import (
	"net/http"

	"github.com/quangtran/dinehub-backend/api/responses"
	"github.com/quangtran/dinehub-backend/api/validators"
	"github.com/quangtran/dinehub-backend/internal/settlement"
	"github.com/quangtran/dinehub-backend/pkg/logger"
)

type paymentRequest struct {
	BankCode string `json:"bank_code"`
	Locale   string `json:"locale"`
}

type depositRequest struct {
	AmountVND int64  `json:"amount_vnd" validate:"required,min=1"`
	BankCode  string `json:"bank_code"`
	Locale    string `json:"locale"`
}

func requestOptions(r *http.Request, bankCode, locale string) settlement.RequestOptions {
	return settlement.RequestOptions{
		IPAddr:   clientAddr(r),
		BankCode: bankCode,
		Locale:   locale,
	}
}

// RequestOrderPayment mints a redirect for the order's outstanding balance.
func RequestOrderPayment(svc settlement.PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req paymentRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		detail, err := svc.RequestOrderPayment(r.Context(), orderID, requestOptions(r, req.BankCode, req.Locale))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	}
}

// RequestOrderDeposit mints a redirect for a partial prepayment on an open order.
func RequestOrderDeposit(svc settlement.PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req depositRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.RequestOrderDeposit(r.Context(), orderID, req.AmountVND, requestOptions(r, req.BankCode, req.Locale))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	}
}

// RequestReservationDeposit mints a redirect for a pending reservation's deposit.
func RequestReservationDeposit(svc settlement.PaymentService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID, err := pathUUID(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req paymentRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		detail, err := svc.RequestReservationDeposit(r.Context(), reservationID, requestOptions(r, req.BankCode, req.Locale))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	}
}

// GatewayReturn lands the browser redirect. The attempt only moves to its
// provisional state here; settlement waits for the server callback.
func GatewayReturn(coordinator settlement.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attempt, err := coordinator.HandleReturn(r.Context(), r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, attempt)
	}
}

// GatewayIPN applies the authoritative server-to-server callback. It always
// answers HTTP 200 with a closed response code so the gateway can decide
// whether to retry.
func GatewayIPN(coordinator settlement.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := coordinator.HandleIPN(r.Context(), r.URL.Query())
		responses.WriteJSON(w, http.StatusOK, result)
	}
}
