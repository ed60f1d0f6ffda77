package controllers

import (
	"net/http"
	"time"

	"github.com/quangtran/dinehub-backend/api/responses"
	"github.com/quangtran/dinehub-backend/api/validators"
	"github.com/quangtran/dinehub-backend/internal/vouchers"
	"github.com/quangtran/dinehub-backend/pkg/logger"
)

type voucherPreviewRequest struct {
	Code        string `json:"code" validate:"required"`
	SubtotalVND int64  `json:"subtotal_vnd" validate:"required,min=1"`
}

type voucherPreviewResponse struct {
	Code          string `json:"code"`
	SubtotalVND   int64  `json:"subtotal_vnd"`
	DiscountVND   int64  `json:"discount_vnd"`
	TotalAfterVND int64  `json:"total_after_vnd"`
}

// PreviewVoucher quotes the discount a voucher would grant without touching
// the order or consuming a use.
func PreviewVoucher(svc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req voucherPreviewRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		voucher, discount, err := svc.Validate(r.Context(), req.Code, req.SubtotalVND, time.Now())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, voucherPreviewResponse{
			Code:          voucher.Code,
			SubtotalVND:   req.SubtotalVND,
			DiscountVND:   discount,
			TotalAfterVND: req.SubtotalVND - discount,
		})
	}
}
