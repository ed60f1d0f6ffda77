package gateway

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/quangtran/dinehub-backend/pkg/enums"
)

const (
	txnRefPrefixOrder          = "ORDER_"
	txnRefPrefixDepositOrder   = "DEPOSIT_ORDER_"
	txnRefPrefixDepositReserve = "DEPOSIT_RES_"
)

// MakeTxnRef builds the transaction reference carried through the gateway.
// The prefix encodes what kind of settlement the callback must perform.
func MakeTxnRef(kind enums.PaymentKind, targetID uuid.UUID, nonce string) (string, error) {
	prefix, err := prefixForKind(kind)
	if err != nil {
		return "", err
	}
	if targetID == uuid.Nil {
		return "", fmt.Errorf("target id is required")
	}
	ref := prefix + targetID.String()
	if nonce != "" {
		ref += "_" + nonce
	}
	return ref, nil
}

// SplitTxnRef recovers the payment kind and target id from a reference.
// Longer prefixes are checked first so DEPOSIT_ORDER_ never parses as ORDER_.
func SplitTxnRef(ref string) (enums.PaymentKind, uuid.UUID, error) {
	var (
		kind enums.PaymentKind
		rest string
	)
	switch {
	case strings.HasPrefix(ref, txnRefPrefixDepositOrder):
		kind = enums.PaymentKindOrderDeposit
		rest = strings.TrimPrefix(ref, txnRefPrefixDepositOrder)
	case strings.HasPrefix(ref, txnRefPrefixDepositReserve):
		kind = enums.PaymentKindReservationDeposit
		rest = strings.TrimPrefix(ref, txnRefPrefixDepositReserve)
	case strings.HasPrefix(ref, txnRefPrefixOrder):
		kind = enums.PaymentKindOrder
		rest = strings.TrimPrefix(ref, txnRefPrefixOrder)
	default:
		return "", uuid.Nil, fmt.Errorf("unrecognized txn ref %q", ref)
	}

	// nonce suffix, if present, sits after the uuid
	idPart := rest
	if idx := strings.IndexByte(rest, '_'); idx > 0 {
		idPart = rest[:idx]
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("invalid target id in txn ref %q: %w", ref, err)
	}
	return kind, id, nil
}

func prefixForKind(kind enums.PaymentKind) (string, error) {
	switch kind {
	case enums.PaymentKindOrder:
		return txnRefPrefixOrder, nil
	case enums.PaymentKindOrderDeposit:
		return txnRefPrefixDepositOrder, nil
	case enums.PaymentKindReservationDeposit:
		return txnRefPrefixDepositReserve, nil
	default:
		return "", fmt.Errorf("unknown payment kind %q", kind)
	}
}
