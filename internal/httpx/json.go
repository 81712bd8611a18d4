package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-order-fulfillment/internal/customers"
	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
)

type errorResp struct {
	Error     string           `json:"error"`
	Kind      fulfillment.Kind `json:"kind,omitempty"`
	Retryable bool             `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResp{Error: msg, Kind: fulfillment.KindInvalidInput})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeError maps a coordinator error onto a status code by its kind.
func writeError(w http.ResponseWriter, err error) {
	kind := fulfillment.Classify(err)
	code := http.StatusInternalServerError
	switch kind {
	case fulfillment.KindNotFound:
		code = http.StatusNotFound
	case fulfillment.KindInvalidInput:
		code = http.StatusBadRequest
		if errors.Is(err, customers.ErrEmailTaken) {
			code = http.StatusConflict
		}
	case fulfillment.KindInvalidState, fulfillment.KindInsufficientInventory, fulfillment.KindAlreadyCharged:
		code = http.StatusConflict
	case fulfillment.KindInsufficientFunds:
		code = http.StatusPaymentRequired
	case fulfillment.KindTransientPayment, fulfillment.KindTimeout:
		code = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "1")
	}
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, code, errorResp{Error: msg, Kind: kind, Retryable: fulfillment.Retryable(err)})
}
