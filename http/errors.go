package http

import (
	"net/http"

	"github.com/sagarc03/hubstore"
)

type errorStatus struct {
	err     error
	code    int
	message string
}

// errorStatuses maps hub sentinels to responses, checked in order.
var errorStatuses = []errorStatus{
	{hubstore.ErrValidation, http.StatusUnauthorized, "Failed to validate authentication token"},
	{hubstore.ErrBadPath, http.StatusForbidden, "Invalid path"},
	{hubstore.ErrNotEnoughProof, http.StatusPaymentRequired, "Not enough proofs"},
	{hubstore.ErrInvalidInput, http.StatusBadRequest, "Invalid request"},
	{hubstore.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "Payload too large"},
	{hubstore.ErrNotFound, http.StatusNotFound, "Not Found"},
	{hubstore.ErrNotSupported, http.StatusNotFound, "Not Found"},
}

func errorMessage(code int) string {
	for _, m := range errorStatuses {
		if m.code == code {
			return m.message
		}
	}
	return http.StatusText(code)
}
