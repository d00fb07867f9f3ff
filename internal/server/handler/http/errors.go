// Package http provides HTTP handlers for the vault's secret and
// backup endpoints.
package http

import (
	nethttp "net/http"

	"github.com/mkarpov/otpvault/internal/vaulterr"
)

// statusFor maps the error taxonomy to externally visible status
// codes. This is the only place the mapping happens.
func statusFor(err error) int {
	switch vaulterr.KindOf(err) {
	case vaulterr.KindValidation:
		return nethttp.StatusBadRequest
	case vaulterr.KindNotFound:
		return nethttp.StatusNotFound
	case vaulterr.KindCrypto:
		return nethttp.StatusUnprocessableEntity
	case vaulterr.KindConfig:
		return nethttp.StatusInternalServerError
	case vaulterr.KindStorage:
		return nethttp.StatusBadGateway
	default:
		return nethttp.StatusInternalServerError
	}
}

func writeError(w nethttp.ResponseWriter, err error) {
	nethttp.Error(w, err.Error(), statusFor(err))
}
