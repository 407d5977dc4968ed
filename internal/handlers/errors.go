package handlers

import (
	"net/http"

	"todoTracker/internal/service"
)

const (
	msgNotFound = "Todo not found"
	msgConflict = "Todo was modified concurrently"
)

// statusFor maps a service error to an HTTP status. fallback is used for
// store failures, which differ per endpoint.
func statusFor(err error, fallback int) int {
	switch service.CodeOf(err) {
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeValidation:
		return http.StatusBadRequest
	case service.CodeVersionConflict:
		return http.StatusConflict
	default:
		return fallback
	}
}

func messageFor(status int, fallback string) string {
	switch status {
	case http.StatusNotFound:
		return msgNotFound
	case http.StatusConflict:
		return msgConflict
	default:
		return fallback
	}
}
