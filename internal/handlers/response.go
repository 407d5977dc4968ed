package handlers

import (
	"encoding/json"
	"net/http"

	"todoTracker/internal/handlers/dto"
	"todoTracker/internal/logger"

	"go.uber.org/zap"
)

func responseWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("HTTP: failed to encode response", zap.Error(err))
	}
}

func responseWithData(w http.ResponseWriter, code int, message string, data any) {
	responseWithJSON(w, code, dto.Envelope{
		Success: true,
		Data:    data,
		Message: message,
	})
}

func responseWithMessage(w http.ResponseWriter, code int, message string) {
	responseWithJSON(w, code, dto.Envelope{
		Success: true,
		Message: message,
	})
}

func responseWithError(w http.ResponseWriter, code int, message string, err error) {
	env := dto.Envelope{
		Success: false,
		Message: message,
	}
	if err != nil {
		env.Error = err.Error()
	}
	responseWithJSON(w, code, env)
}
