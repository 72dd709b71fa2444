package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/twins1850/nvoim-planner-pro-sub005/internal/application"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
)

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, reason, message string) {
	writeErrorBody(w, statusCode, errorBody(reason, message))
}

func writeErrorBody(w http.ResponseWriter, statusCode int, body map[string]any) {
	writeJSON(w, statusCode, body)
}

func errorBody(reason, message string) map[string]any {
	return map[string]any{
		"error":  message,
		"reason": reason,
	}
}

// mapDomainError translates the error taxonomy into status, reason and message.
func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidFormat):
		return http.StatusBadRequest, "invalid_format", "Invalid license key format"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "validation_error", err.Error()
	case errors.Is(err, domain.ErrAlreadyActivated):
		return http.StatusBadRequest, "already_activated", "License is already activated on your account"
	case errors.Is(err, domain.ErrAlreadyUsed):
		return http.StatusForbidden, "already_used", "Trial already used"
	case errors.Is(err, domain.ErrDeviceLimit):
		return http.StatusForbidden, "device_limit_exceeded", "Device limit reached; revoke a registered device to continue"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "Invalid or missing credentials"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden", "Insufficient permissions"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", "License not found"
	case errors.Is(err, domain.ErrOwnedByOther):
		return http.StatusConflict, "owned_by_other", "License is already activated by another account"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "License cannot be activated in its current state"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict", err.Error()
	case errors.Is(err, domain.ErrExpired):
		return http.StatusGone, "expired", "License has expired"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited", "Too many requests"
	case errors.Is(err, domain.ErrKeySpaceExhausted):
		return http.StatusServiceUnavailable, "key_generation_failed", "Could not allocate a license key; retry shortly"
	default:
		return http.StatusInternalServerError, "internal_error", "Internal server error"
	}
}

// errorExtras adds the payload carried by typed domain errors.
func errorExtras(body map[string]any, err error) {
	var trialUsed *domain.TrialUsedError
	if errors.As(err, &trialUsed) {
		body["first_trial_at"] = trialUsed.FirstTrialAt.UTC()
	}
	var limit *domain.DeviceLimitError
	if errors.As(err, &limit) {
		body["max_devices"] = limit.MaxDevices
		body["devices"] = deviceViews(limit.Devices)
	}
}

func deviceViews(devices []domain.DeviceToken) []application.DeviceView {
	out := make([]application.DeviceView, 0, len(devices))
	for _, d := range devices {
		out = append(out, application.DeviceView{
			Fingerprint:  d.Fingerprint,
			RegisteredAt: d.RegisteredAt,
			LastSeen:     d.LastSeen,
		})
	}
	return out
}
