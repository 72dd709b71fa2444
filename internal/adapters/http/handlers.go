package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/application"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.opts.Ready != nil {
		if err := h.opts.Ready(r.Context()); err != nil {
			logHTTPOperationError(r.Context(), "readyz", http.StatusServiceUnavailable, "not_ready", "dependency check failed", err)
			writeError(w, http.StatusServiceUnavailable, "not_ready", "Service not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) generateTrial(w http.ResponseWriter, r *http.Request) {
	const op = "generate_trial"
	var req application.IssueTrialRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(r.Context(), w, op, err)
		return
	}
	if err := validateRequest(req); err != nil {
		writeValidationError(r.Context(), w, op, err)
		return
	}
	req.ClientIP = readIP(r, h.opts.TrustProxyHeaders)
	if strings.TrimSpace(req.IPAddress) == "" {
		req.IPAddress = req.ClientIP
	}
	if strings.TrimSpace(req.UserAgent) == "" {
		req.UserAgent = r.UserAgent()
	}

	res, err := h.service.IssueTrial(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	const op = "activate_license"
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, op)
		return
	}
	var req application.ActivateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(r.Context(), w, op, err)
		return
	}
	if err := validateRequest(req); err != nil {
		writeValidationError(r.Context(), w, op, err)
		return
	}
	if strings.TrimSpace(req.DeviceFingerprint) == "" {
		req.DeviceFingerprint = r.Header.Get("X-Device-Fingerprint")
	}

	res, err := h.service.Activate(r.Context(), actor, req)
	if err != nil {
		writeMappedError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) runTrialNotifications(w http.ResponseWriter, r *http.Request) {
	const op = "run_trial_notifications"
	res, err := h.service.RunTrialNotifications(r.Context())
	if err != nil {
		writeMappedError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) entitlement(w http.ResponseWriter, r *http.Request) {
	const op = "get_entitlement"
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, op)
		return
	}
	res, err := h.service.GetEntitlement(r.Context(), actor.SubjectID)
	if err != nil {
		writeMappedError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) registerDevice(w http.ResponseWriter, r *http.Request) {
	const op = "register_device"
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, op)
		return
	}
	var req application.DeviceRequest
	if err := decodeOptionalBody(w, r, &req); err != nil {
		writeValidationError(r.Context(), w, op, err)
		return
	}
	if strings.TrimSpace(req.DeviceFingerprint) == "" {
		req.DeviceFingerprint = r.Header.Get("X-Device-Fingerprint")
	}
	if err := validateRequest(req); err != nil {
		writeValidationError(r.Context(), w, op, err)
		return
	}

	res, err := h.service.RegisterDevice(r.Context(), actor, req)
	if err != nil {
		writeMappedError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) revokeDevice(w http.ResponseWriter, r *http.Request) {
	const op = "revoke_device"
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, op)
		return
	}
	res, err := h.service.RevokeDevice(r.Context(), actor, pathParam(r, "fingerprint"))
	if err != nil {
		writeMappedError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) issueLicenses(w http.ResponseWriter, r *http.Request) {
	const op = "issue_licenses"
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, op)
		return
	}
	var req application.IssueLicensesRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeValidationError(r.Context(), w, op, err)
		return
	}
	if err := validateRequest(req); err != nil {
		writeValidationError(r.Context(), w, op, err)
		return
	}

	res, err := h.service.IssueLicenses(r.Context(), actor, req)
	if err != nil {
		writeMappedError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) supersedeLicense(w http.ResponseWriter, r *http.Request) {
	const op = "supersede_license"
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, op)
		return
	}
	licenseID, err := uuid.Parse(pathParam(r, "license_id"))
	if err != nil {
		writeValidationError(r.Context(), w, op, fmt.Errorf("%w: license_id must be a UUID", domain.ErrInvalidInput))
		return
	}

	res, err := h.service.SupersedeLicense(r.Context(), actor, licenseID)
	if err != nil {
		writeMappedError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) resetFingerprint(w http.ResponseWriter, r *http.Request) {
	const op = "reset_trial_fingerprint"
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, op)
		return
	}
	res, err := h.service.ResetFingerprint(r.Context(), actor, pathParam(r, "fingerprint"))
	if err != nil {
		writeMappedError(r.Context(), w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
