package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/twins1850/nvoim-planner-pro-sub005/internal/domain"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// decodeOptionalBody accepts an empty body and leaves dst untouched.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) error {
	err := decodeBody(w, r, dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	e := validationErrs[0]
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, e.Field())
	case "min":
		return fmt.Errorf("%w: %s must be at least %s", domain.ErrInvalidInput, e.Field(), e.Param())
	case "max":
		return fmt.Errorf("%w: %s must not exceed %s", domain.ErrInvalidInput, e.Field(), e.Param())
	case "email":
		return fmt.Errorf("%w: %s must be a valid email address", domain.ErrInvalidInput, e.Field())
	default:
		return fmt.Errorf("%w: %s failed %s validation", domain.ErrInvalidInput, e.Field(), e.Tag())
	}
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// readIP returns the client address. Forwarding headers are consulted only when
// trustProxy is set; the right-most X-Forwarded-For entry is the one appended by
// the nearest proxy.
func readIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		parts := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
		for i := len(parts) - 1; i >= 0; i-- {
			if ip := parseIP(parts[i]); ip != "" {
				return ip
			}
		}
		if ip := parseIP(r.Header.Get("X-Real-Ip")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	if ip := parseIP(host); ip != "" {
		return ip
	}
	return host
}

func parseIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return ""
	}
	return ip.String()
}

func writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, reason, msg := mapDomainError(err)
	logHTTPOperationError(ctx, operation, status, reason, msg, err)
	body := errorBody(reason, msg)
	errorExtras(body, err)
	writeErrorBody(w, status, body)
}

func writeValidationError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	reason := "validation_error"
	msg := strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": ")
	logHTTPOperationError(ctx, operation, http.StatusBadRequest, reason, msg, err)
	writeError(w, http.StatusBadRequest, reason, msg)
}

func writeMissingBearerError(ctx context.Context, w http.ResponseWriter, operation string) {
	reason := "unauthorized"
	msg := "Missing bearer token"
	logHTTPOperationError(ctx, operation, http.StatusUnauthorized, reason, msg, nil)
	writeError(w, http.StatusUnauthorized, reason, msg)
}
