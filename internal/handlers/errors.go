package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/MonkyMars/gecho"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/CLDWare/attendance-kiosk/internal/session"
	"github.com/CLDWare/attendance-kiosk/pkg/logger"
)

// sendError maps a domain error onto a status code. Anything unknown is
// logged and reported as a 500 without details.
func sendError(w http.ResponseWriter, err error, action string) {
	var invalid validator.ValidationErrors
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
	case errors.Is(err, session.ErrNoActiveRow):
		gecho.NotFound(w).WithMessage(err.Error()).Send()
	case errors.Is(err, session.ErrReauthRequired):
		gecho.NewErr(w).WithStatus(http.StatusForbidden).WithMessage(err.Error()).Send()
	case errors.Is(err, session.ErrRecognitionUnavailable):
		gecho.ServiceUnavailable(w).WithMessage(err.Error()).Send()
	case errors.As(err, &invalid):
		gecho.BadRequest(w).WithMessage(validationMessage(invalid)).Send()
	case errors.Is(err, gorm.ErrRecordNotFound):
		gecho.NotFound(w).Send()
	default:
		logger.Err(fmt.Sprintf("%s: %s", action, err.Error()))
		gecho.InternalServerError(w).Send()
	}
}

func validationMessage(errs validator.ValidationErrors) string {
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, fmt.Sprintf("%s is %s", e.Field(), e.Tag()))
	}
	return strings.Join(fields, ", ")
}

// decodeBody reads a JSON request body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s', expected an integer", name, raw)
	}
	return v, nil
}

// splitIDs turns "a, b,,c" into [a b c]
func splitIDs(raw string) []string {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// allowMethods is HandleMethod for endpoints that accept more than one verb
func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	gecho.NewErr(w).WithStatus(http.StatusMethodNotAllowed).WithMessage("Method Not Allowed").Send()
	return false
}
