package validators

import (
	"net/http"

	"github.com/google/uuid"

	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
)

// UUIDQueryParam parses a required uuid query parameter.
func UUIDQueryParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "query parameter %q is required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "query parameter %q must be a valid uuid", name)
	}
	return id, nil
}

// RequiredQueryParam returns a required non-empty query parameter.
func RequiredQueryParam(r *http.Request, name string) (string, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return "", pkgerrors.Newf(pkgerrors.CodeValidation, "query parameter %q is required", name)
	}
	return raw, nil
}
