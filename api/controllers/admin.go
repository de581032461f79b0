package controllers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/farmstandhq/farmstand-backend/api/responses"
	"github.com/farmstandhq/farmstand-backend/internal/sweeper"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
)

type releaseExpiredResponse struct {
	Released int `json:"released"`
}

// AdminReleaseExpired triggers one expiry sweep on demand. The cron worker
// covers the steady state; this exists for operators and for environments
// without the worker deployed.
func AdminReleaseExpired(svc sweeper.Service, bearerSecret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sweeper service unavailable"))
			return
		}
		if !authorizedBearer(r, bearerSecret) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or missing bearer token"))
			return
		}

		released, err := svc.ReleaseExpired(ctx)
		if err != nil {
			ctx = logg.WithField(ctx, "released", released)
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expiry sweep incomplete"))
			return
		}

		responses.WriteSuccess(w, releaseExpiredResponse{Released: released})
	}
}

// An unconfigured secret disables the endpoint rather than opening it.
func authorizedBearer(r *http.Request, secret string) bool {
	if secret == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
