package sellers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmstandhq/farmstand-backend/pkg/db/models"
	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
)

// PaymentConfig is the resolved payment routing for one seller session. The
// checkout and webhook layers consume this instead of raw profile rows.
type PaymentConfig struct {
	SellerSessionID        uuid.UUID
	Provider               enums.PaymentProvider
	StripeAccountID        string
	SquareAccessToken      string
	SquareLocationID       string
	SquareTerminalDeviceID string

	// PlatformFallback is set when no usable profile exists and checkout
	// falls back to the platform Stripe account.
	PlatformFallback bool
}

// SquareRoute pairs a seller session with a usable Square access token. The
// webhook seller-scan correlation strategy iterates these.
type SquareRoute struct {
	SellerSessionID uuid.UUID
	AccessToken     string
}

// Service resolves which provider an order should settle through.
type Service interface {
	ResolvePaymentConfig(ctx context.Context, sellerSessionID uuid.UUID) (*PaymentConfig, error)
	ListSquareRoutes(ctx context.Context) ([]SquareRoute, error)
}

type service struct {
	repo      Repository
	refresher TokenRefresher
	logger    *logger.Logger
	now       func() time.Time
}

// ServiceParams carries the dependencies for the sellers service. Refresher
// may be nil when OAuth token refresh is handled out of process.
type ServiceParams struct {
	Repo      Repository
	Refresher TokenRefresher
	Logger    *logger.Logger
}

// NewService builds a sellers service.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("sellers repository required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      p.Repo,
		refresher: p.Refresher,
		logger:    p.Logger,
		now:       time.Now,
	}, nil
}

func (s *service) ResolvePaymentConfig(ctx context.Context, sellerSessionID uuid.UUID) (*PaymentConfig, error) {
	if sellerSessionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller session id required")
	}

	profile, err := s.repo.FindProfileBySession(ctx, sellerSessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No profile configured: hosted checkout settles on the
			// platform Stripe account so the sale is never blocked.
			ctx = s.logger.WithField(ctx, "seller_session_id", sellerSessionID.String())
			s.logger.Warn(ctx, "no payment profile for seller session, falling back to platform stripe")
			return &PaymentConfig{
				SellerSessionID:  sellerSessionID,
				Provider:         enums.PaymentProviderStripe,
				PlatformFallback: true,
			}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller payment profile")
	}

	if !profile.Provider.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeUnprocessable, "seller profile has unknown provider %q", profile.Provider)
	}

	cfg := &PaymentConfig{
		SellerSessionID: sellerSessionID,
		Provider:        profile.Provider,
	}
	if profile.StripeAccountID != nil {
		cfg.StripeAccountID = *profile.StripeAccountID
	}
	if profile.SquareLocationID != nil {
		cfg.SquareLocationID = *profile.SquareLocationID
	}
	if profile.SquareTerminalDeviceID != nil {
		cfg.SquareTerminalDeviceID = *profile.SquareTerminalDeviceID
	}

	if usesSquareCredentials(profile.Provider) {
		token, err := s.resolveSquareToken(ctx, profile)
		if err != nil {
			return nil, err
		}
		cfg.SquareAccessToken = token
	}

	return cfg, nil
}

// ListSquareRoutes returns every seller with Square credentials, refreshing
// expired tokens along the way. Sellers whose credentials cannot be made
// usable are skipped with a warning rather than failing the whole scan.
func (s *service) ListSquareRoutes(ctx context.Context) ([]SquareRoute, error) {
	profiles, err := s.repo.ListSquareProfiles(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list square payment profiles")
	}

	routes := make([]SquareRoute, 0, len(profiles))
	for i := range profiles {
		profile := &profiles[i]
		token, err := s.resolveSquareToken(ctx, profile)
		if err != nil {
			fields := s.logger.WithFields(ctx, map[string]any{
				"seller_session_id": profile.SellerSessionID.String(),
				"reason":            err.Error(),
			})
			s.logger.Warn(fields, "skipping seller with unusable square credentials")
			continue
		}
		routes = append(routes, SquareRoute{
			SellerSessionID: profile.SellerSessionID,
			AccessToken:     token,
		})
	}
	return routes, nil
}

func usesSquareCredentials(provider enums.PaymentProvider) bool {
	return provider == enums.PaymentProviderSquare || provider == enums.PaymentProviderTerminal
}

func (s *service) resolveSquareToken(ctx context.Context, profile *models.SellerPaymentProfile) (string, error) {
	if profile.SquareAccessToken == nil || *profile.SquareAccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnprocessable, "seller profile missing square access token")
	}

	if !profile.TokenExpired(s.now()) {
		return *profile.SquareAccessToken, nil
	}

	if s.refresher == nil || profile.SquareRefreshToken == nil || *profile.SquareRefreshToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "square credentials expired")
	}

	refreshed, err := s.refresher.Refresh(ctx, *profile.SquareRefreshToken)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeProvider, err, "refresh square token")
	}

	updates := map[string]any{
		"square_access_token":     refreshed.AccessToken,
		"square_token_expires_at": refreshed.ExpiresAt,
	}
	if refreshed.RefreshToken != "" {
		updates["square_refresh_token"] = refreshed.RefreshToken
	}
	if err := s.repo.UpdateProfile(ctx, profile.ID, updates); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist refreshed square token")
	}

	ctx = s.logger.WithField(ctx, "seller_session_id", profile.SellerSessionID.String())
	s.logger.Info(ctx, "square access token refreshed")
	return refreshed.AccessToken, nil
}
