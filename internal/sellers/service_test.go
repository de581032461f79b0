package sellers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/farmstandhq/farmstand-backend/pkg/db/models"
	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
)

type stubRepo struct {
	profile        *models.SellerPaymentProfile
	profileErr     error
	squareProfiles []models.SellerPaymentProfile
	updates        map[string]any
	updateErr      error
	updateCalled   bool
	updateProfile  uuid.UUID
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindSessionByID(ctx context.Context, id uuid.UUID) (*models.SellerSession, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubRepo) FindProfileBySession(ctx context.Context, sellerSessionID uuid.UUID) (*models.SellerPaymentProfile, error) {
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	return s.profile, nil
}

func (s *stubRepo) ListSquareProfiles(ctx context.Context) ([]models.SellerPaymentProfile, error) {
	return s.squareProfiles, nil
}

func (s *stubRepo) UpdateProfile(ctx context.Context, profileID uuid.UUID, updates map[string]any) error {
	s.updateCalled = true
	s.updateProfile = profileID
	s.updates = updates
	return s.updateErr
}

type stubRefresher struct {
	token *RefreshedToken
	err   error
	calls int
}

func (s *stubRefresher) Refresh(ctx context.Context, refreshToken string) (*RefreshedToken, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func newTestService(t *testing.T, repo Repository, refresher TokenRefresher) *service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Refresher: refresher,
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
	})
	require.NoError(t, err)
	return svc.(*service)
}

func strPtr(v string) *string { return &v }

func TestResolvePaymentConfigPlatformFallback(t *testing.T) {
	repo := &stubRepo{profileErr: gorm.ErrRecordNotFound}
	svc := newTestService(t, repo, nil)

	cfg, err := svc.ResolvePaymentConfig(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentProviderStripe, cfg.Provider)
	assert.True(t, cfg.PlatformFallback)
}

func TestResolvePaymentConfigSquare(t *testing.T) {
	sessionID := uuid.New()
	future := time.Now().Add(time.Hour)
	repo := &stubRepo{profile: &models.SellerPaymentProfile{
		ID:                   uuid.New(),
		SellerSessionID:      sessionID,
		Provider:             enums.PaymentProviderSquare,
		SquareAccessToken:    strPtr("tok-live"),
		SquareTokenExpiresAt: &future,
		SquareLocationID:     strPtr("LOC1"),
	}}
	svc := newTestService(t, repo, nil)

	cfg, err := svc.ResolvePaymentConfig(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentProviderSquare, cfg.Provider)
	assert.Equal(t, "tok-live", cfg.SquareAccessToken)
	assert.Equal(t, "LOC1", cfg.SquareLocationID)
	assert.False(t, cfg.PlatformFallback)
}

func TestResolvePaymentConfigRefreshesExpiredToken(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	repo := &stubRepo{profile: &models.SellerPaymentProfile{
		ID:                   uuid.New(),
		SellerSessionID:      uuid.New(),
		Provider:             enums.PaymentProviderTerminal,
		SquareAccessToken:    strPtr("tok-stale"),
		SquareRefreshToken:   strPtr("refresh-1"),
		SquareTokenExpiresAt: &past,
		SquareTerminalDeviceID: strPtr("device-9"),
	}}
	refresher := &stubRefresher{token: &RefreshedToken{
		AccessToken:  "tok-fresh",
		RefreshToken: "refresh-2",
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}}
	svc := newTestService(t, repo, refresher)

	cfg, err := svc.ResolvePaymentConfig(context.Background(), repo.profile.SellerSessionID)
	require.NoError(t, err)
	assert.Equal(t, "tok-fresh", cfg.SquareAccessToken)
	assert.Equal(t, "device-9", cfg.SquareTerminalDeviceID)
	assert.Equal(t, 1, refresher.calls)
	assert.True(t, repo.updateCalled)
	assert.Equal(t, "refresh-2", repo.updates["square_refresh_token"])
}

func TestResolvePaymentConfigExpiredWithoutRefresher(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	repo := &stubRepo{profile: &models.SellerPaymentProfile{
		ID:                   uuid.New(),
		SellerSessionID:      uuid.New(),
		Provider:             enums.PaymentProviderSquare,
		SquareAccessToken:    strPtr("tok-stale"),
		SquareTokenExpiresAt: &past,
	}}
	svc := newTestService(t, repo, nil)

	_, err := svc.ResolvePaymentConfig(context.Background(), repo.profile.SellerSessionID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestResolvePaymentConfigValidatesInput(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, nil)
	_, err := svc.ResolvePaymentConfig(context.Background(), uuid.Nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListSquareRoutesSkipsUnusableCredentials(t *testing.T) {
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)
	usable := models.SellerPaymentProfile{
		ID:                   uuid.New(),
		SellerSessionID:      uuid.New(),
		Provider:             enums.PaymentProviderSquare,
		SquareAccessToken:    strPtr("tok-ok"),
		SquareTokenExpiresAt: &future,
	}
	// Expired with no refresh path: must be skipped, not fail the scan.
	stale := models.SellerPaymentProfile{
		ID:                   uuid.New(),
		SellerSessionID:      uuid.New(),
		Provider:             enums.PaymentProviderSquare,
		SquareAccessToken:    strPtr("tok-stale"),
		SquareTokenExpiresAt: &past,
	}
	repo := &stubRepo{squareProfiles: []models.SellerPaymentProfile{usable, stale}}
	svc := newTestService(t, repo, nil)

	routes, err := svc.ListSquareRoutes(context.Background())
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, usable.SellerSessionID, routes[0].SellerSessionID)
	assert.Equal(t, "tok-ok", routes[0].AccessToken)
}
