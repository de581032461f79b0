package sellers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmstandhq/farmstand-backend/pkg/db/models"
)

// Repository defines persistence operations for seller sessions and their
// payment profiles.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindSessionByID(ctx context.Context, id uuid.UUID) (*models.SellerSession, error)
	FindProfileBySession(ctx context.Context, sellerSessionID uuid.UUID) (*models.SellerPaymentProfile, error)
	ListSquareProfiles(ctx context.Context) ([]models.SellerPaymentProfile, error)
	UpdateProfile(ctx context.Context, profileID uuid.UUID, updates map[string]any) error
}

// RefreshedToken is the result of exchanging a Square refresh token.
type RefreshedToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenRefresher exchanges an expired Square refresh token for fresh
// credentials. Implementations call Square's OAuth endpoint; tests stub it.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*RefreshedToken, error)
}
