package sellers

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/farmstandhq/farmstand-backend/pkg/db/models"
	"github.com/farmstandhq/farmstand-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a sellers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindSessionByID(ctx context.Context, id uuid.UUID) (*models.SellerSession, error) {
	var session models.SellerSession
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repository) FindProfileBySession(ctx context.Context, sellerSessionID uuid.UUID) (*models.SellerPaymentProfile, error) {
	var profile models.SellerPaymentProfile
	err := r.db.WithContext(ctx).
		Where("seller_session_id = ?", sellerSessionID).
		First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) ListSquareProfiles(ctx context.Context) ([]models.SellerPaymentProfile, error) {
	var profiles []models.SellerPaymentProfile
	err := r.db.WithContext(ctx).
		Where("provider IN ? AND square_access_token IS NOT NULL AND square_access_token <> ''",
			[]enums.PaymentProvider{enums.PaymentProviderSquare, enums.PaymentProviderTerminal}).
		Order("created_at ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *repository) UpdateProfile(ctx context.Context, profileID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerPaymentProfile{}).
		Where("id = ?", profileID).
		Updates(updates).Error
}
