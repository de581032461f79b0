package sweeper

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/farmstandhq/farmstand-backend/internal/checkout"
	"github.com/farmstandhq/farmstand-backend/internal/orders"
	"github.com/farmstandhq/farmstand-backend/pkg/db/models"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	"github.com/farmstandhq/farmstand-backend/pkg/logger"
)

const defaultBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service expires stale PENDING_PAYMENT orders and returns their reserved
// stock. Each order's status flip and inventory release happen in one
// transaction, so reservation and release are never observably decoupled.
type Service interface {
	ReleaseExpired(ctx context.Context) (int, error)
}

type service struct {
	db        txRunner
	repo      orders.Repository
	releaser  checkout.StockReleaser
	batchSize int
	logger    *logger.Logger
	now       func() time.Time
}

// ServiceParams carries the sweeper dependencies.
type ServiceParams struct {
	DB        txRunner
	Repo      orders.Repository
	Releaser  checkout.StockReleaser
	BatchSize int
	Logger    *logger.Logger
}

// NewService builds the expiry sweeper.
func NewService(p ServiceParams) (Service, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if p.Releaser == nil {
		return nil, fmt.Errorf("stock releaser required")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	batch := p.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &service{
		db:        p.DB,
		repo:      p.Repo,
		releaser:  p.Releaser,
		batchSize: batch,
		logger:    p.Logger,
		now:       time.Now,
	}, nil
}

// ReleaseExpired sweeps one batch of expired pending orders. A failure on one
// order rolls back only that order and the sweep continues; errors are
// aggregated and returned alongside the count actually released.
func (s *service) ReleaseExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpiredPending(ctx, s.now(), s.batchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired pending orders")
	}

	released := 0
	var errs error
	for i := range expired {
		order := &expired[i]
		if err := s.expireOne(ctx, order); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		released++
	}

	if released > 0 {
		s.logger.Info(s.logger.WithField(ctx, "released", released), "expired orders released")
	}
	return released, errs
}

func (s *service) expireOne(ctx context.Context, order *models.Order) error {
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		won, err := repo.MarkExpired(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order expired")
		}
		// Lost the race to a payment confirmation: the stock stays sold.
		if !won {
			return nil
		}

		for _, item := range order.Items {
			if err := s.releaser.Release(ctx, tx, item.ListingID, item.Qty); err != nil {
				return err
			}
		}
		return nil
	})
}
