package payments

import (
	"fmt"

	"github.com/farmstandhq/farmstand-backend/internal/sellers"
	"github.com/farmstandhq/farmstand-backend/pkg/enums"
	pkgerrors "github.com/farmstandhq/farmstand-backend/pkg/errors"
	pkgsquare "github.com/farmstandhq/farmstand-backend/pkg/square"
	pkgstripe "github.com/farmstandhq/farmstand-backend/pkg/stripe"
)

// Factory hands out the hosted checkout provider for a resolved seller
// payment config.
type Factory struct {
	stripe *pkgstripe.Client
	square *pkgsquare.Client
}

// NewFactory builds the provider factory.
func NewFactory(stripeClient *pkgstripe.Client, squareClient *pkgsquare.Client) (*Factory, error) {
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if squareClient == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &Factory{stripe: stripeClient, square: squareClient}, nil
}

// ProviderFor returns the hosted checkout provider for the config. Cash and
// terminal orders never reach this; they settle through their own services.
func (f *Factory) ProviderFor(cfg *sellers.PaymentConfig) (Provider, error) {
	if cfg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment config required")
	}

	switch cfg.Provider {
	case enums.PaymentProviderStripe:
		destination := cfg.StripeAccountID
		if cfg.PlatformFallback {
			destination = ""
		}
		return NewStripeProvider(f.stripe, destination)
	case enums.PaymentProviderSquare:
		provider, err := NewSquareLinkProvider(f.square, cfg.SquareAccessToken, cfg.SquareLocationID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnprocessable, err, "seller square checkout unavailable")
		}
		return provider, nil
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeUnprocessable, "provider %q does not use hosted checkout", cfg.Provider)
	}
}
