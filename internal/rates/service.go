package rates

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/packquote-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/packquote-backend/pkg/errors"
	"github.com/angelmondragon/packquote-backend/pkg/logger"
)

// Service publishes rate table versions. Reads go through the Resolver.
type Service struct {
	repo     *Repository
	resolver *Resolver
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(repo *Repository, resolver *Resolver, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rates repository required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("rates resolver required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, resolver: resolver, logg: logg, now: time.Now}, nil
}

// Publish stores rates under its version and refreshes the cached copy so the
// next Resolve sees the new numbers. The built-in version is read-only.
func (s *Service) Publish(ctx context.Context, rates pricing.Rates) error {
	if rates.Version == pricing.BuiltinRatesVersion {
		return pkgerrors.New(pkgerrors.CodeConflict, "the built-in rate table cannot be replaced")
	}
	if err := rates.Validate(); err != nil {
		details := map[string]string{}
		for i, e := range multierr.Errors(err) {
			details[fmt.Sprintf("rates[%d]", i)] = e.Error()
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rate table").WithDetails(details)
	}
	if err := s.repo.Publish(ctx, rates, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish rate table")
	}
	s.resolver.toCache(ctx, rates)
	s.logg.Info(s.logg.WithField(ctx, "rate_table_version", rates.Version), "rate table published")
	return nil
}

// Versions lists every version a request may name, the built-in one last.
func (s *Service) Versions(ctx context.Context) ([]string, error) {
	versions, err := s.repo.Versions(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rate tables")
	}
	return append(versions, pricing.BuiltinRatesVersion), nil
}
