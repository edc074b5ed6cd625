package application

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/studiobook/internal/pricing/domain"
)

// Resolver computes price quotes for clients and technical guests.
// It only reads, so one instance is safe to share across requests.
type Resolver struct {
	serviceTypes domain.ServiceTypeRepository
	priceCodes   domain.PriceCodeRepository
}

// NewResolver creates a new Resolver.
func NewResolver(serviceTypes domain.ServiceTypeRepository, priceCodes domain.PriceCodeRepository) *Resolver {
	return &Resolver{serviceTypes: serviceTypes, priceCodes: priceCodes}
}

// ResolveForClient returns the client's override valid at the instant, or the
// service defaults when none applies.
func (r *Resolver) ResolveForClient(ctx context.Context, clientID, serviceTypeID int64, at time.Time) (domain.PriceQuote, error) {
	st, err := r.activeServiceType(ctx, serviceTypeID)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	codes, err := r.priceCodes.FindForClient(ctx, clientID, serviceTypeID)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("load price codes: %w", err)
	}
	if code, ok := domain.SelectPriceCode(codes, at); ok {
		return code.Quote(), nil
	}
	return st.DefaultQuote(), nil
}

// ResolveForTechnicalGuest always returns the service defaults.
func (r *Resolver) ResolveForTechnicalGuest(ctx context.Context, serviceTypeID int64) (domain.PriceQuote, error) {
	st, err := r.activeServiceType(ctx, serviceTypeID)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	return st.DefaultQuote(), nil
}

// ServiceType returns the active service type or ErrServiceTypeNotFound.
func (r *Resolver) ServiceType(ctx context.Context, serviceTypeID int64) (*domain.ServiceType, error) {
	return r.activeServiceType(ctx, serviceTypeID)
}

func (r *Resolver) activeServiceType(ctx context.Context, id int64) (*domain.ServiceType, error) {
	st, err := r.serviceTypes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !st.Active {
		return nil, domain.ErrServiceTypeNotFound
	}
	return st, nil
}
