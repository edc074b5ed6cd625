package domain

import "context"

// ServiceTypeRepository reads service types.
type ServiceTypeRepository interface {
	// FindByID returns ErrServiceTypeNotFound when the id is unknown.
	FindByID(ctx context.Context, id int64) (*ServiceType, error)
	Save(ctx context.Context, st *ServiceType) error
}

// PriceCodeRepository reads client price overrides.
type PriceCodeRepository interface {
	// FindForClient returns all codes for the client and service type,
	// including inactive and expired ones.
	FindForClient(ctx context.Context, clientID, serviceTypeID int64) ([]PriceCode, error)
	Save(ctx context.Context, code *PriceCode) error
}
