package subaccount

import (
	"context"
)

// Repository defines the interface for sub-account credential access
type Repository interface {
	Create(ctx context.Context, sa *SubAccount) error
	Get(ctx context.Context, exchange, name, entity string) (*SubAccount, error)
	ListByExchange(ctx context.Context, exchange string) ([]*SubAccount, error)
	Deactivate(ctx context.Context, exchange, name, entity string) error
}
