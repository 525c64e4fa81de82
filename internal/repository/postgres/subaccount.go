package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"hermes/internal/adapters/exchanges"
	"hermes/internal/domain/subaccount"
	"hermes/pkg/crypto"
	"hermes/pkg/errors"
)

// Compile-time check
var _ subaccount.Repository = (*SubAccountRepository)(nil)

// SubAccountRepository implements subaccount.Repository using sqlx.
// Credentials are stored AES-256-GCM encrypted.
type SubAccountRepository struct {
	db        *sqlx.DB
	encryptor *crypto.Encryptor
}

// NewSubAccountRepository creates a new sub-account repository
func NewSubAccountRepository(db *sqlx.DB, encryptor *crypto.Encryptor) *SubAccountRepository {
	return &SubAccountRepository{db: db, encryptor: encryptor}
}

// Create inserts new sub-account credentials
func (r *SubAccountRepository) Create(ctx context.Context, sa *subaccount.SubAccount) error {
	query := `
		INSERT INTO sub_accounts (
			id, exchange, name, entity,
			api_key_encrypted, secret_encrypted, passphrase_encrypted,
			active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		sa.ID, sa.Exchange, sa.Name, sa.Entity,
		sa.APIKeyEncrypted, sa.SecretEncrypted, sa.PassphraseEncrypted,
		sa.Active, sa.CreatedAt, sa.UpdatedAt,
	)

	return err
}

// Get retrieves active credentials for an exchange sub-account
func (r *SubAccountRepository) Get(ctx context.Context, exchange, name, entity string) (*subaccount.SubAccount, error) {
	var sa subaccount.SubAccount

	query := `
		SELECT * FROM sub_accounts
		WHERE exchange = $1 AND name = $2 AND entity = $3 AND active = true`

	err := r.db.GetContext(ctx, &sa, query, exchange, name, entity)
	if err == sql.ErrNoRows {
		return nil, errors.ErrCredentialsNotFound
	}
	if err != nil {
		return nil, err
	}

	return &sa, nil
}

// ListByExchange retrieves all active sub-accounts for an exchange
func (r *SubAccountRepository) ListByExchange(ctx context.Context, exchange string) ([]*subaccount.SubAccount, error) {
	var accounts []*subaccount.SubAccount

	query := `SELECT * FROM sub_accounts WHERE exchange = $1 AND active = true ORDER BY name`

	err := r.db.SelectContext(ctx, &accounts, query, exchange)
	if err != nil {
		return nil, err
	}

	return accounts, nil
}

// Deactivate disables credentials without deleting them
func (r *SubAccountRepository) Deactivate(ctx context.Context, exchange, name, entity string) error {
	query := `
		UPDATE sub_accounts SET active = false, updated_at = $1
		WHERE exchange = $2 AND name = $3 AND entity = $4`

	result, err := r.db.ExecContext(ctx, query, time.Now(), exchange, name, entity)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.ErrCredentialsNotFound
	}

	return nil
}

// GetCredentials implements the credential source used by the exchange
// factory. Missing credentials surface as ErrCredentialsNotFound.
func (r *SubAccountRepository) GetCredentials(ctx context.Context, exchange, subAccount, entity string) (*exchanges.Credentials, error) {
	sa, err := r.Get(ctx, exchange, subAccount, entity)
	if err != nil {
		return nil, err
	}

	apiKey, err := r.encryptor.Decrypt(sa.APIKeyEncrypted)
	if err != nil {
		return nil, errors.Wrapf(err, "decrypt api key: %s/%s", exchange, subAccount)
	}
	secret, err := r.encryptor.Decrypt(sa.SecretEncrypted)
	if err != nil {
		return nil, errors.Wrapf(err, "decrypt secret: %s/%s", exchange, subAccount)
	}

	var passphrase string
	if len(sa.PassphraseEncrypted) > 0 {
		passphrase, err = r.encryptor.Decrypt(sa.PassphraseEncrypted)
		if err != nil {
			return nil, errors.Wrapf(err, "decrypt passphrase: %s/%s", exchange, subAccount)
		}
	}

	return &exchanges.Credentials{
		APIKey:     apiKey,
		Secret:     secret,
		Passphrase: passphrase,
	}, nil
}
