package subaccount

import (
	"time"

	"github.com/google/uuid"
)

// SubAccount holds API credentials for a venue sub-account. Credentials are
// scoped by exchange, sub-account name and owning entity.
type SubAccount struct {
	ID       uuid.UUID `db:"id"`
	Exchange string    `db:"exchange"`
	Name     string    `db:"name"`
	Entity   string    `db:"entity"`

	APIKeyEncrypted     []byte `db:"api_key_encrypted"`
	SecretEncrypted     []byte `db:"secret_encrypted"`
	PassphraseEncrypted []byte `db:"passphrase_encrypted"`

	Active bool `db:"active"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
