// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Account is a registered player account. The plaintext password is never
// stored; Credential holds the encoded hash record (PHC string).
type Account struct {
	ID         uuid.UUID // PK
	Name       string    // unique
	Credential string    // e.g. $argon2id$v=19$m=65536,t=3,p=2$<salt>$<digest>
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
