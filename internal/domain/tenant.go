package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is one merchant store whose catalog and templates are isolated from
// others. The access token is an opaque credential issued by the OAuth
// collaborator; this core never validates or refreshes it.
type Tenant struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ShopDomain  string    `json:"shop_domain" db:"shop_domain"`
	AccessToken string    `json:"-" db:"access_token"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
