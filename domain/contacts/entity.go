// Package contacts holds the tenant's local contact records, the internal
// side of every sync.
package contacts

import (
	"time"

	"github.com/uptrace/bun"
)

// Contact is one local record. EmailNormalized and PhoneNormalized are the
// business-key columns sync matching runs against; they are derived from
// Email and Phone on every write.
type Contact struct {
	bun.BaseModel `bun:"table:contacts,alias:ct"`

	ID              string         `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	CompanyID       string         `bun:"company_id,notnull,type:uuid" json:"company_id"`
	FirstName       string         `bun:"first_name,notnull,default:''" json:"first_name"`
	LastName        string         `bun:"last_name,notnull,default:''" json:"last_name"`
	Email           *string        `bun:"email" json:"email,omitempty"`
	EmailNormalized *string        `bun:"email_normalized" json:"-"`
	Phone           *string        `bun:"phone" json:"phone,omitempty"`
	PhoneNormalized *string        `bun:"phone_normalized" json:"-"`
	Attributes      map[string]any `bun:"attributes,type:jsonb" json:"attributes"`
	CreatedAt       time.Time      `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt       time.Time      `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

// Normalize recomputes the derived matching columns.
func (c *Contact) Normalize() {
	c.EmailNormalized = nil
	c.PhoneNormalized = nil
	if c.Email != nil {
		if n := NormalizeEmail(*c.Email); n != "" {
			c.EmailNormalized = &n
		}
	}
	if c.Phone != nil {
		if n := NormalizePhone(*c.Phone); n != "" {
			c.PhoneNormalized = &n
		}
	}
}
