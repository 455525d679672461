// Package identity models the authenticated account supplied by the external
// auth provider. The reconciliation core treats it as read-only input; the
// local directory exists so admin search has something to query.
package identity

import (
	id "reclink/pkg/domain"
)

// Identity is the authenticated account the matcher scores records against.
// FullName and Phone are optional and frequently empty.
type Identity struct {
	ID       id.IdentityID
	Email    string
	FullName string
	Phone    string
}
