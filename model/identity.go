package model

import (
	"fmt"
	"strconv"
	"strings"
)

type IdentityKind string

const (
	KindUser     IdentityKind = "user"
	KindMerchant IdentityKind = "merchant"
)

// Valid reports whether k is one of the known participant kinds.
func (k IdentityKind) Valid() bool {
	return k == KindUser || k == KindMerchant
}

// Identity addresses a messaging participant. It is comparable and used as a map key.
type Identity struct {
	Kind IdentityKind `json:"kind"`
	ID   int64        `json:"id"`
}

func NewIdentity(kind IdentityKind, id int64) Identity {
	return Identity{Kind: kind, ID: id}
}

func (i Identity) Valid() bool {
	return i.Kind.Valid() && i.ID > 0
}

// String renders "kind:id", the form used for socket rooms and log attributes.
func (i Identity) String() string {
	return fmt.Sprintf("%s:%d", i.Kind, i.ID)
}

// ParseIdentity accepts the kind and id as they appear in routes and token claims.
func ParseIdentity(kind string, id string) (Identity, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("invalid identity id %q: %w", id, err)
	}
	identity := Identity{Kind: IdentityKind(strings.ToLower(kind)), ID: n}
	if !identity.Valid() {
		return Identity{}, fmt.Errorf("invalid identity %s", identity)
	}
	return identity, nil
}

// Less orders identities by id, then kind.
func (i Identity) Less(o Identity) bool {
	if i.ID != o.ID {
		return i.ID < o.ID
	}
	return i.Kind < o.Kind
}
