package model

import "gorm.io/gorm"

// Profile is the display data of a participant, resolved in batches for conversation lists.
type Profile struct {
	gorm.Model
	Kind     IdentityKind `gorm:"not null;size:16;uniqueIndex:idx_profiles_identity" json:"kind"`
	RefID    int64        `gorm:"not null;uniqueIndex:idx_profiles_identity" json:"refId"`
	Nickname string       `gorm:"not null" json:"nickname"`
	Avatar   string       `json:"avatar"`
}

func (p Profile) Identity() Identity {
	return Identity{Kind: p.Kind, ID: p.RefID}
}

// ProfileLookupRequest asks for the profiles of a batch of identities.
type ProfileLookupRequest struct {
	Identities []Identity `json:"identities"`
}
