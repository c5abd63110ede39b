package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rental-messenger/model"
)

type Profiles struct {
	db *gorm.DB
}

func NewProfiles(db *gorm.DB) *Profiles {
	return &Profiles{db: db}
}

// Lookup loads the profiles of identities in one query per kind. Unknown identities are
// simply absent from the result.
func (r *Profiles) Lookup(ctx context.Context, identities []model.Identity) ([]model.Profile, error) {
	byKind := make(map[model.IdentityKind][]int64)
	for _, identity := range identities {
		byKind[identity.Kind] = append(byKind[identity.Kind], identity.ID)
	}

	profiles := []model.Profile{}
	for _, kind := range []model.IdentityKind{model.KindUser, model.KindMerchant} {
		ids := byKind[kind]
		if len(ids) == 0 {
			continue
		}
		var found []model.Profile
		err := r.db.WithContext(ctx).
			Where("kind = ? AND ref_id IN ?", kind, ids).
			Order("ref_id asc").
			Find(&found).Error
		if err != nil {
			return nil, fmt.Errorf("lookup %s profiles: %w", kind, err)
		}
		profiles = append(profiles, found...)
	}
	return profiles, nil
}

// Save creates or replaces the profile of p.Kind/p.RefID.
func (r *Profiles) Save(ctx context.Context, p *model.Profile) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "ref_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"nickname", "avatar", "updated_at"}),
	}).Create(p).Error
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.Identity(), err)
	}
	return nil
}
