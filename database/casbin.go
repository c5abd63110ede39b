package database

import (
	"fmt"
	"log/slog"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"

	"rental-messenger/model"
)

const restfulModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// defaultPolicies grant both participant kinds the chat and profile routes.
var defaultPolicies = [][]string{
	{string(model.KindUser), "/v1/chat/*", "(GET)|(POST)"},
	{string(model.KindMerchant), "/v1/chat/*", "(GET)|(POST)"},
	{string(model.KindUser), "/v1/profiles/*", "(GET)|(POST)|(PUT)"},
	{string(model.KindMerchant), "/v1/profiles/*", "(GET)|(POST)|(PUT)"},
}

// Casbin builds the enforcer on top of the casbin_rule table and seeds the default policy.
func Casbin(db *gorm.DB, log *slog.Logger) (*casbin.Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("casbin adapter: %w", err)
	}

	m, err := casbinmodel.NewModelFromString(restfulModel)
	if err != nil {
		return nil, fmt.Errorf("casbin model: %w", err)
	}

	e, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("casbin enforcer: %w", err)
	}

	for _, policy := range defaultPolicies {
		hasPolicy, err := e.HasPolicy(policy)
		if err != nil {
			return nil, fmt.Errorf("casbin policy %v: %w", policy, err)
		}
		if hasPolicy {
			continue
		}
		if _, err := e.AddPolicy(policy); err != nil {
			return nil, fmt.Errorf("casbin policy %v: %w", policy, err)
		}
		log.Info("Added default policy", "policy", policy)
	}

	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("casbin load policy: %w", err)
	}
	return e, nil
}
