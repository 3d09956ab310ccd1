package database

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"

	"chat-service/model"
)

const allMethods = "(GET)|(POST)|(PUT)|(PATCH)|(DELETE)"

// DefaultPolicies maps each role to the API paths it may call.
var DefaultPolicies = [][]string{
	{model.RoleUser, "/api/v1/auth/*", allMethods},
	{model.RoleUser, "/api/v1/chats*", allMethods},
	{model.RoleUser, "/api/v1/messages*", allMethods},
	{model.RoleAdmin, "/api/v1/*", allMethods},
}

// Casbin builds an enforcer whose policies live in the database next to the
// application tables.
func Casbin(db *gorm.DB, modelPath string) (*casbin.Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("initialize casbin adapter: %w", err)
	}

	e, err := casbin.NewEnforcer(modelPath, adapter)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load casbin policy: %w", err)
	}
	if err := SeedPolicies(e); err != nil {
		return nil, err
	}
	return e, nil
}

// SeedPolicies adds the default policies that are not stored yet.
func SeedPolicies(e *casbin.Enforcer) error {
	for _, p := range DefaultPolicies {
		ok, err := e.HasPolicy(p[0], p[1], p[2])
		if err != nil {
			return fmt.Errorf("check casbin policy: %w", err)
		}
		if ok {
			continue
		}
		if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
			return fmt.Errorf("add casbin policy: %w", err)
		}
	}
	return nil
}
