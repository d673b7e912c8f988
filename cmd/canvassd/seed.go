package main

import (
	"context"
	"fmt"

	"github.com/opencanvass/canvassd/pkg/auth"
	"github.com/opencanvass/canvassd/pkg/config"
	"github.com/opencanvass/canvassd/pkg/observability"
	"github.com/opencanvass/canvassd/pkg/privilege"
	"github.com/opencanvass/canvassd/pkg/schema"
	"github.com/opencanvass/canvassd/pkg/store"
)

// seed installs the canonical role set and, when configured, an initial
// administrator account. Runs only against empty collections so restarts
// never clobber existing data.
func seed(ctx context.Context, st store.Store, cfg *config.Config, logger *observability.Logger) error {
	roles := st.Collection(schema.CollRoles)
	existing, err := roles.Find(ctx, store.Filter{}, nil)
	if err != nil {
		return fmt.Errorf("reading roles: %w", err)
	}

	var adminRoleID string
	if len(existing) == 0 {
		for _, role := range privilege.DefaultRoles() {
			doc, err := roles.Insert(ctx, role.ToDocument())
			if err != nil {
				return fmt.Errorf("seeding role %q: %w", role.Name, err)
			}
			if role.Level == privilege.LevelAdmin {
				adminRoleID = doc.ID()
			}
		}
		logger.Info("seeded default roles")
	} else {
		for _, doc := range existing {
			if role := privilege.RoleFromDocument(doc); role != nil && role.Level == privilege.LevelAdmin {
				adminRoleID = role.ID
			}
		}
	}

	if cfg.Auth.AdminPassword == "" {
		return nil
	}

	users := st.Collection(schema.CollUsers)
	existingUsers, err := users.Find(ctx, store.Filter{}, nil)
	if err != nil {
		return fmt.Errorf("reading users: %w", err)
	}
	if len(existingUsers) > 0 {
		return nil
	}
	if adminRoleID == "" {
		return fmt.Errorf("no administrator role to attach the initial account to")
	}

	if _, err := users.Insert(ctx, store.Document{
		"username":     "admin",
		"passwordHash": auth.HashSecret(cfg.Auth.AdminPassword),
		"role":         adminRoleID,
		"source":       string(auth.SourceWeb),
	}); err != nil {
		return fmt.Errorf("seeding admin user: %w", err)
	}
	logger.Info("seeded initial administrator account")
	return nil
}
