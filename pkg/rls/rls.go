// Package rls scopes a postgres transaction to one tenant so row level
// security policies on tenant tables can compare against it.
package rls

import (
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const settingName = "app.current_org_id"

// WithTenant must run inside a transaction. Other dialects have no row level
// security and are left untouched.
func WithTenant(tx *gorm.DB, orgID snowflake.ID) error {
	if tx == nil || tx.Dialector == nil || tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT set_config(?, ?, true)", settingName, orgID.String()).Error
}
