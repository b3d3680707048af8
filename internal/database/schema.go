package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/surrealdb/surrealdb.go"
)

// accountSchema makes email uniqueness a storage guarantee instead of a
// check-then-act in the service.
var accountSchema = []string{
	"DEFINE TABLE IF NOT EXISTS account SCHEMALESS;",
	"DEFINE INDEX IF NOT EXISTS account_email ON TABLE account FIELDS email UNIQUE;",
	"DEFINE INDEX IF NOT EXISTS account_session_token ON TABLE account FIELDS sessionToken;",
	"DEFINE INDEX IF NOT EXISTS account_reset_token ON TABLE account FIELDS resetToken;",
}

// EnsureSchema applies the account table definition. It is idempotent.
func EnsureSchema(ctx context.Context, conn DBConnection) error {
	ctx, cancel := withTimeout(ctx, conn.GetDBExecuteTimeout(), ContextKeyExecuteTimeout)
	defer cancel()

	return conn.WithConnection(ctx, func(db *surrealdb.DB) error {
		for _, stmt := range accountSchema {
			if err := Execute(ctx, db, stmt, nil); err != nil {
				return fmt.Errorf("apply schema %q: %w", stmt, err)
			}
		}
		slog.InfoContext(ctx, "Account schema applied", "statements", len(accountSchema))
		return nil
	})
}
