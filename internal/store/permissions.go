// ABOUTME: Per-user permission grants and principal loading
// ABOUTME: Permission codes take the form app_label.codename, e.g. shop.csv_order

package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/2389/csvexport/internal/auth"
)

// validPermissionCode reports whether code looks like "app_label.codename".
func validPermissionCode(code string) bool {
	app, name, ok := strings.Cut(code, ".")
	return ok && app != "" && name != "" && !strings.Contains(name, ".")
}

// GrantPermission grants a permission code to a user. This operation is
// idempotent - granting an existing permission succeeds silently.
func (s *SQLiteStore) GrantPermission(ctx context.Context, userID, code string) error {
	if !validPermissionCode(code) {
		return fmt.Errorf("invalid permission code %q: want app_label.codename", code)
	}

	if _, err := s.GetUser(ctx, userID); err != nil {
		return err
	}

	query := `
		INSERT OR IGNORE INTO user_permissions (user_id, codename, created_at)
		VALUES (?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, userID, code, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("granting permission: %w", err)
	}

	s.logger.Info("granted permission", "user_id", userID, "code", code)
	return nil
}

// RevokePermission removes a permission code from a user. This operation is
// idempotent - revoking a missing permission succeeds silently.
func (s *SQLiteStore) RevokePermission(ctx context.Context, userID, code string) error {
	query := `DELETE FROM user_permissions WHERE user_id = ? AND codename = ?`

	if _, err := s.db.ExecContext(ctx, query, userID, code); err != nil {
		return fmt.Errorf("revoking permission: %w", err)
	}

	s.logger.Info("revoked permission", "user_id", userID, "code", code)
	return nil
}

// ListPermissions returns the codes granted to a user, sorted. Returns an
// empty slice if the user has none.
func (s *SQLiteStore) ListPermissions(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT codename FROM user_permissions
		WHERE user_id = ?
		ORDER BY codename
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	perms := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		perms = append(perms, code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}

	return perms, nil
}

// LoadPrincipal builds the auth.Principal for a user, including granted permissions.
func (s *SQLiteStore) LoadPrincipal(ctx context.Context, userID string) (*auth.Principal, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	perms, err := s.ListPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}

	return auth.NewPrincipal(user.ID, user.Username, user.IsStaff, user.IsSuperuser, user.IsActive, perms...), nil
}
