package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/estateline/estateline/internal/authz"
	"github.com/estateline/estateline/internal/platform/db"
	"github.com/estateline/estateline/internal/shared"
)

// Repository provides PostgreSQL backed persistence for profiles,
// capability sets and estate access grants.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetProfile returns the profile row for a user id.
func (r *Repository) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx,
		`SELECT id, full_name, role, is_active, created_at, updated_at FROM user_profiles WHERE id = $1`,
		userID,
	).Scan(&p.ID, &p.FullName, &p.Role, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, shared.ErrNotFound
		}
		return Profile{}, fmt.Errorf("accounts: get profile: %w", err)
	}
	return p, nil
}

// GetCapabilities returns the capability set for a user, or nil when no row
// exists. Absence is a valid result; the caller applies the fail-closed
// default.
func (r *Repository) GetCapabilities(ctx context.Context, userID string) (*authz.CapabilitySet, error) {
	var c authz.CapabilitySet
	err := r.pool.QueryRow(ctx,
		`SELECT can_create_items, can_edit_items, can_delete_items, can_manage_estates,
		        can_manage_buildings, can_manage_categories, can_generate_reports, can_view_audit_logs
		 FROM co_admin_permissions WHERE user_id = $1`,
		userID,
	).Scan(&c.CanCreateItems, &c.CanEditItems, &c.CanDeleteItems, &c.CanManageEstates,
		&c.CanManageBuildings, &c.CanManageCategories, &c.CanGenerateReports, &c.CanViewAuditLogs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("accounts: get capabilities: %w", err)
	}
	return &c, nil
}

// ListGrantEstateIDs returns the estate ids the user holds grants for.
func (r *Repository) ListGrantEstateIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT estate_id FROM user_estate_access WHERE user_id = $1 ORDER BY estate_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("accounts: list grants: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("accounts: scan grant: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("accounts: list grants: %w", err)
	}
	return ids, nil
}

// InsertProfile creates the profile row for a freshly provisioned account.
func (r *Repository) InsertProfile(ctx context.Context, p Profile) (Profile, error) {
	var out Profile
	err := r.pool.QueryRow(ctx,
		`INSERT INTO user_profiles (id, full_name, role, is_active)
		 VALUES ($1, $2, $3, TRUE)
		 RETURNING id, full_name, role, is_active, created_at, updated_at`,
		p.ID, p.FullName, p.Role,
	).Scan(&out.ID, &out.FullName, &out.Role, &out.IsActive, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return Profile{}, fmt.Errorf("accounts: insert profile: %w", err)
	}
	return out, nil
}

// SetActive flips the is_active flag and returns the updated profile.
func (r *Repository) SetActive(ctx context.Context, userID string, active bool) (Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx,
		`UPDATE user_profiles SET is_active = $2, updated_at = NOW() WHERE id = $1
		 RETURNING id, full_name, role, is_active, created_at, updated_at`,
		userID, active,
	).Scan(&p.ID, &p.FullName, &p.Role, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, shared.ErrNotFound
		}
		return Profile{}, fmt.Errorf("accounts: set active: %w", err)
	}
	return p, nil
}

// UpdateRole overwrites the role. Moving a user off co_admin deletes their
// capability row in the same transaction, so a capability set never outlives
// the role that owns it.
func (r *Repository) UpdateRole(ctx context.Context, userID string, role authz.Role) (Profile, error) {
	var p Profile
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE user_profiles SET role = $2, updated_at = NOW() WHERE id = $1
			 RETURNING id, full_name, role, is_active, created_at, updated_at`,
			userID, role,
		).Scan(&p.ID, &p.FullName, &p.Role, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return fmt.Errorf("accounts: update role: %w", err)
		}
		if role != authz.RoleCoAdmin {
			if _, err := tx.Exec(ctx, `DELETE FROM co_admin_permissions WHERE user_id = $1`, userID); err != nil {
				return fmt.Errorf("accounts: drop capabilities: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// InsertGrant adds one estate access grant. Inserting an existing pair is a
// no-op success; the returned bool reports whether a row was written.
func (r *Repository) InsertGrant(ctx context.Context, g Grant) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO user_estate_access (user_id, estate_id, granted_by)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, estate_id) DO NOTHING`,
		g.UserID, g.EstateID, g.GrantedBy,
	)
	if err != nil {
		return false, fmt.Errorf("accounts: insert grant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReplacePermissions swaps the full grant set and upserts the capability row
// as one transaction, so readers never observe a half-replaced state.
func (r *Repository) ReplacePermissions(ctx context.Context, userID string, caps authz.CapabilitySet, estateIDs []string, grantedBy string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_estate_access WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("accounts: clear grants: %w", err)
		}
		for _, estateID := range estateIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_estate_access (user_id, estate_id, granted_by) VALUES ($1, $2, $3)`,
				userID, estateID, grantedBy,
			); err != nil {
				return fmt.Errorf("accounts: insert grant %s: %w", estateID, err)
			}
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO co_admin_permissions (
			    user_id, can_create_items, can_edit_items, can_delete_items, can_manage_estates,
			    can_manage_buildings, can_manage_categories, can_generate_reports, can_view_audit_logs
			 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (user_id) DO UPDATE SET
			    can_create_items = EXCLUDED.can_create_items,
			    can_edit_items = EXCLUDED.can_edit_items,
			    can_delete_items = EXCLUDED.can_delete_items,
			    can_manage_estates = EXCLUDED.can_manage_estates,
			    can_manage_buildings = EXCLUDED.can_manage_buildings,
			    can_manage_categories = EXCLUDED.can_manage_categories,
			    can_generate_reports = EXCLUDED.can_generate_reports,
			    can_view_audit_logs = EXCLUDED.can_view_audit_logs,
			    updated_at = NOW()`,
			userID, caps.CanCreateItems, caps.CanEditItems, caps.CanDeleteItems, caps.CanManageEstates,
			caps.CanManageBuildings, caps.CanManageCategories, caps.CanGenerateReports, caps.CanViewAuditLogs,
		); err != nil {
			return fmt.Errorf("accounts: upsert capabilities: %w", err)
		}
		return nil
	})
}

// DeleteProfile removes the profile row. Used only by compensating paths.
func (r *Repository) DeleteProfile(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM user_profiles WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("accounts: delete profile: %w", err)
	}
	return nil
}
