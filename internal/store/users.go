package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const userSelect = `
	SELECT u.id, u.name, u.email, u.password_hash, u.avatar, u.role, u.organization_id,
		COALESCE(o.name, ''), u.must_change_password, u.two_factor_enabled, u.two_factor_secret,
		u.created_at, u.updated_at
	FROM users u
	LEFT JOIN organizations o ON o.id = u.organization_id
`

func scanUser(row rowScanner) (User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.Avatar, &user.Role, &user.OrganizationID,
		&user.OrganizationName, &user.MustChangePassword, &user.TwoFactorEnabled, &user.TwoFactorSecret,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE u.id=$1`, userID))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, userSelect+` WHERE LOWER(u.email)=LOWER($1)`, strings.TrimSpace(email)))
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	role := user.Role
	if role == "" {
		role = "user"
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, avatar, role, organization_id, must_change_password)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Avatar, role, user.OrganizationID, user.MustChangePassword).
		Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	user.Email = strings.ToLower(user.Email)
	user.Role = role
	return user, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string, mustChange bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, must_change_password=$3, updated_at=NOW()
		WHERE id=$1
	`, userID, passwordHash, mustChange)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(result, "update password")
}

func (s *PostgresStore) SetTwoFactorSecret(ctx context.Context, userID, secret string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET two_factor_secret=$2, updated_at=NOW() WHERE id=$1`, userID, secret)
	if err != nil {
		return fmt.Errorf("set two factor secret: %w", err)
	}
	return nil
}

func (s *PostgresStore) EnableTwoFactor(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET two_factor_enabled=TRUE, updated_at=NOW() WHERE id=$1`, userID)
	if err != nil {
		return fmt.Errorf("enable two factor: %w", err)
	}
	return nil
}

// AssignUserOrganization binds a user to an organization with the given role.
func (s *PostgresStore) AssignUserOrganization(ctx context.Context, userID, orgID, role string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET organization_id=$2, role=$3, updated_at=NOW()
		WHERE id=$1
	`, userID, orgID, role)
	if err != nil {
		return fmt.Errorf("assign organization: %w", err)
	}
	return requireAffected(result, "assign organization")
}

// BindEmployee attaches a user without an organization as an employee.
// Users that already belong to an organization are left alone (sql.ErrNoRows).
func (s *PostgresStore) BindEmployee(ctx context.Context, userID, orgID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET organization_id=$2, role='employee', updated_at=NOW()
		WHERE id=$1 AND organization_id IS NULL
	`, userID, orgID)
	if err != nil {
		return fmt.Errorf("bind employee: %w", err)
	}
	return requireAffected(result, "bind employee")
}

// ListOrganizationUsers returns org members ordered by name. An empty role lists everyone.
func (s *PostgresStore) ListOrganizationUsers(ctx context.Context, orgID, role string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, userSelect+`
		WHERE u.organization_id=$1 AND ($2 = '' OR u.role = $2)
		ORDER BY u.name ASC, u.email ASC
	`, orgID, role)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collectUsers(rows)
}

func (s *PostgresStore) SearchOrganizationUsers(ctx context.Context, orgID, query string) ([]User, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(query))) + "%"
	rows, err := s.db.QueryContext(ctx, userSelect+`
		WHERE u.organization_id=$1
			AND (LOWER(u.name) LIKE $2 OR LOWER(u.email) LIKE $2)
		ORDER BY u.name ASC
		LIMIT 50
	`, orgID, pattern)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]User, error) {
	defer rows.Close()
	users := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

const organizationSelect = `SELECT id, name, email, admin_id, created_at FROM organizations`

func scanOrganization(row rowScanner) (Organization, error) {
	var org Organization
	if err := row.Scan(&org.ID, &org.Name, &org.Email, &org.AdminID, &org.CreatedAt); err != nil {
		return Organization{}, err
	}
	return org, nil
}

func (s *PostgresStore) GetOrganization(ctx context.Context, orgID string) (Organization, error) {
	return scanOrganization(s.db.QueryRowContext(ctx, organizationSelect+` WHERE id=$1`, orgID))
}

func (s *PostgresStore) GetOrganizationByEmail(ctx context.Context, email string) (Organization, error) {
	return scanOrganization(s.db.QueryRowContext(ctx, organizationSelect+` WHERE LOWER(email)=LOWER($1)`, strings.TrimSpace(email)))
}

func (s *PostgresStore) GetOrganizationByName(ctx context.Context, name string) (Organization, error) {
	return scanOrganization(s.db.QueryRowContext(ctx, organizationSelect+` WHERE LOWER(name)=LOWER($1)`, strings.TrimSpace(name)))
}

// OrganizationTaken reports whether another organization already uses name or email.
func (s *PostgresStore) OrganizationTaken(ctx context.Context, name, email string) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM organizations WHERE LOWER(name)=LOWER($1) OR LOWER(email)=LOWER($2))
	`, strings.TrimSpace(name), strings.TrimSpace(email)).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check organization: %w", err)
	}
	return taken, nil
}

// CreateOrganization inserts the organization and, when adminID is set, makes
// that user its admin in the same transaction.
func (s *PostgresStore) CreateOrganization(ctx context.Context, org Organization, adminID string) (Organization, error) {
	err := s.inTx(ctx, "create organization", func(tx *sql.Tx) error {
		var admin *string
		if adminID != "" {
			admin = &adminID
		}
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO organizations (id, name, email, admin_id)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at
		`, org.ID, strings.TrimSpace(org.Name), strings.TrimSpace(org.Email), admin).Scan(&org.CreatedAt); err != nil {
			return fmt.Errorf("insert organization: %w", err)
		}
		org.AdminID = admin
		if admin == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET organization_id=$2, role='admin', updated_at=NOW() WHERE id=$1
		`, adminID, org.ID); err != nil {
			return fmt.Errorf("promote organization admin: %w", err)
		}
		return nil
	})
	if err != nil {
		return Organization{}, err
	}
	return org, nil
}

func (s *PostgresStore) RenameOrganization(ctx context.Context, orgID, name string) (Organization, error) {
	org, err := scanOrganization(s.db.QueryRowContext(ctx, `
		UPDATE organizations SET name=$2 WHERE id=$1
		RETURNING id, name, email, admin_id, created_at
	`, orgID, strings.TrimSpace(name)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Organization{}, err
		}
		return Organization{}, fmt.Errorf("rename organization: %w", err)
	}
	return org, nil
}

func requireAffected(result sql.Result, action string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", action, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
