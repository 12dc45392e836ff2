// Package postgres provides PostgreSQL storage for users, base URIs and
// permissions.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/txn2/dataset-lookup/pkg/access"
)

// foreignKeyViolation is the SQLSTATE for a foreign key violation.
const foreignKeyViolation = "23503"

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store implements access.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL access store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// RegisterUsers inserts users, skipping usernames that already exist.
func (s *Store) RegisterUsers(ctx context.Context, users []access.User) error {
	if len(users) == 0 {
		return nil
	}
	qb := psq.Insert("users").Columns("username", "is_admin")
	for _, u := range users {
		qb = qb.Values(u.Username, u.IsAdmin)
	}
	query, args, err := qb.Suffix("ON CONFLICT (username) DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("building user insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting users: %w", err)
	}
	return nil
}

// UpdateUser sets the admin flag of an existing user.
func (s *Store) UpdateUser(ctx context.Context, user access.User) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_admin = $1 WHERE username = $2`, user.IsAdmin, user.Username)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return expectAffected(res, access.ErrUnknownUser, user.Username)
}

// DeleteUser removes a user; permissions cascade.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return expectAffected(res, access.ErrUnknownUser, username)
}

// GetUser returns a user.
func (s *Store) GetUser(ctx context.Context, username string) (*access.User, error) {
	return getUser(ctx, s.db, username)
}

// ListUsers returns every user ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]access.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, is_admin FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := []access.User{}
	for rows.Next() {
		var u access.User
		if err := rows.Scan(&u.Username, &u.IsAdmin); err != nil {
			return nil, fmt.Errorf("scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user rows: %w", err)
	}
	return users, nil
}

// RegisterBaseURI registers a base URI.
func (s *Store) RegisterBaseURI(ctx context.Context, baseURI string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO base_uris (base_uri) VALUES ($1) ON CONFLICT (base_uri) DO NOTHING`, baseURI)
	if err != nil {
		return fmt.Errorf("inserting base uri: %w", err)
	}
	return nil
}

// ListBaseURIs returns every base URI in ascending order.
func (s *Store) ListBaseURIs(ctx context.Context) ([]string, error) {
	return listBaseURIs(ctx, s.db)
}

// BaseURIExists reports whether a base URI is registered.
func (s *Store) BaseURIExists(ctx context.Context, baseURI string) (bool, error) {
	return baseURIExists(ctx, s.db, baseURI)
}

// GetPermissionInfo returns the permissions on a base URI.
func (s *Store) GetPermissionInfo(ctx context.Context, baseURI string) (*access.PermissionInfo, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exists, err := baseURIExists(ctx, tx, baseURI)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", access.ErrUnknownBaseURI, baseURI)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT username, right_name FROM permissions WHERE base_uri = $1 ORDER BY username, right_name`, baseURI)
	if err != nil {
		return nil, fmt.Errorf("querying permissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	info := &access.PermissionInfo{
		BaseURI:                      baseURI,
		UsersWithSearchPermissions:   []string{},
		UsersWithRegisterPermissions: []string{},
	}
	for rows.Next() {
		var username string
		var right access.Right
		if err := rows.Scan(&username, &right); err != nil {
			return nil, fmt.Errorf("scanning permission row: %w", err)
		}
		switch right {
		case access.RightSearch:
			info.UsersWithSearchPermissions = append(info.UsersWithSearchPermissions, username)
		case access.RightRegister:
			info.UsersWithRegisterPermissions = append(info.UsersWithRegisterPermissions, username)
		case access.RightAdmin:
			info.UsersWithAdminPermissions = append(info.UsersWithAdminPermissions, username)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permission rows: %w", err)
	}
	return info, tx.Commit()
}

// PutPermissions replaces every permission on info.BaseURI in one
// transaction. Nothing is written when the base URI or any user is unknown.
func (s *Store) PutPermissions(ctx context.Context, info access.PermissionInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exists, err := baseURIExists(ctx, tx, info.BaseURI)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", access.ErrUnknownBaseURI, info.BaseURI)
	}

	if err := checkUsersExist(ctx, tx, info.Usernames()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM permissions WHERE base_uri = $1`, info.BaseURI); err != nil {
		return fmt.Errorf("clearing permissions: %w", err)
	}

	if perms := info.Permissions(); len(perms) > 0 {
		qb := psq.Insert("permissions").Columns("username", "base_uri", "right_name")
		for _, p := range perms {
			qb = qb.Values(p.Username, p.BaseURI, string(p.Right))
		}
		query, args, err := qb.Suffix("ON CONFLICT DO NOTHING").ToSql()
		if err != nil {
			return fmt.Errorf("building permission insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inserting permissions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing permissions: %w", err)
	}
	return nil
}

// Grant adds a single permission if not already held.
func (s *Store) Grant(ctx context.Context, perm access.Permission) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO permissions (username, base_uri, right_name) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		perm.Username, perm.BaseURI, string(perm.Right))
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		if pqErr.Constraint == "permissions_username_fkey" {
			return fmt.Errorf("%w: %s", access.ErrUnknownUser, perm.Username)
		}
		return fmt.Errorf("%w: %s", access.ErrUnknownBaseURI, perm.BaseURI)
	}
	return fmt.Errorf("inserting permission: %w", err)
}

// Grants reads the user, their permissions and every base URI inside one
// read-only repeatable-read transaction.
func (s *Store) Grants(ctx context.Context, username string) (*access.Grants, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	user, err := getUser(ctx, tx, username)
	if err != nil {
		return nil, err
	}

	baseURIs, err := listBaseURIs(ctx, tx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT base_uri, right_name FROM permissions WHERE username = $1 ORDER BY base_uri, right_name`, username)
	if err != nil {
		return nil, fmt.Errorf("querying grants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	g := &access.Grants{User: *user, BaseURIs: baseURIs}
	for rows.Next() {
		p := access.Permission{Username: username}
		if err := rows.Scan(&p.BaseURI, &p.Right); err != nil {
			return nil, fmt.Errorf("scanning grant row: %w", err)
		}
		g.Permissions = append(g.Permissions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating grant rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing grants read: %w", err)
	}
	return g, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getUser(ctx context.Context, q querier, username string) (*access.User, error) {
	var u access.User
	err := q.QueryRowContext(ctx,
		`SELECT username, is_admin FROM users WHERE username = $1`, username).Scan(&u.Username, &u.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", access.ErrUnknownUser, username)
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

func listBaseURIs(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT base_uri FROM base_uris ORDER BY base_uri`)
	if err != nil {
		return nil, fmt.Errorf("querying base uris: %w", err)
	}
	defer func() { _ = rows.Close() }()

	uris := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scanning base uri row: %w", err)
		}
		uris = append(uris, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating base uri rows: %w", err)
	}
	return uris, nil
}

func baseURIExists(ctx context.Context, q querier, baseURI string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM base_uris WHERE base_uri = $1)`, baseURI).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking base uri: %w", err)
	}
	return exists, nil
}

func checkUsersExist(ctx context.Context, q querier, usernames []string) error {
	if len(usernames) == 0 {
		return nil
	}
	query, args, err := psq.Select("username").From("users").Where(sq.Eq{"username": usernames}).ToSql()
	if err != nil {
		return fmt.Errorf("building user check: %w", err)
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("checking users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]bool, len(usernames))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scanning user row: %w", err)
		}
		found[name] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating user rows: %w", err)
	}
	for _, name := range usernames {
		if !found[name] {
			return fmt.Errorf("%w: %s", access.ErrUnknownUser, name)
		}
	}
	return nil
}

func expectAffected(res sql.Result, notFound error, key string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", notFound, key)
	}
	return nil
}

// Verify interface compliance.
var _ access.Store = (*Store)(nil)
