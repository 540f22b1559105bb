package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"opendesk.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Organizations() OrganizationStore { return &pgOrgStore{db: s.db} }
func (s *PGStore) Users() UserStore                 { return &pgUserStore{db: s.db} }
func (s *PGStore) Roles() RoleStore                 { return &pgRoleStore{db: s.db} }
func (s *PGStore) Permissions() PermissionStore     { return &pgPermissionStore{db: s.db} }
func (s *PGStore) Sessions() SessionStore           { return &pgSessionStore{db: s.db} }

// Organization store -------------------------------------------------------
type pgOrgStore struct{ db *sql.DB }

func (s *pgOrgStore) Create(ctx context.Context, org *Organization) error {
	if org.ID == "" {
		org.ID = ids.New()
	}
	meta, _ := json.Marshal(org.Metadata)
	_, err := s.db.ExecContext(ctx,
		`insert into organizations(id, name, metadata) values($1,$2,$3)`,
		org.ID, org.Name, meta,
	)
	return err
}

func (s *pgOrgStore) Find(ctx context.Context, id string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, created_at, updated_at, metadata from organizations where id=$1`, id,
	)
	var (
		org      Organization
		metadata []byte
	)
	if err := row.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt, &metadata); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(metadata, &org.Metadata)
	return &org, nil
}

func (s *pgOrgStore) List(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, created_at, updated_at, metadata from organizations order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Organization
	for rows.Next() {
		var (
			org      Organization
			metadata []byte
		)
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt, &org.UpdatedAt, &metadata); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(metadata, &org.Metadata)
		res = append(res, &org)
	}
	return res, rows.Err()
}

// User store ---------------------------------------------------------------
type pgUserStore struct{ db *sql.DB }

const userColumns = `id, organization_id, email, password_hash, status, coalesce(team_id,''), created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.OrganizationID, &u.Email, &u.PasswordHash, &u.Status, &u.TeamID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *pgUserStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, organization_id, email, password_hash, status, team_id) values($1,$2,$3,$4,$5,nullif($6,''))`,
		u.ID, u.OrganizationID, u.Email, u.PasswordHash, u.Status, u.TeamID,
	)
	return err
}

func (s *pgUserStore) Find(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *pgUserStore) FindByEmail(ctx context.Context, organizationID, email string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where organization_id=$1 and email=$2`, organizationID, email))
}

func (s *pgUserStore) ListByOrg(ctx context.Context, orgID string) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users where organization_id=$1 order by created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *pgUserStore) Update(ctx context.Context, userID string, upd UserUpdate) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`update users set
		   email = coalesce($2, email),
		   password_hash = coalesce($3, password_hash),
		   status = coalesce($4, status),
		   team_id = coalesce($5, team_id),
		   updated_at = now()
		 where id=$1
		 returning `+userColumns,
		userID, upd.Email, upd.PasswordHash, upd.Status, upd.TeamID,
	)
	return scanUser(row)
}

// Role store ---------------------------------------------------------------
type pgRoleStore struct{ db *sql.DB }

func (s *pgRoleStore) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into roles(id, organization_id, name, description) values($1,$2,$3,$4)`,
		role.ID, role.OrganizationID, role.Name, role.Description,
	)
	return err
}

func (s *pgRoleStore) Find(ctx context.Context, id string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, organization_id, name, description, created_at, updated_at from roles where id=$1`, id)
	var role Role
	if err := row.Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (s *pgRoleStore) ListByOrg(ctx context.Context, orgID string) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, organization_id, name, description, created_at, updated_at from roles where organization_id=$1 order by created_at`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

func (s *pgRoleStore) Assign(ctx context.Context, assignment Assignment) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_roles(user_id, role_id, organization_id) values($1,$2,$3) on conflict do nothing`,
		assignment.UserID, assignment.RoleID, assignment.OrganizationID,
	)
	return err
}

func (s *pgRoleStore) RemoveAssignment(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from user_roles where user_id=$1 and role_id=$2`, userID, roleID)
	return err
}

func (s *pgRoleStore) Assignments(ctx context.Context, userID string) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`select user_id, role_id, organization_id, created_at from user_roles where user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.UserID, &a.RoleID, &a.OrganizationID, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// GrantsForUser flattens the role->permission joins into plain RoleGrants so
// nothing persistence-shaped leaks into policy evaluation.
func (s *pgRoleStore) GrantsForUser(ctx context.Context, userID string) ([]RoleGrants, error) {
	rows, err := s.db.QueryContext(ctx,
		`select r.id, r.organization_id, r.name, r.description, r.created_at, r.updated_at, coalesce(p.key,'')
		 from user_roles ur
		 join roles r on r.id = ur.role_id
		 left join role_permissions rp on rp.role_id = r.id
		 left join permissions p on p.id = rp.permission_id
		 where ur.user_id=$1
		 order by r.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		result []RoleGrants
		cur    *RoleGrants
	)
	for rows.Next() {
		var (
			role Role
			key  string
		)
		if err := rows.Scan(&role.ID, &role.OrganizationID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt, &key); err != nil {
			return nil, err
		}
		if cur == nil || cur.Role.ID != role.ID {
			result = append(result, RoleGrants{Role: role})
			cur = &result[len(result)-1]
		}
		if key != "" {
			cur.Permissions = append(cur.Permissions, key)
		}
	}
	return result, rows.Err()
}

// Permission store ---------------------------------------------------------
type pgPermissionStore struct{ db *sql.DB }

func (s *pgPermissionStore) Ensure(ctx context.Context, defs []Definition) error {
	for _, def := range defs {
		_, err := s.db.ExecContext(ctx,
			`insert into permissions(id, key, resource, action, scope, description)
			 values($1,$2,$3,$4,nullif($5,''),$6)
			 on conflict (key) do update set description = excluded.description`,
			ids.New(), def.Key, def.Resource, def.Action, def.Scope, def.Description,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *pgPermissionStore) List(ctx context.Context) ([]Definition, error) {
	rows, err := s.db.QueryContext(ctx,
		`select key, resource, action, coalesce(scope,''), description from permissions order by key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		var def Definition
		if err := rows.Scan(&def.Key, &def.Resource, &def.Action, &def.Scope, &def.Description); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (s *pgPermissionStore) SetForRole(ctx context.Context, roleID string, keys []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id=$1`, roleID); err != nil {
		return err
	}
	for _, key := range keys {
		_, err := tx.ExecContext(ctx,
			`insert into role_permissions(role_id, permission_id)
			 select $1, id from permissions where key=$2`, roleID, key,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *pgPermissionStore) KeysForRole(ctx context.Context, roleID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select p.key from permissions p
		 join role_permissions rp on rp.permission_id=p.id where rp.role_id=$1 order by p.key`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Session store ------------------------------------------------------------
type pgSessionStore struct{ db *sql.DB }

const sessionColumns = `id, user_id, organization_id, refresh_token_hash, coalesce(user_agent,''), coalesce(ip_address,''), created_at, expires_at, revoked_at`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var (
		s         Session
		revokedAt sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.UserID, &s.OrganizationID, &s.RefreshTokenHash, &s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt, &revokedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		s.RevokedAt = &t
	}
	return &s, nil
}

func (s *pgSessionStore) Create(ctx context.Context, session *Session) error {
	if session.ID == "" {
		session.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(id, user_id, organization_id, refresh_token_hash, user_agent, ip_address, created_at, expires_at)
		 values($1,$2,$3,$4,nullif($5,''),nullif($6,''),$7,$8)`,
		session.ID, session.UserID, session.OrganizationID, session.RefreshTokenHash,
		session.UserAgent, session.IPAddress, session.CreatedAt, session.ExpiresAt,
	)
	return err
}

func (s *pgSessionStore) Find(ctx context.Context, id string) (*Session, error) {
	return scanSession(s.db.QueryRowContext(ctx,
		`select `+sessionColumns+` from sessions where id=$1`, id))
}

func (s *pgSessionStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+sessionColumns+` from sessions where user_id=$1 order by created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Rotate is the conditional update backing refresh rotation. Matching on the
// old hash makes concurrent refreshes of one session resolve to exactly one
// winner; zero rows affected is the caller's theft signal.
func (s *pgSessionStore) Rotate(ctx context.Context, sessionID, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`update sessions set refresh_token_hash=$3, expires_at=$4
		 where id=$1 and refresh_token_hash=$2 and revoked_at is null`,
		sessionID, oldHash, newHash, expiresAt,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *pgSessionStore) Revoke(ctx context.Context, sessionID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update sessions set revoked_at=$2 where id=$1 and revoked_at is null`,
		sessionID, at,
	)
	return err
}

func (s *pgSessionStore) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`update sessions set revoked_at=$2 where user_id=$1 and revoked_at is null`,
		userID, at,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
