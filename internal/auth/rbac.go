package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RBACService provides the administrative operations around roles and
// permissions: tenant/user/role management, grant assignment, and the
// principal-loader queries. Policy evaluation itself never touches this
// service; it only sees flattened permission sets.
type RBACService struct {
	store Store
}

// NewRBACService constructs the service.
func NewRBACService(store Store) (*RBACService, error) {
	if store == nil {
		return nil, errors.New("auth: rbac store is required")
	}
	return &RBACService{store: store}, nil
}

// EnsureCatalog upserts the static permission catalog into the store.
func (s *RBACService) EnsureCatalog(ctx context.Context) error {
	defs := make([]Definition, 0, len(Catalog))
	for _, key := range CatalogKeys() {
		defs = append(defs, Catalog[key])
	}
	return s.store.Permissions().Ensure(ctx, defs)
}

// ListPermissions returns the persisted catalog.
func (s *RBACService) ListPermissions(ctx context.Context) ([]Definition, error) {
	return s.store.Permissions().List(ctx)
}

func (s *RBACService) CreateOrganization(ctx context.Context, name string, metadata map[string]any) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: organization name is required", ErrInvalidInput)
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	org := &Organization{Name: name, Metadata: metadata}
	if err := s.store.Organizations().Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

func (s *RBACService) GetOrganization(ctx context.Context, id string) (*Organization, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.Organizations().Find(ctx, id)
}

func (s *RBACService) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	return s.store.Organizations().List(ctx)
}

func (s *RBACService) CreateUser(ctx context.Context, organizationID, email, password, teamID string) (*User, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	password = strings.TrimSpace(password)
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &User{
		OrganizationID: organizationID,
		Email:          email,
		PasswordHash:   hash,
		Status:         UserStatusActive,
		TeamID:         strings.TrimSpace(teamID),
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *RBACService) GetUser(ctx context.Context, userID string) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	return s.store.Users().Find(ctx, userID)
}

func (s *RBACService) ListUsers(ctx context.Context, organizationID string) ([]*User, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.Users().ListByOrg(ctx, organizationID)
}

// UpdateUser applies a partial update after normalizing and hashing inputs.
// Field-level authorization happens in the caller via UserFieldPolicy before
// this is reached.
func (s *RBACService) UpdateUser(ctx context.Context, userID string, upd UserUpdate) (*User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if upd.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*upd.Email))
		if email == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
		}
		upd.Email = &email
	}
	if upd.Status != nil {
		status := strings.TrimSpace(strings.ToLower(*upd.Status))
		if status != UserStatusActive && status != UserStatusDisabled {
			return nil, fmt.Errorf("%w: unsupported status %s", ErrInvalidInput, status)
		}
		upd.Status = &status
	}
	if upd.PasswordHash != nil {
		pw := strings.TrimSpace(*upd.PasswordHash)
		if pw == "" {
			return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := HashPassword(pw)
		if err != nil {
			return nil, err
		}
		upd.PasswordHash = &hash
	}
	return s.store.Users().Update(ctx, userID, upd)
}

func (s *RBACService) CreateRole(ctx context.Context, organizationID, name, description string) (*Role, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", ErrInvalidInput)
	}
	role := &Role{OrganizationID: organizationID, Name: name, Description: strings.TrimSpace(description)}
	if err := s.store.Roles().Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

func (s *RBACService) ListRoles(ctx context.Context, organizationID string) ([]*Role, error) {
	organizationID = strings.TrimSpace(organizationID)
	if organizationID == "" {
		return nil, fmt.Errorf("%w: organization_id is required", ErrInvalidInput)
	}
	return s.store.Roles().ListByOrg(ctx, organizationID)
}

// SetRolePermissions replaces the role's grant set. Unknown keys are
// rejected against the static catalog before touching the store.
func (s *RBACService) SetRolePermissions(ctx context.Context, roleID string, keys []string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id is required", ErrInvalidInput)
	}
	keys = dedupeStrings(keys)
	for _, key := range keys {
		if _, ok := Lookup(key); !ok {
			return fmt.Errorf("%w: unknown permission key %q", ErrInvalidInput, key)
		}
	}
	return s.store.Permissions().SetForRole(ctx, roleID, keys)
}

func (s *RBACService) AssignRole(ctx context.Context, userID, roleID string) (Assignment, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return Assignment{}, fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	role, err := s.store.Roles().Find(ctx, roleID)
	if err != nil {
		return Assignment{}, err
	}
	assignment := Assignment{UserID: userID, RoleID: roleID, OrganizationID: role.OrganizationID}
	if err := s.store.Roles().Assign(ctx, assignment); err != nil {
		return Assignment{}, err
	}
	return assignment, nil
}

func (s *RBACService) RemoveRoleAssignment(ctx context.Context, userID, roleID string) error {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return fmt.Errorf("%w: user_id and role_id are required", ErrInvalidInput)
	}
	return s.store.Roles().RemoveAssignment(ctx, userID, roleID)
}

// UserPermissions returns the user's flattened permission keys. This is the
// principal-loader query: recomputed on demand, never cached across requests.
func (s *RBACService) UserPermissions(ctx context.Context, userID string) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	grants, err := s.store.Roles().GrantsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return FlattenPermissions(grants), nil
}
