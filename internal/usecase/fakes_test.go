package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Andiquis/xQor3/internal/core/domain"
	"github.com/Andiquis/xQor3/internal/infra/config"
	"github.com/Andiquis/xQor3/internal/repository"
)

// memoryStore backs the user, role and assignment ports in memory.
type memoryStore struct {
	mu sync.Mutex

	users       map[int64]*domain.User
	roles       map[int32]*domain.Role
	assignments []*domain.RoleAssignment

	nextUserID       int64
	nextRoleID       int32
	nextAssignmentID int64

	failOn map[string]error
	// afterCount runs once CountActiveForRole has released the lock.
	afterCount func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:  make(map[int64]*domain.User),
		roles:  make(map[int32]*domain.Role),
		failOn: make(map[string]error),
	}
}

func (m *memoryStore) fail(op string) error { return m.failOn[op] }

func (m *memoryStore) seedRole(name string, state domain.RoleState) *domain.Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRoleID++
	r := &domain.Role{ID: m.nextRoleID, Name: name, State: state, CreatedAt: time.Unix(0, 0).UTC()}
	m.roles[r.ID] = r
	return r
}

func (m *memoryStore) seedUser(email, hash string) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextUserID++
	u := &domain.User{ID: m.nextUserID, Email: email, Name: "Seed User", PasswordHash: hash, Active: true}
	m.users[u.ID] = u
	return u
}

func (m *memoryStore) userByEmail(email string) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (m *memoryStore) assignmentsFor(userID int64, roleID int32) []domain.RoleAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RoleAssignment
	for _, a := range m.assignments {
		if a.UserID == userID && a.RoleID == roleID {
			out = append(out, *a)
		}
	}
	return out
}

type userRepo struct{ *memoryStore }

func (r userRepo) Create(_ context.Context, in domain.NewUser) (int64, error) {
	if err := r.fail("users.create"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == in.Email {
			return 0, repository.ErrConflict
		}
	}
	r.nextUserID++
	r.users[r.nextUserID] = &domain.User{
		ID:           r.nextUserID,
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		Phone:        in.Phone,
		NationalID:   in.NationalID,
		Active:       true,
	}
	return r.nextUserID, nil
}

func (r userRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if err := r.fail("users.get_by_email"); err != nil {
		return nil, err
	}
	if u := r.userByEmail(email); u != nil {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) ExistsByNationalID(_ context.Context, nationalID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.NationalID != nil && *u.NationalID == nationalID {
			return true, nil
		}
	}
	return false, nil
}

func (r userRepo) List(context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r userRepo) SetActive(_ context.Context, id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Active = active
	return nil
}

func (r userRepo) RegisterFailedLogin(_ context.Context, id int64, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	if u.LockedUntil != nil && !now.Before(*u.LockedUntil) {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	}
	u.FailedLoginAttempts++
	return u.FailedLoginAttempts, nil
}

func (r userRepo) LockUntil(_ context.Context, id int64, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.LockedUntil = &until
	return nil
}

func (r userRepo) RecordSuccessfulLogin(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.FailedLoginAttempts = 0
	u.LockedUntil = nil
	u.LastLoginAt = &at
	return nil
}

type roleRepo struct{ *memoryStore }

func (r roleRepo) Create(_ context.Context, role domain.Role) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.roles {
		if existing.Name == role.Name {
			return nil, repository.ErrConflict
		}
	}
	r.nextRoleID++
	role.ID = r.nextRoleID
	role.CreatedAt = time.Unix(0, 0).UTC()
	stored := role
	r.roles[role.ID] = &stored
	return &role, nil
}

func (r roleRepo) GetByID(_ context.Context, id int32) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	role, ok := r.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (r roleRepo) GetByName(_ context.Context, name string) (*domain.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, role := range r.roles {
		if role.Name == name {
			cp := *role
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r roleRepo) ListWithCounts(context.Context) ([]domain.RoleWithCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.RoleWithCount, 0, len(r.roles))
	for _, role := range r.roles {
		count := 0
		for _, a := range r.assignments {
			if a.RoleID == role.ID && a.State == domain.AssignmentStateActive {
				count++
			}
		}
		out = append(out, domain.RoleWithCount{Role: *role, ActiveAssignments: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r roleRepo) Update(_ context.Context, role domain.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[role.ID]; !ok {
		return repository.ErrNotFound
	}
	for _, existing := range r.roles {
		if existing.ID != role.ID && existing.Name == role.Name {
			return repository.ErrConflict
		}
	}
	stored := role
	r.roles[role.ID] = &stored
	return nil
}

func (r roleRepo) Delete(_ context.Context, id int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[id]; !ok {
		return repository.ErrNotFound
	}
	for _, a := range r.assignments {
		if a.RoleID == id && a.State == domain.AssignmentStateActive {
			return repository.ErrConflict
		}
	}
	kept := r.assignments[:0]
	for _, a := range r.assignments {
		if a.RoleID != id {
			kept = append(kept, a)
		}
	}
	r.assignments = kept
	delete(r.roles, id)
	return nil
}

type assignmentRepo struct{ *memoryStore }

func (r assignmentRepo) FindActive(_ context.Context, userID int64, roleID int32) (*domain.RoleAssignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.UserID == userID && a.RoleID == roleID && a.State == domain.AssignmentStateActive {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r assignmentRepo) Create(_ context.Context, userID int64, roleID int32, at time.Time) (*domain.RoleAssignment, error) {
	if err := r.fail("assignments.create"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.UserID == userID && a.RoleID == roleID && a.State == domain.AssignmentStateActive {
			return nil, repository.ErrConflict
		}
	}
	r.nextAssignmentID++
	a := &domain.RoleAssignment{
		ID:        r.nextAssignmentID,
		UserID:    userID,
		RoleID:    roleID,
		State:     domain.AssignmentStateActive,
		GrantedAt: at,
	}
	r.assignments = append(r.assignments, a)
	cp := *a
	return &cp, nil
}

func (r assignmentRepo) Deactivate(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.assignments {
		if a.ID == id && a.State == domain.AssignmentStateActive {
			a.State = domain.AssignmentStateInactive
			a.RevokedAt = &at
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r assignmentRepo) CountActiveForRole(_ context.Context, roleID int32) (int, error) {
	r.mu.Lock()
	n := 0
	for _, a := range r.assignments {
		if a.RoleID == roleID && a.State == domain.AssignmentStateActive {
			n++
		}
	}
	r.mu.Unlock()
	if r.afterCount != nil {
		r.afterCount()
	}
	return n, nil
}

func (r assignmentRepo) ListActiveForRole(_ context.Context, roleID int32) ([]domain.AssignmentWithUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AssignmentWithUser
	for _, a := range r.assignments {
		if a.RoleID != roleID || a.State != domain.AssignmentStateActive {
			continue
		}
		u := r.users[a.UserID]
		out = append(out, domain.AssignmentWithUser{
			RoleAssignment: *a,
			User:           domain.UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Active: u.Active},
		})
	}
	return out, nil
}

func (r assignmentRepo) ListActiveRoleNamesForUser(_ context.Context, userID int64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := []string{}
	for _, a := range r.assignments {
		if a.UserID != userID || a.State != domain.AssignmentStateActive {
			continue
		}
		if role := r.roles[a.RoleID]; role != nil && role.State == domain.RoleStateActive {
			names = append(names, role.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// plainHasher stores passwords with a visible prefix and counts verifications.
type plainHasher struct {
	mu       sync.Mutex
	verifies int
}

func (h *plainHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	return "plain$" + password, nil
}

func (h *plainHasher) Verify(password, encoded string) (bool, error) {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return strings.TrimPrefix(encoded, "plain$") == password, nil
}

func (h *plainHasher) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.verifies
}

type recordingPublisher struct {
	mu         sync.Mutex
	registered []domain.UserRegisteredEvent
	assigned   []domain.RoleAssignedEvent
	revoked    []domain.RoleRevokedEvent
	locked     []domain.AccountLockedEvent
}

func (p *recordingPublisher) PublishUserRegistered(_ context.Context, e domain.UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, e)
	return nil
}

func (p *recordingPublisher) PublishRoleAssigned(_ context.Context, e domain.RoleAssignedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assigned = append(p.assigned, e)
	return nil
}

func (p *recordingPublisher) PublishRoleRevoked(_ context.Context, e domain.RoleRevokedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked = append(p.revoked, e)
	return nil
}

func (p *recordingPublisher) PublishAccountLocked(_ context.Context, e domain.AccountLockedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = append(p.locked, e)
	return nil
}

type countingMetrics struct {
	logins        map[string]int
	lockouts      int
	registrations map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{logins: map[string]int{}, registrations: map[string]int{}}
}

func (m *countingMetrics) LoginAttempt(outcome string) { m.logins[outcome]++ }
func (m *countingMetrics) AccountLocked()              { m.lockouts++ }
func (m *countingMetrics) Registration(outcome string) { m.registrations[outcome]++ }

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store        *memoryStore
	hasher       *plainHasher
	clock        *testClock
	events       *recordingPublisher
	metrics      *countingMetrics
	tokens       *TokenIssuer
	auth         *AuthService
	registration *RegistrationService
	roles        *RoleService
	users        *UserService
}

func newFixture(t testing.TB) *fixture {
	t.Helper()

	store := newMemoryStore()
	clock := newTestClock()
	hasher := &plainHasher{}
	events := &recordingPublisher{}
	metrics := newCountingMetrics()

	tokens, err := NewTokenIssuer(config.JWTSettings{Secret: "test-secret", ExpiresIn: "24h"})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	tokens.WithClock(clock.Now)

	users := userRepo{store}
	roles := roleRepo{store}
	assignments := assignmentRepo{store}

	return &fixture{
		store:   store,
		hasher:  hasher,
		clock:   clock,
		events:  events,
		metrics: metrics,
		tokens:  tokens,
		auth: NewAuthService(users, assignments, hasher, tokens, LockoutPolicy{MaxAttempts: 5, Duration: 15 * time.Minute}).
			WithEvents(events).
			WithMetrics(metrics).
			WithClock(clock.Now),
		registration: NewRegistrationService(users, roles, assignments, hasher, nil, tokens, RegistrationOptions{DefaultRole: "usuario"}).
			WithEvents(events).
			WithMetrics(metrics).
			WithClock(clock.Now),
		roles: NewRoleService(roles, assignments, users).
			WithEvents(events).
			WithClock(clock.Now),
		users: NewUserService(users, assignments),
	}
}
