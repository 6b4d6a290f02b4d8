package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/luma-identity/internal/auth"
	memcache "github.com/prn-tf/luma-identity/internal/cache/memory"
	"github.com/prn-tf/luma-identity/internal/domain"
	"github.com/prn-tf/luma-identity/internal/lock"
	"github.com/prn-tf/luma-identity/internal/metrics"
	"github.com/prn-tf/luma-identity/internal/pkg/crypto"
	"github.com/prn-tf/luma-identity/internal/repository"
	"github.com/prn-tf/luma-identity/internal/storage/filesystem"
)

// MockUserRepository is an in-memory implementation of repository.UserRepository.
type MockUserRepository struct {
	mu      sync.Mutex
	users   map[int64]*domain.User
	nextID  int64
	updates int
	touched map[int64]string
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:   make(map[int64]*domain.User),
		touched: make(map[int64]string),
		nextID:  1,
	}
}

func applyGroup(u *domain.User) {
	u.StaffUser = u.GID == 1 || u.GID == 2
	u.StaffRoot = u.GID == 1
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return repository.NewConflictError(domain.FieldUsername)
		}
		if u.Email == user.Email {
			return repository.NewConflictError(domain.FieldEmail)
		}
	}
	user.UID = m.nextID
	m.nextID++
	stored := *user
	applyGroup(&stored)
	m.users[stored.UID] = &stored
	return nil
}

// put stores a user as-is, for setting up staff and banned accounts.
func (m *MockUserRepository) put(user *domain.User) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.UID = m.nextID
	m.nextID++
	applyGroup(user)
	m.users[user.UID] = user
	return user
}

func (m *MockUserRepository) GetByID(ctx context.Context, uid int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockUserRepository) GetProfile(ctx context.Context, uid int64) (*domain.UserProfile, error) {
	u, err := m.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &domain.UserProfile{User: u}, nil
}

func (m *MockUserRepository) UpdateFields(ctx context.Context, uid int64, fields []domain.FieldValue) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	u, ok := m.users[uid]
	if !ok {
		return 0, nil
	}
	for _, f := range fields {
		switch f.Field {
		case domain.FieldEmail:
			for id, other := range m.users {
				if id != uid && other.Email == f.Value.(string) {
					return 0, repository.NewConflictError(domain.FieldEmail)
				}
			}
			u.Email = f.Value.(string)
		case domain.FieldUsername:
			u.Username = f.Value.(string)
		case domain.FieldPassword:
			u.PasswordHash = f.Value.(string)
		case domain.FieldGID:
			gid := f.Value.(int64)
			if gid < 1 || gid > 3 {
				return 0, repository.ErrInvalidReference
			}
			u.GID = gid
			applyGroup(u)
		case domain.FieldTitle:
			u.Title = f.Value.(string)
		case domain.FieldBio:
			u.Bio = f.Value.(string)
		case domain.FieldWebsite:
			u.Website = f.Value.(string)
		case domain.FieldAvatar:
			u.Avatar = f.Value.(string)
		case domain.FieldShowEmail:
			u.ShowEmail = f.Value.(bool)
		case domain.FieldCanMsg:
			u.CanMsg = f.Value.(bool)
		case domain.FieldCanSubmit:
			u.CanSubmit = f.Value.(bool)
		case domain.FieldCanComment:
			u.CanComment = f.Value.(bool)
		default:
			return 0, domain.ErrUnknownField
		}
	}
	return 1, nil
}

func (m *MockUserRepository) TouchLogin(ctx context.Context, uid int64, ip string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[uid]; ok {
		u.LastVisit = &at
		u.LastIP = ip
		m.touched[uid] = ip
	}
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, uid int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[uid]; !ok {
		return 0, nil
	}
	delete(m.users, uid)
	return 1, nil
}

func (m *MockUserRepository) List(ctx context.Context, opts repository.UserListOptions) (*repository.ListResult[domain.User], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*domain.User
	for _, u := range m.users {
		cp := *u
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UID < all[j].UID })

	end := opts.Offset + opts.Limit
	if opts.Offset > len(all) {
		opts.Offset = len(all)
	}
	if end > len(all) {
		end = len(all)
	}
	return &repository.ListResult[domain.User]{
		Items:  all[opts.Offset:end],
		Total:  int64(len(all)),
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// FailingUserRepository records calls through testify's mock package and
// returns whatever the test programs.
type FailingUserRepository struct {
	mock.Mock
}

func (m *FailingUserRepository) Create(ctx context.Context, user *domain.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *FailingUserRepository) GetByID(ctx context.Context, uid int64) (*domain.User, error) {
	args := m.Called(ctx, uid)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *FailingUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	u, _ := args.Get(0).(*domain.User)
	return u, args.Error(1)
}

func (m *FailingUserRepository) GetProfile(ctx context.Context, uid int64) (*domain.UserProfile, error) {
	args := m.Called(ctx, uid)
	p, _ := args.Get(0).(*domain.UserProfile)
	return p, args.Error(1)
}

func (m *FailingUserRepository) UpdateFields(ctx context.Context, uid int64, fields []domain.FieldValue) (int64, error) {
	args := m.Called(ctx, uid, fields)
	return args.Get(0).(int64), args.Error(1)
}

func (m *FailingUserRepository) TouchLogin(ctx context.Context, uid int64, ip string, at time.Time) error {
	return m.Called(ctx, uid, ip, at).Error(0)
}

func (m *FailingUserRepository) Delete(ctx context.Context, uid int64) (int64, error) {
	args := m.Called(ctx, uid)
	return args.Get(0).(int64), args.Error(1)
}

func (m *FailingUserRepository) List(ctx context.Context, opts repository.UserListOptions) (*repository.ListResult[domain.User], error) {
	args := m.Called(ctx, opts)
	r, _ := args.Get(0).(*repository.ListResult[domain.User])
	return r, args.Error(1)
}

func (m *FailingUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *FailingUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

// fakeHasher stores passwords with a visible prefix so tests stay fast.
type fakeHasher struct {
	mu       sync.Mutex
	verifies int
}

func (h *fakeHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "hashed:" + plaintext, nil
}

func (h *fakeHasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return digest != "" && strings.TrimPrefix(digest, "hashed:") == plaintext && strings.HasPrefix(digest, "hashed:"), nil
}

type testEnv struct {
	repo     repository.UserRepository
	mem      *MockUserRepository
	hasher   *fakeHasher
	sessions *auth.SessionManager
	metrics  *metrics.Metrics
	auth     *AuthService
	profile  *ProfileService
	users    *UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := NewMockUserRepository()
	hasher := &fakeHasher{}
	env := buildEnv(t, mem, hasher)
	env.mem = mem
	env.hasher = hasher
	return env
}

func buildEnv(t *testing.T, repo repository.UserRepository, hasher crypto.PasswordHasher) *testEnv {
	t.Helper()
	cache := memcache.NewCache()
	t.Cleanup(cache.Stop)
	locker := lock.NewMemoryLocker()
	t.Cleanup(locker.Stop)

	avatars, err := filesystem.New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	m := metrics.New()
	sessions := auth.NewSessionManager(auth.SessionConfig{
		Secret: "0123456789abcdef0123456789abcdef",
		Issuer: "luma-test",
		TTL:    time.Hour,
	}, cache)

	authSvc := NewAuthService(repo, hasher, sessions, m, zerolog.Nop())
	return &testEnv{
		repo:     repo,
		sessions: sessions,
		metrics:  m,
		auth:     authSvc,
		profile: NewProfileService(repo, hasher, authSvc, locker, avatars, m, zerolog.Nop(), ProfileOptions{
			LockTTL:       time.Second,
			MaxAvatarSize: 4096,
		}),
		users: NewUserService(repo, 25, 100, zerolog.Nop()),
	}
}

// member stores an ordinary user with password "pw-<username>".
func (e *testEnv) member(username string) *domain.User {
	u := domain.NewUser(username, username+"@x.com", "hashed:pw-"+username, "127.0.0.1")
	return e.mem.put(u)
}

func (e *testEnv) withGroup(username string, gid int64) *domain.User {
	u := domain.NewUser(username, username+"@x.com", "hashed:pw-"+username, "127.0.0.1")
	u.GID = gid
	return e.mem.put(u)
}

// counterValue reads one labelled counter from the service registry.
func counterValue(t *testing.T, env *testEnv, name, label, value string) float64 {
	t.Helper()
	families, err := env.metrics.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
