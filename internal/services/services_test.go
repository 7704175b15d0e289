package services

import (
	"context"
	"path/filepath"
	"testing"

	"ai-chat-api/internal/config"
	"ai-chat-api/internal/database"
	"ai-chat-api/internal/models"
	"ai-chat-api/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) IsAvailable(p models.Provider) bool {
	return m.Called(p).Bool(0)
}

func (m *mockGateway) Dispatch(ctx context.Context, p models.Provider, prompt string) (string, error) {
	args := m.Called(ctx, p, prompt)
	return args.String(0), args.Error(1)
}

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	args := m.Called(ctx, login)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *mockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepository) SetUnlimited(ctx context.Context, id uuid.UUID, unlimited bool) error {
	return m.Called(ctx, id, unlimited).Error(0)
}

// staleUsers answers the first n existence checks with false, as if another
// signup committed right after them.
type staleUsers struct {
	repository.UserRepository
	n int
}

func (s *staleUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	if s.n > 0 {
		s.n--
		return false, nil
	}
	return s.UserRepository.ExistsByEmail(ctx, email)
}

func (s *staleUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	if s.n > 0 {
		s.n--
		return false, nil
	}
	return s.UserRepository.ExistsByUsername(ctx, username)
}

type fixture struct {
	db    *gorm.DB
	cfg   *config.Config
	users repository.UserRepository
	chats repository.ChatRepository
	gw    *mockGateway
	svc   ChatService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.InitDB("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	cfg := &config.Config{UsageLimit: 10}
	users := repository.NewUserRepository(db)
	chats := repository.NewChatRepository(db)
	gw := &mockGateway{}

	return &fixture{
		db:    db,
		cfg:   cfg,
		users: users,
		chats: chats,
		gw:    gw,
		svc:   NewChatService(users, chats, gw, NewQuotaPolicy(cfg), nil),
	}
}

func (f *fixture) createUser(t *testing.T, username string, usage int, unlimited bool) *models.User {
	t.Helper()
	user := &models.User{
		Name:         username,
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: "hash",
		UsageCount:   usage,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	if unlimited {
		require.NoError(t, f.users.SetUnlimited(context.Background(), user.ID, true))
		user.Unlimited = true
	}
	return user
}

func (f *fixture) blockChatInserts(t *testing.T) {
	t.Helper()
	require.NoError(t, f.db.Exec(`CREATE TRIGGER block_chat_insert BEFORE INSERT ON chat_history
BEGIN SELECT RAISE(ABORT, 'chat history is read-only'); END`).Error)
}
