package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"users-service/internal/client"
	"users-service/internal/config"
	"users-service/internal/hashing"
	"users-service/internal/models"
	redisrepo "users-service/internal/repository/redis"
	"users-service/internal/repository/relational"
	"users-service/internal/signature"
	"users-service/internal/tokens"
)

const (
	testTTL        = 600 * time.Second
	testAvatarBase = "https://avatars.example.com/marble"
)

type fakeNotifier struct {
	mu    sync.Mutex
	codes map[string]string
}

func (n *fakeNotifier) SendCode(_ context.Context, identifier, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[identifier] = code
	return nil
}

func (n *fakeNotifier) last(identifier string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[identifier]
}

type recordedEvent struct {
	kind string
	user models.User
}

type fakeEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *fakeEvents) SendUserCreated(_ context.Context, user models.User) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{"user_created", user})
	return nil
}

func (e *fakeEvents) SendUserChanged(_ context.Context, user models.User) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{"user_changed", user})
	return nil
}

func (e *fakeEvents) kinds() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	kinds := make([]string, len(e.events))
	for i, ev := range e.events {
		kinds[i] = ev.kind
	}
	return kinds
}

type harness struct {
	mr           *miniredis.Miniredis
	users        *relational.UserRepository
	refresh      *redisrepo.SessionCache
	authSessions *redisrepo.AuthSessionCache
	signer       *signature.Verifier
	notifier     *fakeNotifier
	events       *fakeEvents
	sessions     *SessionService
	verification *VerificationService
	userService  *UserService
}

func newHarness(t *testing.T, sendLimit int) *harness {
	t.Helper()

	sqlClient, err := client.NewSQLClient(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "users.db"),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlClient.Close() })
	store := relational.NewStore(sqlClient)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	rc := client.WrapRedis(rdb)

	files := relational.NewFileRepository(store, testAvatarBase)
	h := &harness{
		mr:           mr,
		users:        relational.NewUserRepository(store, files),
		refresh:      redisrepo.NewSessionCache(rc),
		authSessions: redisrepo.NewAuthSessionCache(rc, testTTL),
		signer:       signature.NewVerifier("files-secret"),
		notifier:     &fakeNotifier{codes: map[string]string{}},
		events:       &fakeEvents{},
	}

	factory := NewServiceFactory(Dependencies{
		Users:           h.users,
		Files:           files,
		Codes:           redisrepo.NewCodeCache(rc, testTTL, 7),
		AuthSessions:    h.authSessions,
		RefreshSessions: h.refresh,
		SendLimiter:     redisrepo.NewRateLimitCache(rc, sendLimit, time.Hour),
		Tokens:          tokens.NewCodec("token-secret", 24*time.Hour, 720*time.Hour),
		Hasher:          hashing.NewHasher(4, "pepper"),
		Signatures:      h.signer,
		Tx:              store,
		Notifier:        h.notifier,
		Events:          h.events,
		Logger:          zap.NewNop(),
	})
	h.sessions = factory.SessionService()
	h.verification = factory.VerificationService()
	h.userService = factory.UserService()
	return h
}

// session runs the send/verify flow for identifier and returns a session
// scoped to op.
func (h *harness) session(t *testing.T, identifier string, op models.Operation) string {
	t.Helper()
	ctx := context.Background()
	if err := h.verification.SendVerificationCode(ctx, identifier, false); err != nil {
		t.Fatalf("SendVerificationCode(%s): %v", identifier, err)
	}
	s, err := h.verification.VerifyCodeAndIssueSession(ctx, identifier, h.notifier.last(identifier), op)
	if err != nil {
		t.Fatalf("VerifyCodeAndIssueSession(%s): %v", identifier, err)
	}
	return s.Session
}

func (h *harness) register(t *testing.T, username, phone string) models.TokenPair {
	t.Helper()
	session := h.session(t, phone, models.OperationAuthentication)
	pair, err := h.sessions.Authenticate(context.Background(), session, models.Registration{
		Username:           username,
		Password:           "secret-" + username,
		FirstName:          "Ivan",
		LastName:           "Petrov",
		Phone:              phone,
		VerificationSource: models.FieldPhone,
	})
	if err != nil {
		t.Fatalf("Authenticate(%s): %v", username, err)
	}
	return pair
}

func (h *harness) signed(filename string) *models.UploadingFile {
	return &models.UploadingFile{
		Original: models.FileMeta{
			URL:       "https://files.example.com/" + filename,
			Filename:  filename,
			Filetype:  models.FiletypeAvatar,
			Signature: h.signer.Sign(filename, models.FiletypeAvatar),
		},
	}
}
