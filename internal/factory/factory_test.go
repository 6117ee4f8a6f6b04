package factory

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"users-service/internal/config"
	"users-service/internal/models"
)

func testConfig(t *testing.T, mr *miniredis.Miniredis) *config.Config {
	t.Helper()
	cfg, err := config.Parse(map[string]string{
		"SECRET_KEY":             "secret",
		"FILES_SIGNATURE_SECRET": "files-secret",
		"BCRYPT_COST":            "4",
		"REDIS_URL":              "redis://" + mr.Addr() + "/0",
		"DATABASE_DRIVER":        config.DriverSQLite,
		"DATABASE_DSN":           filepath.Join(t.TempDir(), "users.db"),
		"KAFKA_ENABLED":          "false",
	})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestFactoryWiresServices(t *testing.T) {
	mr := miniredis.RunT(t)
	f, err := NewFactory(testConfig(t, mr), zap.NewNop())
	if err != nil {
		t.Fatalf("NewFactory: %v", err)
	}
	defer f.Close()

	health := f.HealthCheck(context.Background())
	for _, name := range []string{"redis", "database"} {
		err, ok := health[name]
		if !ok || err != nil {
			t.Errorf("%s: present=%v err=%v", name, ok, err)
		}
	}
	if _, ok := health["kafka"]; ok {
		t.Error("kafka checked while disabled")
	}
	if !f.IsHealthy(context.Background()) {
		t.Error("factory reports unhealthy")
	}

	services := f.ServiceFactory()
	if services != f.ServiceFactory() {
		t.Error("service factory rebuilt")
	}

	// Email delivery falls back to the log without SMTP, so the full flow runs.
	ctx := context.Background()
	if err := services.VerificationService().SendVerificationCode(ctx, "ivan@example.com", false); err != nil {
		t.Fatalf("SendVerificationCode: %v", err)
	}
	code, err := mr.Get("verification:ivan@example.com")
	if err != nil {
		t.Fatalf("stored code: %v", err)
	}
	session, err := services.VerificationService().VerifyCodeAndIssueSession(ctx, "ivan@example.com", code, models.OperationAuthentication)
	if err != nil {
		t.Fatalf("VerifyCodeAndIssueSession: %v", err)
	}
	pair, err := services.SessionService().Authenticate(ctx, session.Session, models.Registration{
		Username: "ivan", Password: "pw", FirstName: "Ivan", LastName: "Petrov",
		Email: "ivan@example.com", VerificationSource: models.FieldEmail,
	})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if pair.User.Avatar == nil || pair.User.Avatar.OriginalFilename != "ivan.svg" {
		t.Errorf("avatar = %+v", pair.User.Avatar)
	}
}

func TestFactoryFailsWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr)
	mr.Close()

	if _, err := NewFactory(cfg, zap.NewNop()); err == nil {
		t.Fatal("expected an error with redis down")
	}
}
