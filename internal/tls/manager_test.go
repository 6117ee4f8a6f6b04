package tls

import (
	"crypto/tls"
	"testing"

	"go.uber.org/zap"

	"users-service/internal/config"
)

func TestSelfSignedOutsideProduction(t *testing.T) {
	m, err := NewTLSManager(config.ServerConfig{Domain: "users.local"}, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTLSManager: %v", err)
	}

	cert, err := m.GetTLSConfig().GetCertificate(&tls.ClientHelloInfo{ServerName: "localhost"})
	if err != nil {
		t.Fatalf("GetCertificate: %v", err)
	}
	if err := cert.Leaf.VerifyHostname("users.local"); err != nil {
		t.Errorf("domain missing from certificate: %v", err)
	}
	if err := cert.Leaf.VerifyHostname("127.0.0.1"); err != nil {
		t.Errorf("loopback missing from certificate: %v", err)
	}

	again, _ := m.GetCertificate(&tls.ClientHelloInfo{})
	if again != cert {
		t.Error("self-signed certificate regenerated")
	}
	if m.ChallengeHandler() != nil {
		t.Error("challenge handler without autocert")
	}
}

func TestProductionNeedsCertificateSource(t *testing.T) {
	if _, err := NewTLSManager(config.ServerConfig{}, true, zap.NewNop()); err == nil {
		t.Fatal("expected an error without a certificate source")
	}
	if _, err := NewTLSManager(config.ServerConfig{CertFile: "missing.pem", KeyFile: "missing.key"}, true, zap.NewNop()); err == nil {
		t.Fatal("expected an error for unreadable key pair")
	}
}

func TestAutoCertManager(t *testing.T) {
	m, err := NewTLSManager(config.ServerConfig{
		AutoCert:    true,
		Domain:      "users.example.com",
		AutoCertDir: t.TempDir(),
	}, true, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTLSManager: %v", err)
	}
	if m.ChallengeHandler() == nil {
		t.Fatal("no challenge handler with autocert")
	}
}
