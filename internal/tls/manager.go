package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"users-service/internal/config"
)

// TLSManager resolves the server certificate. Sources are tried in order:
// ACME (autocert), the configured key pair, then a generated self-signed
// certificate outside production.
type TLSManager struct {
	config     config.ServerConfig
	production bool
	logger     *zap.Logger
	autoCert   *autocert.Manager

	mu      sync.Mutex
	static  *tls.Certificate
	devCert *tls.Certificate
}

func NewTLSManager(cfg config.ServerConfig, production bool, logger *zap.Logger) (*TLSManager, error) {
	m := &TLSManager{
		config:     cfg,
		production: production,
		logger:     logger,
	}

	if cfg.AutoCert {
		if err := m.setupAutoCert(); err != nil {
			return nil, err
		}
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load key pair: %w", err)
		}
		m.static = &cert
	}

	if m.autoCert == nil && m.static == nil && production {
		return nil, errors.New("no certificate source configured for production")
	}
	return m, nil
}

func (m *TLSManager) setupAutoCert() error {
	if err := os.MkdirAll(m.config.AutoCertDir, 0o700); err != nil {
		return fmt.Errorf("could not create autocert directory: %w", err)
	}

	m.autoCert = &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(m.config.Domain),
		Cache:      autocert.DirCache(m.config.AutoCertDir),
		Email:      m.config.ACMEEmail,
	}

	m.logger.Info("AutoCert configured",
		zap.String("domain", m.config.Domain),
		zap.String("cache_dir", m.config.AutoCertDir))
	return nil
}

func (m *TLSManager) GetCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	if m.autoCert != nil {
		cert, err := m.autoCert.GetCertificate(hello)
		if err == nil || m.static == nil {
			return cert, err
		}
		m.logger.Warn("AutoCert failed, using configured key pair", zap.Error(err))
	}
	if m.static != nil {
		return m.static, nil
	}
	return m.selfSigned()
}

func (m *TLSManager) selfSigned() (*tls.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.devCert != nil {
		return m.devCert, nil
	}

	hosts := []string{"localhost", "127.0.0.1", "::1"}
	if m.config.Domain != "" {
		hosts = append(hosts, m.config.Domain)
	}
	cert, err := generateSelfSigned(hosts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
	}
	m.logger.Warn("Serving a self-signed development certificate", zap.Strings("hosts", hosts))
	m.devCert = &cert
	return m.devCert, nil
}

func (m *TLSManager) GetTLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: m.GetCertificate,
		NextProtos:     []string{"h2", "http/1.1"},
		MinVersion:     tls.VersionTLS12,
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
	}
}

// ChallengeHandler answers ACME http-01 challenges and redirects everything
// else to HTTPS. It is nil when autocert is off.
func (m *TLSManager) ChallengeHandler() http.Handler {
	if m.autoCert == nil {
		return nil
	}
	return m.autoCert.HTTPHandler(nil)
}
