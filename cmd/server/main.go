package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"users-service/internal/config"
	"users-service/internal/factory"
	"users-service/internal/handler"
	"users-service/internal/tls"
	"users-service/internal/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)
	defer util.Sync()

	// Initialize factory (which connects and migrates all clients)
	f, err := factory.NewFactory(cfg, logger)
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	h := handler.NewHandler(f.ServiceFactory(), f, logger)
	router := handler.NewRouter(h, handler.RouterConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequireTLS:     cfg.Server.EnableTLS,
		Timeout:        cfg.Server.WriteTimeout,
	}, logger)

	server := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var challenge *http.Server
	if cfg.Server.EnableTLS {
		tlsManager, err := tls.NewTLSManager(cfg.Server, cfg.IsProduction(), logger)
		if err != nil {
			util.Fatal("Failed to configure TLS", util.ErrorField(err))
		}
		server.TLSConfig = tlsManager.GetTLSConfig()

		// HTTP server for ACME challenge and redirect only
		if acme := tlsManager.ChallengeHandler(); acme != nil {
			challenge = &http.Server{Addr: ":80", Handler: acme, ReadHeaderTimeout: cfg.Server.ReadTimeout}
		}

		util.Info("Starting HTTPS server",
			util.String("environment", cfg.Environment),
			util.Int("port", cfg.Server.Port),
			util.Bool("auto_cert", cfg.Server.AutoCert),
		)
	} else {
		util.Warn("Starting HTTP server - TLS is disabled",
			util.String("environment", cfg.Environment),
			util.Int("port", cfg.Server.Port),
		)
	}

	startServer(f, server, challenge, cfg)
}

func startServer(f *factory.Factory, server, challenge *http.Server, cfg *config.Config) {
	if challenge != nil {
		go func() {
			util.Info("Starting ACME challenge server", util.String("address", challenge.Addr))
			if err := challenge.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				util.Error("ACME challenge server failed", util.ErrorField(err))
			}
		}()
	}

	go func() {
		var err error
		if cfg.Server.EnableTLS {
			// Certificates come from TLSConfig.GetCertificate.
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Fatal("Server failed to start", util.ErrorField(err))
		}
	}()

	util.Info("Server started successfully",
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.String("address", server.Addr),
	)

	waitForShutdown(f, server, challenge)
}

func waitForShutdown(f *factory.Factory, servers ...*http.Server) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-signalChan
	util.Info("Received shutdown signal", util.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			util.Error("Failed to shutdown server gracefully", util.ErrorField(err))
		} else {
			util.Info("Server shutdown completed", util.String("address", srv.Addr))
		}
	}
	f.Close()
}
