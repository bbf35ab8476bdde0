package cli

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vitalvas/ingsig/httpsig"
	"github.com/vitalvas/ingsig/internal/config"
	"github.com/vitalvas/ingsig/keygen"
	"github.com/vitalvas/ingsig/mtls"
	"github.com/vitalvas/ingsig/sandbox"
)

const shutdownTimeout = 10 * time.Second

func newSandboxCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve a local API that checks signed requests",
		Long: `sandbox serves /oauth2/token and /greetings/single over TLS. Requests must
be signed with the key of the configured client; responses are signed with
the sandbox key, which is handed out as a JWK with every token. Prometheus
metrics are served on /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serveSandbox(cmd.Context(), a.cfg.Sandbox, a.logger)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", "", "listen address (default :8443)")
	flags.String("client-id", "", "client id accepted by the sandbox")
	flags.String("client-key-file", "", "PEM public key or certificate of the client signing key")

	a.bind("sandbox.addr", flags.Lookup("addr"))
	a.bind("sandbox.client_id", flags.Lookup("client-id"))
	a.bind("sandbox.client_key", flags.Lookup("client-key-file"))

	return cmd
}

func serveSandbox(ctx context.Context, cfg config.SandboxConfig, logger *zap.Logger) error {
	if cfg.ClientID == "" || cfg.ClientKey == "" {
		return errors.New("sandbox: client id and client key file are required")
	}

	clientKey, err := httpsig.LoadPublicKeyFile(cfg.ClientKey)
	if err != nil {
		return err
	}

	var serverKey *rsa.PrivateKey
	if cfg.ServerKey != "" {
		serverKey, err = httpsig.LoadPrivateKeyFile(cfg.ServerKey)
		if err != nil {
			return err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := sandbox.New(sandbox.Config{
		ServerKey:  serverKey,
		Clients:    map[string]*rsa.PublicKey{cfg.ClientID: clientKey},
		Logger:     logger,
		Registerer: reg,
	})
	if err != nil {
		return err
	}

	srv.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	tlsCfg, err := sandboxTLS(cfg, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("sandbox listening", zap.String("addr", cfg.Addr), zap.String("client_id", cfg.ClientID))
		errCh <- server.ListenAndServeTLS("", "")
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("sandbox shutting down")

	return server.Shutdown(shutdownCtx)
}

// sandboxTLS loads the server identity, or generates an ephemeral one for
// localhost. With a client CA configured, client certificates are required.
func sandboxTLS(cfg config.SandboxConfig, logger *zap.Logger) (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.TLSCert != "" || cfg.TLSKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("sandbox: load tls key pair: %w", err)
		}

		tlsCfg.Certificates = []tls.Certificate{cert}
	} else {
		m, err := keygen.Generate(keygen.Options{
			Days:        1,
			DNSNames:    []string{"localhost"},
			IPAddresses: []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		})
		if err != nil {
			return nil, err
		}

		logger.Warn("using an ephemeral self-signed server certificate")
		tlsCfg.Certificates = []tls.Certificate{m.TLSCertificate()}
	}

	if cfg.ClientCA != "" {
		pool, err := mtls.LoadCertPool(cfg.ClientCA)
		if err != nil {
			return nil, err
		}

		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}

	return tlsCfg, nil
}
