package api

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"slotbook/internal/config"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

const defaultShutdownGrace = 10 * time.Second

// GRPCServer exposes the availability service to widgets and partner integrations.
type GRPCServer struct {
	server   *grpc.Server
	listener net.Listener
	grace    time.Duration
	log      zerolog.Logger
}

func NewGRPCServer(cfg *config.APIConfig, booking BookingAPI, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	srv, err := newGRPCServer(cfg, booking, logger, lis)
	if err != nil {
		_ = lis.Close()
		return nil, err
	}
	return srv, nil
}

func newGRPCServer(cfg *config.APIConfig, booking BookingAPI, logger *zerolog.Logger, lis net.Listener) (*GRPCServer, error) {
	opts, err := grpcServerOptions(cfg, logger)
	if err != nil {
		return nil, err
	}

	server := grpc.NewServer(opts...)
	server.RegisterService(&AvailabilityServiceDesc, NewAvailabilityService(booking))
	if cfg.GRPC.Reflection {
		reflection.Register(server)
	}

	grace := time.Duration(cfg.GRPC.ShutdownGraceSeconds) * time.Second
	if grace <= 0 {
		grace = defaultShutdownGrace
	}

	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "grpc").Logger()
	}

	return &GRPCServer{server: server, listener: lis, grace: grace, log: log}, nil
}

func grpcServerOptions(cfg *config.APIConfig, logger *zerolog.Logger) ([]grpc.ServerOption, error) {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			LoggingUnaryInterceptor(logger),
			NewAuthInterceptor(cfg).Unary(),
		)),
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	}

	if n := cfg.GRPC.MaxRecvMsgBytes; n > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(n))
	}
	if idle := cfg.GRPC.MaxConnectionIdleSeconds; idle > 0 {
		opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: time.Duration(idle) * time.Second,
		}))
	}

	if cfg.GRPC.TLS.Enabled {
		tlsCfg, err := buildTLSConfig(cfg.GRPC.TLS)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}
	return opts, nil
}

func buildTLSConfig(cfg config.APITLSConfig) (*tls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, errors.New("grpc tls: cert_file and key_file are required")
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("grpc tls: load keypair: %w", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}

	if !cfg.RequireClientCert {
		return tlsCfg, nil
	}
	pool, err := clientCAPool(cfg.ClientCAFile)
	if err != nil {
		return nil, err
	}
	tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	tlsCfg.ClientCAs = pool
	return tlsCfg, nil
}

func clientCAPool(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, errors.New("grpc tls: client_ca_file is required with require_client_cert")
	}
	caPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("grpc tls: read client_ca_file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("grpc tls: no certificates in %s", path)
	}
	return pool, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Str("service", availabilityServiceName).Msg("gRPC API listening")
	return s.server.Serve(s.listener)
}

// Shutdown drains in-flight calls, forcing a stop after the grace period or when ctx ends.
func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(s.grace)
	defer timer.Stop()

	select {
	case <-done:
		return
	case <-ctx.Done():
	case <-timer.C:
	}
	s.log.Warn().Dur("grace", s.grace).Msg("gRPC drain incomplete, forcing stop")
	s.server.Stop()
}
