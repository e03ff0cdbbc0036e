package grpc_server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/okieraised/power-alert-relay/internal/config"
	"github.com/okieraised/power-alert-relay/internal/constants"
	"github.com/okieraised/power-alert-relay/internal/infrastructure/log"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
)

const (
	maxMessageSize = 1 << 20
	stopTimeout    = 3 * time.Second
)

func recoverPanic(p any) error {
	log.Component("grpc").Error(fmt.Sprintf("panic recovered: %v", p))
	return status.Error(codes.Internal, "internal server error")
}

func getGRPCPort() int {
	port := viper.GetInt(config.RelayGRPCPort)
	if port <= 0 {
		return constants.RelayDefaultGRPCPort
	}
	return port
}

// serverTLSConfig returns nil when no certificate pair is configured. A client CA turns on mutual TLS.
func serverTLSConfig(certFile, keyFile, clientCAFile string) (*tls.Config, error) {
	if certFile == "" || keyFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load server cert file")
	}
	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}
	if clientCAFile == "" {
		return cfg, nil
	}
	caBytes, err := os.ReadFile(clientCAFile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read client CA file")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, errors.New("failed to append client CA to pool")
	}
	cfg.ClientCAs = pool
	cfg.ClientAuth = tls.RequireAndVerifyClientCert
	return cfg, nil
}

func serverOptions(tlsCfg *tls.Config) []grpc.ServerOption {
	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxMessageSize),
		grpc.MaxSendMsgSize(maxMessageSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      2 * time.Hour,
			MaxConnectionAgeGrace: 30 * time.Second,
			Time:                  2 * time.Minute,
			Timeout:               20 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             time.Minute,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(grpc_recovery.UnaryServerInterceptor(grpc_recovery.WithRecoveryHandler(recoverPanic))),
		grpc.ChainStreamInterceptor(grpc_recovery.StreamServerInterceptor(grpc_recovery.WithRecoveryHandler(recoverPanic))),
	}
	if tlsCfg != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsCfg)))
	}
	return opts
}

// newHealthServer builds a gRPC server exposing only the health service.
func newHealthServer(tlsCfg *tls.Config) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(serverOptions(tlsCfg)...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

func stopWithin(srv *grpc.Server, d time.Duration) {
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stopped:
	case <-t.C:
		log.Default().Info("Graceful stop timed out, forcing shutdown")
		srv.Stop()
	}
}

// NewGRPCServer serves the standard gRPC health protocol, with the serving
// status following probe. It blocks until ctx is done, then graceful-stops.
func NewGRPCServer(ctx context.Context, probe ReadinessProbe) error {
	tlsCfg, err := serverTLSConfig(
		viper.GetString(config.RelayTLSCertFile),
		viper.GetString(config.RelayTLSKeyFile),
		viper.GetString(config.RelayTLSClientCAFile),
	)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", getGRPCPort()))
	if err != nil {
		wErr := errors.Wrap(err, "failed to listen")
		log.Default().Error(wErr.Error())
		return wErr
	}

	srv, hs := newHealthServer(tlsCfg)
	go watchServingStatus(ctx, hs, probe, healthProbeInterval)

	errCh := make(chan error, 1)
	go func() {
		log.Default().Info(fmt.Sprintf("gRPC health server listening on %s", lis.Addr()))
		errCh <- srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		log.Default().Info("Shutting down gRPC server")
		stopWithin(srv, stopTimeout)
		return nil
	case err = <-errCh:
		return errors.Wrap(err, "gRPC server stopped serving")
	}
}
