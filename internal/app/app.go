// Package app wires the consensus node, the FIX gateway publication, and the
// transports (FIX sessions, Raft peer RPCs, admin/gateway gRPC) together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/i-melnichenko/consensus-lab/internal/consensus"
	"github.com/i-melnichenko/consensus-lab/internal/gateway"
	admingrpc "github.com/i-melnichenko/consensus-lab/internal/transport/grpc/admin"
	gatewaygrpc "github.com/i-melnichenko/consensus-lab/internal/transport/grpc/gateway"
	raftgrpc "github.com/i-melnichenko/consensus-lab/internal/transport/grpc/raft"
)

// Logger is the logging interface required by App.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// FIXRunner drives one FIX transport endpoint (an Acceptor listening for
// inbound counterparties, or an Initiator dialing one) until ctx is
// cancelled. *transport.Acceptor and *transport.Initiator both satisfy it.
type FIXRunner interface {
	Run(ctx context.Context) error
}

// App wires consensus, the FIX gateway publication, and the gRPC/FIX
// transports into a runnable node process. All dependencies are injected;
// App does not create transport connections itself.
type App struct {
	config     Config
	logger     Logger
	consensus  consensus.Consensus
	gateway    *gateway.Publication
	raftSrv    raftgrpc.RaftServiceServer
	adminSrv   admingrpc.AdminServiceServer
	gatewaySrv gatewaygrpc.GatewayServiceServer
	fixRunners []FIXRunner
}

// New validates dependencies and constructs a runnable application.
func New(
	cfg Config,
	logger Logger,
	c consensus.Consensus,
	pub *gateway.Publication,
	raftSrv raftgrpc.RaftServiceServer,
	adminSrv admingrpc.AdminServiceServer,
	fixRunners ...FIXRunner,
) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, fmt.Errorf("app: nil logger")
	}
	if c == nil {
		return nil, fmt.Errorf("app: nil consensus")
	}
	if pub == nil {
		return nil, fmt.Errorf("app: nil gateway publication")
	}
	if raftSrv == nil {
		return nil, fmt.Errorf("app: nil raft server")
	}
	if adminSrv == nil {
		return nil, fmt.Errorf("app: nil admin server")
	}
	return &App{
		config:     cfg,
		logger:     logger,
		consensus:  c,
		gateway:    pub,
		raftSrv:    raftSrv,
		adminSrv:   adminSrv,
		gatewaySrv: gatewaygrpc.NewServer(pub),
		fixRunners: fixRunners,
	}, nil
}

// Stop stops the underlying consensus engine. Transports shut down when
// Run's context is cancelled.
func (a *App) Stop() {
	a.consensus.Stop()
}

// Run starts consensus, the three gRPC transports (gateway, admin,
// consensus peer RPCs), every FIX transport endpoint, and the observability
// sidecars. It blocks until ctx is cancelled or a component fails fatally.
func (a *App) Run(ctx context.Context) error {
	a.consensus.Run(ctx)

	shutdownTracing, err := a.initTracing(ctx)
	if err != nil {
		return err
	}

	gatewayLis, err := net.Listen("tcp", a.config.GatewayGRPCAddr)
	if err != nil {
		return fmt.Errorf("listen gateway grpc %s: %w", a.config.GatewayGRPCAddr, err)
	}
	adminLis, err := net.Listen("tcp", a.config.AdminGRPCAddr)
	if err != nil {
		return fmt.Errorf("listen admin grpc %s: %w", a.config.AdminGRPCAddr, err)
	}
	consensusLis, err := net.Listen("tcp", a.config.ConsensusGRPCAddr)
	if err != nil {
		return fmt.Errorf("listen consensus grpc %s: %w", a.config.ConsensusGRPCAddr, err)
	}

	metricsSrv, metricsLis, err := a.metricsServer()
	if err != nil {
		return err
	}
	pprofSrv, pprofLis, err := a.pprofServer()
	if err != nil {
		return err
	}

	a.logger.Info(
		"node started",
		"node_id", a.config.NodeID,
		"consensus_type", a.config.ConsensusType,
		"gateway_grpc_addr", a.config.GatewayGRPCAddr,
		"admin_grpc_addr", a.config.AdminGRPCAddr,
		"consensus_grpc_addr", a.config.ConsensusGRPCAddr,
		"fix_listen_addr", a.config.FIXListenAddr,
	)

	runErr := a.serve(ctx, gatewayLis, adminLis, consensusLis, metricsSrv, metricsLis, pprofSrv, pprofLis)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		a.logger.Warn("tracing shutdown failed", "error", err)
	}
	return runErr
}

func (a *App) serve(
	ctx context.Context,
	gatewayLis, adminLis, consensusLis net.Listener,
	metricsSrv *http.Server, metricsLis net.Listener,
	pprofSrv *http.Server, pprofLis net.Listener,
) error {
	gatewayServer := grpc.NewServer()
	gatewaygrpc.RegisterGatewayServiceServer(gatewayServer, a.gatewaySrv)
	reflection.Register(gatewayServer)

	adminServer := grpc.NewServer()
	admingrpc.RegisterAdminServiceServer(adminServer, a.adminSrv)
	reflection.Register(adminServer)

	consensusServer := grpc.NewServer()
	raftgrpc.RegisterRaftServiceServer(consensusServer, a.raftSrv)
	reflection.Register(consensusServer)

	errCh := make(chan error, 5+len(a.fixRunners))

	go func() {
		if err := a.gateway.RunApplyLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("gateway apply loop: %w", err)
		}
	}()
	go serveGRPC(gatewayServer, gatewayLis, "gateway", errCh)
	go serveGRPC(adminServer, adminLis, "admin", errCh)
	go serveGRPC(consensusServer, consensusLis, "consensus", errCh)

	if metricsSrv != nil {
		go func() {
			if err := metricsSrv.Serve(metricsLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics serve: %w", err)
			}
		}()
	}
	if pprofSrv != nil {
		go func() {
			if err := pprofSrv.Serve(pprofLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("pprof serve: %w", err)
			}
		}()
	}

	for _, r := range a.fixRunners {
		r := r
		go func() {
			if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("fix runner: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		gatewayServer.GracefulStop()
		adminServer.GracefulStop()
		consensusServer.GracefulStop()
		shutdownHTTPServer(metricsSrv, a.logger, "metrics server")
		shutdownHTTPServer(pprofSrv, a.logger, "pprof server")
		return nil
	case err := <-errCh:
		gatewayServer.Stop()
		adminServer.Stop()
		consensusServer.Stop()
		shutdownHTTPServer(metricsSrv, a.logger, "metrics server")
		shutdownHTTPServer(pprofSrv, a.logger, "pprof server")
		return err
	}
}

func serveGRPC(server *grpc.Server, lis net.Listener, name string, errCh chan<- error) {
	if err := server.Serve(lis); err != nil {
		errCh <- fmt.Errorf("%s grpc serve: %w", name, err)
	}
}
