// Package main implements the node process that runs Raft replication, the
// FIX gateway publication, and the FIX/gRPC transports.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	apppkg "github.com/i-melnichenko/consensus-lab/internal/app"
	"github.com/i-melnichenko/consensus-lab/internal/consensus"
	raftconsensus "github.com/i-melnichenko/consensus-lab/internal/consensus/raft"
	"github.com/i-melnichenko/consensus-lab/internal/fix/session"
	fixtransport "github.com/i-melnichenko/consensus-lab/internal/fix/transport"
	"github.com/i-melnichenko/consensus-lab/internal/gateway"
	"github.com/i-melnichenko/consensus-lab/internal/observability/metrics"
	"github.com/i-melnichenko/consensus-lab/internal/sessionid"
	admingrpc "github.com/i-melnichenko/consensus-lab/internal/transport/grpc/admin"
	raftgrpc "github.com/i-melnichenko/consensus-lab/internal/transport/grpc/raft"
)

// beginString is the FIX session-protocol version this gateway speaks.
const beginString = "FIXT.1.1"

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "node: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := apppkg.LoadConfigFromEnv()
	if err != nil {
		return err
	}

	slog.SetDefault(newLogger(cfg.LogLevel))
	logger := slog.Default()
	tracer := otel.Tracer("consensus-lab/node")

	peerAddrs, err := cfg.PeerAddrMap()
	if err != nil {
		return err
	}
	delete(peerAddrs, cfg.NodeID) // exclude self if listed

	peers, err := raftgrpc.DialPeers(
		peerAddrs,
		tracer,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return fmt.Errorf("dial peers: %w", err)
	}

	registry, err := sessionid.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open session registry: %w", err)
	}

	promMetrics, err := metrics.NewPrometheus(nil)
	if err != nil {
		return fmt.Errorf("init prometheus metrics: %w", err)
	}

	applyCh := make(chan consensus.ApplyMsg, 256)
	storage := raftconsensus.NewJSONStorage(cfg.DataDir)

	node, err := raftconsensus.NewNode(cfg.NodeID, peers, applyCh, storage, logger)
	if err != nil {
		for _, p := range peers {
			_ = p.Close()
		}
		return fmt.Errorf("new raft node: %w", err)
	}
	node.SetElectionTimeoutRange(cfg.ElectionTimeoutMin, cfg.ElectionTimeoutMax)
	node.SetHeartbeatInterval(cfg.RaftHeartbeat)
	node.SetTracer(tracer)
	node.SetMetrics(promMetrics)
	node.SetSessionIDAllocator(func(term int64) int64 {
		id, err := registry.LookupOrAllocate(sessionid.LeaderEpochKey(cfg.NodeID, term))
		if err != nil {
			logger.Error("leader session id allocation failed", "term", term, "err", err)
			return term
		}
		return id
	})

	pub := gateway.New(node, logger, tracer, promMetrics, cfg.NodeID)
	pub.SetPublishTimeout(cfg.PublishTimeout)
	asyncPub := gateway.NewAsyncPublisher(pub, logger, cfg.PublishQueueDepth, cfg.PublishQueueWorkers)
	defer asyncPub.Close()

	sessionManager := fixtransport.NewManager()
	sessionCfg := session.DefaultConfig()
	sessionCfg.HeartbeatInterval = cfg.HeartbeatInterval
	sessionCfg.SendingTimeWindow = cfg.SendingTimeWindow

	acceptor := fixtransport.NewAcceptor(
		cfg.FIXListenAddr,
		beginString,
		sessionCfg,
		session.AuthenticatorFunc(func(session.SessionKey, time.Duration) error { return nil }),
		asyncPub,
		registry,
		sessionManager,
		logger,
		fixtransport.WithAcceptorMetrics(promMetrics),
		fixtransport.WithAcceptorTracer(tracer),
	)

	raftSrv := raftgrpc.NewServer(node, tracer)
	adminSrv := admingrpc.NewServer(cfg.NodeID, string(cfg.ConsensusType), peerAddrs, node, sessionManager)

	app, err := apppkg.New(cfg, logger, node, pub, raftSrv, adminSrv, acceptor)
	if err != nil {
		node.Stop()
		return err
	}
	defer app.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return app.Run(ctx)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
