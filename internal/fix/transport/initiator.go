package transport

import (
	"context"
	"net"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/i-melnichenko/consensus-lab/internal/fix/session"
	"github.com/i-melnichenko/consensus-lab/internal/sessionid"
)

// Initiator dials a FIX acceptor and drives a long-lived Session over the
// connection, reconnecting with a fixed delay whenever the connection drops.
type Initiator struct {
	targetAddr     string
	beginString    string
	key            session.SessionKey
	cfg            session.Config
	publisher      session.Publisher
	registry       *sessionid.Registry
	manager        *Manager
	logger         Logger
	metrics        session.Metrics
	tracer         oteltrace.Tracer
	pollEvery      time.Duration
	reconnectDelay time.Duration
}

// NewInitiator builds an Initiator dialing targetAddr as key.
func NewInitiator(
	targetAddr, beginString string,
	key session.SessionKey,
	cfg session.Config,
	publisher session.Publisher,
	registry *sessionid.Registry,
	manager *Manager,
	logger Logger,
	opts ...InitiatorOption,
) *Initiator {
	in := &Initiator{
		targetAddr:     targetAddr,
		beginString:    beginString,
		key:            key,
		cfg:            cfg,
		publisher:      publisher,
		registry:       registry,
		manager:        manager,
		logger:         logger,
		pollEvery:      100 * time.Millisecond,
		reconnectDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// InitiatorOption customizes Initiator construction.
type InitiatorOption func(*Initiator)

// WithInitiatorMetrics installs the per-session metric sink used for every
// Session this Initiator constructs.
func WithInitiatorMetrics(m session.Metrics) InitiatorOption {
	return func(in *Initiator) { in.metrics = m }
}

// WithInitiatorTracer installs the tracer used to span every dispatched
// message on every Conn this Initiator constructs.
func WithInitiatorTracer(t oteltrace.Tracer) InitiatorOption {
	return func(in *Initiator) { in.tracer = t }
}

// Run dials and serves targetAddr, reconnecting until ctx is cancelled.
func (in *Initiator) Run(ctx context.Context) error {
	for {
		if err := in.runOnce(ctx); err != nil {
			in.logger.Warn("fix initiator connection ended", "target", in.targetAddr, "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(in.reconnectDelay):
		}
	}
}

func (in *Initiator) runOnce(ctx context.Context) error {
	nc, err := (&net.Dialer{}).DialContext(ctx, "tcp", in.targetAddr)
	if err != nil {
		return err
	}

	sessionID, err := in.registry.LookupOrAllocate(sessionid.FIXSessionKey(in.key.SenderCompID, in.key.TargetCompID))
	if err != nil {
		_ = nc.Close()
		return err
	}

	sessOpts := []session.Option{}
	if in.metrics != nil {
		sessOpts = append(sessOpts, session.WithMetrics(in.metrics))
	}
	sess := session.New(session.Initiator, in.key, sessionID, in.beginString, in.targetAddr, in.cfg, nil, in.publisher, in.logger, sessOpts...)
	in.manager.register(sess)
	defer in.manager.unregister(sessionID)

	connOpts := []ConnOption{}
	if in.tracer != nil {
		connOpts = append(connOpts, WithConnTracer(in.tracer))
	}
	conn := NewConn(nc, nil, sess, in.logger, in.pollEvery, connOpts...)
	return conn.Serve(ctx)
}
