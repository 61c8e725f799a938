package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/i-melnichenko/consensus-lab/internal/fix/session"
	"github.com/i-melnichenko/consensus-lab/internal/fix/wire"
	"github.com/i-melnichenko/consensus-lab/internal/sessionid"
)

// Acceptor listens for inbound FIX connections, resolves each connecting
// counterparty's SessionKey from its initial Logon, and hands the connection
// off to a Conn bound to an acceptor-role Session.
type Acceptor struct {
	listenAddr  string
	beginString string
	cfg         session.Config
	auth        session.Authenticator
	publisher   session.Publisher
	registry    *sessionid.Registry
	manager     *Manager
	logger      Logger
	metrics     session.Metrics
	tracer      oteltrace.Tracer
	pollEvery   time.Duration

	mu      sync.Mutex
	connSeq int64
}

// NewAcceptor builds an Acceptor listening on listenAddr.
func NewAcceptor(
	listenAddr, beginString string,
	cfg session.Config,
	auth session.Authenticator,
	publisher session.Publisher,
	registry *sessionid.Registry,
	manager *Manager,
	logger Logger,
	opts ...AcceptorOption,
) *Acceptor {
	a := &Acceptor{
		listenAddr:  listenAddr,
		beginString: beginString,
		cfg:         cfg,
		auth:        auth,
		publisher:   publisher,
		registry:    registry,
		manager:     manager,
		logger:      logger,
		pollEvery:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AcceptorOption customizes Acceptor construction.
type AcceptorOption func(*Acceptor)

// WithAcceptorMetrics installs the per-session metric sink used for every
// Session this Acceptor constructs.
func WithAcceptorMetrics(m session.Metrics) AcceptorOption {
	return func(a *Acceptor) { a.metrics = m }
}

// WithAcceptorTracer installs the tracer used to span every dispatched
// message on every Conn this Acceptor constructs.
func WithAcceptorTracer(t oteltrace.Tracer) AcceptorOption {
	return func(a *Acceptor) { a.tracer = t }
}

// Run listens and serves inbound connections until ctx is cancelled.
func (a *Acceptor) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.listenAddr)
	if err != nil {
		return fmt.Errorf("fix acceptor: listen %s: %w", a.listenAddr, err)
	}
	a.logger.Info("fix acceptor listening", "addr", a.listenAddr)

	go func() {
		<-ctx.Done()
		_ = lis.Close()
	}()

	for {
		nc, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("fix acceptor: accept: %w", err)
			}
		}
		go a.handle(ctx, nc)
	}
}

func (a *Acceptor) nextConnectionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connSeq++
	return fmt.Sprintf("acc-%d", a.connSeq)
}

// handle authenticates the connection's SessionKey off its initial Logon,
// then runs the Session/Conn pump for the lifetime of the connection.
func (a *Acceptor) handle(ctx context.Context, nc net.Conn) {
	r := bufio.NewReader(nc)
	first, err := wire.Decode(r)
	if err != nil {
		a.logger.Warn("fix acceptor: initial decode failed", "remote", nc.RemoteAddr(), "err", err)
		_ = nc.Close()
		return
	}
	if first.MsgType() != wire.MsgTypeLogon {
		a.logger.Warn("fix acceptor: first message was not Logon", "remote", nc.RemoteAddr(), "msg_type", first.MsgType())
		_ = nc.Close()
		return
	}

	theirSender, _ := first.Get(wire.TagSenderCompID)
	theirTarget, _ := first.Get(wire.TagTargetCompID)
	// A Logon's SenderCompID/TargetCompID are from the connecting peer's
	// perspective; the local SessionKey swaps them to our own.
	key := session.SessionKey{SenderCompID: theirTarget, TargetCompID: theirSender}

	sessionID, err := a.registry.LookupOrAllocate(sessionid.FIXSessionKey(key.SenderCompID, key.TargetCompID))
	if err != nil {
		a.logger.Error("fix acceptor: session id allocation failed", "err", err)
		_ = nc.Close()
		return
	}

	sessOpts := []session.Option{}
	if a.metrics != nil {
		sessOpts = append(sessOpts, session.WithMetrics(a.metrics))
	}
	sess := session.New(session.Acceptor, key, sessionID, a.beginString, a.nextConnectionID(), a.cfg, a.auth, a.publisher, a.logger, sessOpts...)
	a.manager.register(sess)
	defer a.manager.unregister(sessionID)

	connOpts := []ConnOption{}
	if a.tracer != nil {
		connOpts = append(connOpts, WithConnTracer(a.tracer))
	}
	conn := NewConn(nc, r, sess, a.logger, a.pollEvery, connOpts...)
	conn.dispatch(first)
	conn.flush()
	if sess.State() == session.Disconnected {
		_ = nc.Close()
		return
	}

	if err := conn.Serve(ctx); err != nil {
		a.logger.Debug("fix acceptor connection ended", "session_id", sessionID, "err", err)
	}
}
