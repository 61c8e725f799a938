package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/i-melnichenko/consensus-lab/internal/fix/wire"
)

// Logger is the logging interface required by Session.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Publisher hands accepted inbound application messages to the gateway's
// replicated log. Session calls Publish synchronously while holding its lock,
// so a Publisher that blocks stalls the transition; callers that need
// back-pressure handling wrap Publisher themselves (see
// gateway.AsyncPublisher, which queues and drains Publish calls off a
// background worker pool instead of blocking the caller on Raft commit).
type Publisher interface {
	Publish(sessionID int64, seqNo int64, payload []byte) error
}

// Metrics captures FIX-session-level metric sinks. Every method is keyed by
// the counterparty pair, matching how a session is addressed on the wire.
type Metrics interface {
	IncSessionsActive(senderCompID, targetCompID string)
	DecSessionsActive(senderCompID, targetCompID string)
	IncSequenceGap(senderCompID, targetCompID string)
	IncResendRequest(senderCompID, targetCompID string)
	IncHeartbeatTimeout(senderCompID, targetCompID string)
}

type noopMetrics struct{}

func (noopMetrics) IncSessionsActive(string, string)   {}
func (noopMetrics) DecSessionsActive(string, string)   {}
func (noopMetrics) IncSequenceGap(string, string)      {}
func (noopMetrics) IncResendRequest(string, string)    {}
func (noopMetrics) IncHeartbeatTimeout(string, string) {}

// Session is the per-connection FIX logical endpoint. All exported methods
// are synchronous, non-blocking state transitions guarded by mu; the caller
// owns the goroutine and channel plumbing around a Session.
type Session struct {
	mu sync.Mutex

	role         Role
	key          SessionKey
	sessionID    int64
	connectionID string
	cfg          Config
	proxy        proxy
	auth         Authenticator
	publisher    Publisher
	logger       Logger
	metrics      Metrics

	now          func() time.Time
	genTestReqID func() string

	state               State
	activeCounted       bool
	nextSentSeq         int64
	expectedReceivedSeq int64
	heartbeatInterval   time.Duration

	lastReceivedAt time.Time
	lastSentAt     time.Time

	logonDeadline  time.Time
	logoutDeadline time.Time

	pendingTestReqID string
	testReqDeadline  time.Time

	gapResumeSeq int64

	outbox []*wire.Message
}

// Option customizes Session construction; used mainly by tests to inject
// deterministic clocks and id generators.
type Option func(*Session)

// WithClock overrides the time source (default time.Now).
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithTestRequestIDFunc overrides TestReqID generation (default a counter).
func WithTestRequestIDFunc(f func() string) Option {
	return func(s *Session) { s.genTestReqID = f }
}

// WithMetrics installs the metric sink used for session-level observability.
func WithMetrics(m Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// New constructs a Session in CONNECTED state.
func New(role Role, key SessionKey, sessionID int64, beginString, connectionID string, cfg Config, auth Authenticator, publisher Publisher, logger Logger, opts ...Option) *Session {
	s := &Session{
		role:                role,
		key:                 key,
		sessionID:           sessionID,
		connectionID:        connectionID,
		cfg:                 cfg,
		proxy:               proxy{beginString: beginString, senderCompID: key.SenderCompID, targetCompID: key.TargetCompID},
		auth:                auth,
		publisher:           publisher,
		logger:              logger,
		metrics:             noopMetrics{},
		now:                 time.Now,
		state:               Connected,
		nextSentSeq:         1,
		expectedReceivedSeq: 1,
		heartbeatInterval:   cfg.HeartbeatInterval,
	}
	var counter int64
	s.genTestReqID = func() string {
		counter++
		return fmt.Sprintf("TEST-%s-%d", connectionID, counter)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the stable session id from the SessionIds registry.
func (s *Session) SessionID() int64 { return s.sessionID }

// AdminState is a point-in-time snapshot of session state for admin/diagnostic APIs.
type AdminState struct {
	SessionID           int64
	Key                 SessionKey
	ConnectionID        string
	Role                Role
	State               State
	NextSentSeq         int64
	ExpectedReceivedSeq int64
	LastReceivedAt      time.Time
	LastSentAt          time.Time
}

// AdminState returns a read-only snapshot of this session for admin APIs.
func (s *Session) AdminState() AdminState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AdminState{
		SessionID:           s.sessionID,
		Key:                 s.key,
		ConnectionID:        s.connectionID,
		Role:                s.role,
		State:               s.state,
		NextSentSeq:         s.nextSentSeq,
		ExpectedReceivedSeq: s.expectedReceivedSeq,
		LastReceivedAt:      s.lastReceivedAt,
		LastSentAt:          s.lastSentAt,
	}
}

// Drain returns and clears the queued outbound messages, encoded to wire
// bytes ready for the transport to write.
func (s *Session) Drain() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.outbox) == 0 {
		return nil
	}
	out := make([][]byte, len(s.outbox))
	for i, m := range s.outbox {
		out[i] = wire.Encode(m)
	}
	s.outbox = nil
	return out
}

func (s *Session) enqueue(m *wire.Message) {
	s.outbox = append(s.outbox, m)
	s.lastSentAt = s.now()
}

func (s *Session) nextSeq() int64 {
	n := s.nextSentSeq
	s.nextSentSeq++
	return n
}

func (s *Session) sendLogon(resetSeqNum bool) {
	now := s.now()
	s.enqueue(s.proxy.logon(s.nextSeq(), now, s.heartbeatInterval, resetSeqNum))
}

func (s *Session) sendLogout(text string) {
	now := s.now()
	s.enqueue(s.proxy.logout(s.nextSeq(), now, text))
}

func (s *Session) sendHeartbeat(testReqID string) {
	now := s.now()
	s.enqueue(s.proxy.heartbeat(s.nextSeq(), now, testReqID))
}

func (s *Session) sendTestRequest() string {
	id := s.genTestReqID()
	now := s.now()
	s.enqueue(s.proxy.testRequest(s.nextSeq(), now, id))
	return id
}

func (s *Session) sendResendRequest(begin, end int64) {
	now := s.now()
	s.enqueue(s.proxy.resendRequest(s.nextSeq(), now, begin, end))
}

func (s *Session) sendReject(refSeqNum int64, refTagID int, reason int, text string) {
	now := s.now()
	s.enqueue(s.proxy.reject(s.nextSeq(), now, refSeqNum, refTagID, reason, text))
}

// disconnectLocked transitions to DISCONNECTED. Callers must hold mu.
func (s *Session) disconnectLocked(reason string) Outcome {
	if s.state == Disconnected {
		return Disconnect
	}
	s.logger.Warn("fix session disconnecting", "session_id", s.sessionID, "connection_id", s.connectionID, "reason", reason)
	s.state = Disconnected
	if s.activeCounted {
		s.metrics.DecSessionsActive(s.key.SenderCompID, s.key.TargetCompID)
		s.activeCounted = false
	}
	return Disconnect
}

// Disconnect forcibly ends the session without a logout handshake.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectLocked("administrative disconnect")
}

// StartLogout begins the logout handshake: send Logout, await peer Logout or
// the logout timeout.
func (s *Session) StartLogout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return
	}
	s.sendLogout("")
	s.state = AwaitingLogout
	s.logoutDeadline = s.now().Add(s.cfg.LogoutTimeout)
}

// checkSendingTimeLocked enforces the sending-time window invariant shared
// by every inbound admin and application message. msgSeq is the violating
// message's MsgSeqNum, quoted in the session-level Reject sent ahead of the
// Logout/Disconnect.
func (s *Session) checkSendingTimeLocked(msgSeq int64, sendingTime time.Time) Outcome {
	now := s.now()
	delta := now.Sub(sendingTime)
	if delta < 0 {
		delta = -delta
	}
	if delta > s.cfg.SendingTimeWindow {
		s.sendReject(msgSeq, wire.TagSendingTime, wire.SessionRejectReasonSendingTimeAccuracy, "sending time outside tolerance")
		s.sendLogout("sending time outside tolerance")
		return s.disconnectLocked("sending time window violation")
	}
	return Accept
}
