package transport

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/i-melnichenko/consensus-lab/internal/fix/session"
	"github.com/i-melnichenko/consensus-lab/internal/fix/wire"
)

// Conn drives one TCP connection's read/write pump: decoding inbound wire
// messages, dispatching them into the bound Session's state machine, and
// flushing Session.Drain() back to the socket after every dispatch and every
// Poll tick.
type Conn struct {
	nc        net.Conn
	r         *bufio.Reader
	session   *session.Session
	logger    Logger
	tracer    oteltrace.Tracer
	pollEvery time.Duration

	ctx     context.Context
	writeMu sync.Mutex
}

// NewConn builds a Conn pumping nc for s. r lets a caller that already
// peeked bytes off nc (e.g. the Acceptor reading the initial Logon) hand
// over its buffered reader instead of losing read-ahead data to a fresh
// one; pass nil to have Conn allocate its own. pollEvery defaults to 100ms,
// matching the Poll contract ("driven at least every 100ms").
func NewConn(nc net.Conn, r *bufio.Reader, s *session.Session, logger Logger, pollEvery time.Duration, opts ...ConnOption) *Conn {
	if r == nil {
		r = bufio.NewReader(nc)
	}
	if pollEvery <= 0 {
		pollEvery = 100 * time.Millisecond
	}
	c := &Conn{nc: nc, r: r, session: s, logger: logger, pollEvery: pollEvery, ctx: context.Background()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConnOption customizes Conn construction.
type ConnOption func(*Conn)

// WithConnTracer installs the tracer used to span each dispatched message.
func WithConnTracer(t oteltrace.Tracer) ConnOption {
	return func(c *Conn) { c.tracer = t }
}

// Serve reads and dispatches messages from nc until the connection errs out,
// the session disconnects, or ctx is cancelled. It blocks until then.
func (c *Conn) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.ctx = ctx

	readErrCh := make(chan error, 1)
	go c.readLoop(readErrCh)

	ticker := time.NewTicker(c.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.nc.Close()
			return ctx.Err()
		case err := <-readErrCh:
			_ = c.nc.Close()
			return err
		case <-ticker.C:
			c.session.Poll()
			c.flush()
			if c.session.State() == session.Disconnected {
				_ = c.nc.Close()
				return nil
			}
		}
	}
}

func (c *Conn) readLoop(errCh chan<- error) {
	for {
		msg, err := wire.Decode(c.r)
		if err != nil {
			errCh <- err
			return
		}
		c.dispatch(msg)
		c.flush()
		if c.session.State() == session.Disconnected {
			errCh <- nil
			return
		}
	}
}

func (c *Conn) flush() {
	batch := c.session.Drain()
	if len(batch) == 0 {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	for _, b := range batch {
		if _, err := c.nc.Write(b); err != nil {
			c.logger.Warn("fix conn write failed", "err", err)
			return
		}
	}
}

// dispatch routes a decoded message to the Session method matching its
// MsgType, parsing the admin fields each handler needs from the wire tags.
func (c *Conn) dispatch(m *wire.Message) {
	if c.tracer != nil {
		var span oteltrace.Span
		_, span = c.tracer.Start(c.ctx, "fix.dispatch", oteltrace.WithAttributes(
			attribute.String("fix.msg_type", m.MsgType()),
			attribute.Int64("fix.session_id", c.session.SessionID()),
		))
		defer span.End()
	}

	seqNo, _ := m.GetInt(wire.TagMsgSeqNum)
	sendingTime := parseSendingTime(m)
	possDup, _ := m.Get(wire.TagPossDupFlag)

	switch m.MsgType() {
	case wire.MsgTypeLogon:
		heartbeatSecs, _ := m.GetInt(wire.TagHeartBtInt)
		resetFlag, _ := m.Get(wire.TagResetSeqNumFlag)
		c.session.OnLogon(time.Duration(heartbeatSecs)*time.Second, int64(seqNo), sendingTime, resetFlag == "Y", possDup == "Y")

	case wire.MsgTypeLogout:
		c.session.OnLogout(int64(seqNo))

	case wire.MsgTypeHeartbeat:
		testReqID, _ := m.Get(wire.TagTestReqID)
		c.session.OnHeartbeat(testReqID, int64(seqNo))

	case wire.MsgTypeTestRequest:
		testReqID, _ := m.Get(wire.TagTestReqID)
		c.session.OnTestRequest(testReqID, int64(seqNo))

	case wire.MsgTypeResendRequest:
		begin, _ := m.GetInt(wire.TagBeginSeqNo)
		end, _ := m.GetInt(wire.TagEndSeqNo)
		c.session.OnResendRequest(int64(begin), int64(end), int64(seqNo))

	case wire.MsgTypeReject:
		c.session.OnReject(int64(seqNo))

	case wire.MsgTypeSequenceReset:
		newSeqNo, _ := m.GetInt(wire.TagNewSeqNo)
		gapFillFlag, _ := m.Get(wire.TagGapFillFlag)
		c.session.OnSequenceReset(int64(newSeqNo), gapFillFlag == "Y")

	default:
		c.session.OnMessage(int64(seqNo), sendingTime, possDup == "Y", wire.Encode(m))
	}
}

func parseSendingTime(m *wire.Message) time.Time {
	v, ok := m.Get(wire.TagSendingTime)
	if !ok {
		return time.Now().UTC()
	}
	t, err := time.Parse(wire.SendingTimeLayout, v)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}
