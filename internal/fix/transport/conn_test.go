package transport

import (
	"bufio"
	"bytes"
	"testing"
	"time"

	"github.com/i-melnichenko/consensus-lab/internal/fix/session"
	"github.com/i-melnichenko/consensus-lab/internal/fix/wire"
)

type fakeLogger struct{}

func (fakeLogger) Debug(string, ...any) {}
func (fakeLogger) Info(string, ...any)  {}
func (fakeLogger) Warn(string, ...any)  {}
func (fakeLogger) Error(string, ...any) {}

type fakePublisher struct {
	published []int64
}

func (p *fakePublisher) Publish(_ int64, seqNo int64, _ []byte) error {
	p.published = append(p.published, seqNo)
	return nil
}

func newTestSession(pub session.Publisher) *session.Session {
	key := session.SessionKey{SenderCompID: "GATEWAY", TargetCompID: "COUNTERPARTY"}
	return session.New(session.Acceptor, key, 1, "FIXT.1.1", "conn-1", session.DefaultConfig(), nil, pub, fakeLogger{})
}

func buildLogon(seq int) []byte {
	m := wire.NewMessage("FIXT.1.1", wire.MsgTypeLogon)
	m.Set(wire.TagSenderCompID, "COUNTERPARTY")
	m.Set(wire.TagTargetCompID, "GATEWAY")
	m.SetInt(wire.TagMsgSeqNum, seq)
	m.Set(wire.TagSendingTime, time.Now().UTC().Format(wire.SendingTimeLayout))
	m.SetInt(wire.TagHeartBtInt, 30)
	m.Set(wire.TagResetSeqNumFlag, "Y")
	return wire.Encode(m)
}

func buildApplicationMessage(seq int) []byte {
	m := wire.NewMessage("FIXT.1.1", "D")
	m.Set(wire.TagSenderCompID, "COUNTERPARTY")
	m.Set(wire.TagTargetCompID, "GATEWAY")
	m.SetInt(wire.TagMsgSeqNum, seq)
	m.Set(wire.TagSendingTime, time.Now().UTC().Format(wire.SendingTimeLayout))
	return wire.Encode(m)
}

func TestConn_DispatchLogonActivatesSession(t *testing.T) {
	sess := newTestSession(nil)
	conn := &Conn{session: sess, logger: fakeLogger{}}

	r := bufio.NewReader(bytes.NewReader(buildLogon(1)))
	msg, err := wire.Decode(r)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	conn.dispatch(msg)

	if sess.State() != session.Active {
		t.Fatalf("want ACTIVE, got %v", sess.State())
	}
}

func TestConn_DispatchApplicationMessagePublishes(t *testing.T) {
	pub := &fakePublisher{}
	sess := newTestSession(pub)
	conn := &Conn{session: sess, logger: fakeLogger{}}

	logon, _ := wire.Decode(bufio.NewReader(bytes.NewReader(buildLogon(1))))
	conn.dispatch(logon)

	app, _ := wire.Decode(bufio.NewReader(bytes.NewReader(buildApplicationMessage(2))))
	conn.dispatch(app)

	if len(pub.published) != 1 || pub.published[0] != 2 {
		t.Fatalf("want published seq [2], got %v", pub.published)
	}
}
