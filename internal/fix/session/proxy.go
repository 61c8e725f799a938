package session

import (
	"strconv"
	"time"

	"github.com/i-melnichenko/consensus-lab/internal/fix/wire"
)

// proxy encodes outbound FIX administrative messages. Every method is a pure
// function of its inputs: given the same header fields, it always produces
// the same wire.Message. It holds no session state of its own.
type proxy struct {
	beginString  string
	senderCompID string
	targetCompID string
}

func (p proxy) header(msgType string, seqNo int64, sendingTime time.Time) *wire.Message {
	m := wire.NewMessage(p.beginString, msgType)
	m.Set(wire.TagSenderCompID, p.senderCompID)
	m.Set(wire.TagTargetCompID, p.targetCompID)
	m.SetInt(wire.TagMsgSeqNum, int(seqNo))
	m.Set(wire.TagSendingTime, sendingTime.UTC().Format(wire.SendingTimeLayout))
	return m
}

func (p proxy) logon(seqNo int64, now time.Time, heartbeatInterval time.Duration, resetSeqNum bool) *wire.Message {
	m := p.header(wire.MsgTypeLogon, seqNo, now)
	m.SetInt(wire.TagEncryptMethod, 0)
	m.SetInt(wire.TagHeartBtInt, int(heartbeatInterval.Seconds()))
	if resetSeqNum {
		m.Set(wire.TagResetSeqNumFlag, "Y")
	}
	return m
}

func (p proxy) logout(seqNo int64, now time.Time, text string) *wire.Message {
	m := p.header(wire.MsgTypeLogout, seqNo, now)
	if text != "" {
		m.Set(wire.TagText, text)
	}
	return m
}

func (p proxy) heartbeat(seqNo int64, now time.Time, testReqID string) *wire.Message {
	m := p.header(wire.MsgTypeHeartbeat, seqNo, now)
	if testReqID != "" {
		m.Set(wire.TagTestReqID, testReqID)
	}
	return m
}

func (p proxy) testRequest(seqNo int64, now time.Time, testReqID string) *wire.Message {
	m := p.header(wire.MsgTypeTestRequest, seqNo, now)
	m.Set(wire.TagTestReqID, testReqID)
	return m
}

func (p proxy) resendRequest(seqNo int64, now time.Time, begin, end int64) *wire.Message {
	m := p.header(wire.MsgTypeResendRequest, seqNo, now)
	m.SetInt(wire.TagBeginSeqNo, int(begin))
	m.SetInt(wire.TagEndSeqNo, int(end))
	return m
}

func (p proxy) sequenceReset(seqNo int64, now time.Time, newSeqNo int64, gapFill bool) *wire.Message {
	m := p.header(wire.MsgTypeSequenceReset, seqNo, now)
	m.SetInt(wire.TagNewSeqNo, int(newSeqNo))
	if gapFill {
		m.Set(wire.TagGapFillFlag, "Y")
	}
	return m
}

func (p proxy) reject(seqNo int64, now time.Time, refSeqNum int64, refTagID int, reason int, text string) *wire.Message {
	m := p.header(wire.MsgTypeReject, seqNo, now)
	m.SetInt(wire.TagRefSeqNum, int(refSeqNum))
	if refTagID != 0 {
		m.SetInt(wire.TagRefTagID, refTagID)
	}
	m.Set(wire.TagSessionRejectReason, strconv.Itoa(reason))
	if text != "" {
		m.Set(wire.TagText, text)
	}
	return m
}
