package session

import (
	"time"

	"github.com/i-melnichenko/consensus-lab/internal/fix/wire"
)

// OnLogon handles an inbound Logon, branching on role exactly as Design
// Notes mandate: a tagged variant dispatch, not a subclass hierarchy.
func (s *Session) OnLogon(heartbeatInterval time.Duration, seqNo int64, sendingTime time.Time, resetSeqNum bool, possDup bool) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if outcome := s.checkSendingTimeLocked(seqNo, sendingTime); outcome != Accept {
		return outcome
	}

	if resetSeqNum {
		s.expectedReceivedSeq = seqNo
	}

	switch s.role {
	case Initiator:
		return s.onLogonInitiatorLocked(heartbeatInterval, seqNo, possDup)
	case Acceptor:
		return s.onLogonAcceptorLocked(heartbeatInterval, seqNo, possDup)
	default:
		return s.disconnectLocked("unknown session role")
	}
}

// onLogonInitiatorLocked implements the spec's faithfully-kept quirk: only a
// Logon arriving in SENT_LOGON with msgSeq == expected is treated as the
// logon handshake's completion. A Logon received with any other sequence
// number (including while already ACTIVE, e.g. the peer re-logging-on) falls
// through to ordinary inbound sequence processing -- it is not special-cased
// just because its MsgType is Logon, and a too-high seqNo here triggers the
// same ResendRequest/AWAITING_RESEND transition any other message would.
func (s *Session) onLogonInitiatorLocked(heartbeatInterval time.Duration, seqNo int64, possDup bool) Outcome {
	if s.state == SentLogon && seqNo == s.expectedReceivedSeq {
		s.heartbeatInterval = heartbeatInterval
		s.expectedReceivedSeq++
		s.lastReceivedAt = s.now()
		s.state = Active
		s.metrics.IncSessionsActive(s.key.SenderCompID, s.key.TargetCompID)
		s.activeCounted = true
		return Accept
	}
	return s.onMessageLocked(seqNo, possDup, nil)
}

// onLogonAcceptorLocked authenticates the counterparty and, on success,
// mirrors the negotiated heartbeat interval back in the reply Logon.
func (s *Session) onLogonAcceptorLocked(heartbeatInterval time.Duration, seqNo int64, possDup bool) Outcome {
	if s.state != Connected {
		return s.onMessageLocked(seqNo, possDup, nil)
	}

	if s.auth != nil {
		if err := s.auth.Authenticate(s.key, heartbeatInterval); err != nil {
			s.sendLogout("authentication failed: " + err.Error())
			return s.disconnectLocked("authentication failure")
		}
	}

	s.heartbeatInterval = heartbeatInterval
	s.expectedReceivedSeq = seqNo + 1
	s.lastReceivedAt = s.now()
	s.sendLogon(false)
	s.state = Active
	s.metrics.IncSessionsActive(s.key.SenderCompID, s.key.TargetCompID)
	s.activeCounted = true
	return Accept
}

// OnLogout handles an inbound Logout per the logout handshake rules:
// replying and disconnecting from ACTIVE, or simply disconnecting when
// already AWAITING_LOGOUT (the local side initiated the handshake).
func (s *Session) OnLogout(seqNo int64) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case AwaitingLogout:
		return s.disconnectLocked("logout handshake complete")
	case Active, AwaitingResend:
		s.sendLogout("")
		return s.disconnectLocked("peer initiated logout")
	default:
		return s.disconnectLocked("logout received outside active session")
	}
}

// OnTestRequest replies with a Heartbeat quoting the received TestReqID.
func (s *Session) OnTestRequest(testReqID string, seqNo int64) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active && s.state != AwaitingResend {
		return s.disconnectLocked("test request outside active session")
	}
	s.sendHeartbeat(testReqID)
	return Accept
}

// OnHeartbeat clears any outstanding TestRequest whose id matches.
func (s *Session) OnHeartbeat(testReqID string, seqNo int64) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingTestReqID != "" && s.pendingTestReqID == testReqID {
		s.pendingTestReqID = ""
		s.testReqDeadline = time.Time{}
	}
	s.lastReceivedAt = s.now()
	return Accept
}

// OnReject records an inbound session-level Reject. The session remains
// active; rejects are logged, not fatal.
func (s *Session) OnReject(seqNo int64) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Warn("fix session received reject", "session_id", s.sessionID, "seq", seqNo)
	s.lastReceivedAt = s.now()
	return Accept
}

// OnResendRequest is invoked by the transport layer when the counterparty
// asks for a range of previously-sent messages to be replayed. Session
// itself does not retain the outbound archive; resolving begin..end into
// bytes is the caller's job (it owns message-log storage), so this records
// the request as a GapDetected-equivalent signal the caller acts on. The
// caller replays by calling QueueResend for each archived message in range.
func (s *Session) OnResendRequest(begin, end int64, seqNo int64) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReceivedAt = s.now()
	return Accept
}

// QueueResend re-sends a previously-archived outbound message in response to
// a ResendRequest. The message is marked PossDupFlag=Y with OrigSendingTime
// set to its original send time, and is queued as-is without consuming a
// new outbound sequence number -- original.MsgSeqNum (tag 34) is preserved.
func (s *Session) QueueResend(original *wire.Message, origSendingTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := original.Clone()
	m.Set(wire.TagPossDupFlag, "Y")
	m.Set(wire.TagOrigSendingTime, origSendingTime.UTC().Format(wire.SendingTimeLayout))
	s.outbox = append(s.outbox, m)
	s.lastSentAt = s.now()
}

// QueueGapFill is QueueResend's counterpart for administrative messages in
// a ResendRequest's range the caller chooses not to replay byte-for-byte
// (e.g. a prior Heartbeat or TestRequest): it queues a SequenceReset in
// gap-fill mode instead, advancing the counterparty's view of this side's
// outgoing sequence number to newSeqNo without actually resending anything.
// newSeqNo must be one past the last sequence number being skipped.
func (s *Session) QueueGapFill(newSeqNo int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueue(s.proxy.sequenceReset(s.nextSeq(), s.now(), newSeqNo, true))
}
