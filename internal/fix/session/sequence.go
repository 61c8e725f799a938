package session

import "time"

// OnMessage applies the sequence-number discipline to a decoded inbound
// message and, if accepted, hands its payload to the Publisher. msgSeq is
// the message's MsgSeqNum (tag 34); sendingTime the parsed SendingTime (tag
// 52); possDup whether PossDupFlag (tag 43) is "Y"; payload the raw encoded
// message bytes to publish on acceptance.
func (s *Session) OnMessage(msgSeq int64, sendingTime time.Time, possDup bool, payload []byte) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Disconnected || s.state == Disabled {
		return Disconnect
	}

	if outcome := s.checkSendingTimeLocked(msgSeq, sendingTime); outcome != Accept {
		return outcome
	}

	return s.onMessageLocked(msgSeq, possDup, payload)
}

// onMessageLocked applies the sequence-number discipline shared by every
// inbound message, admin or application. Callers must hold mu. It is the
// single place that can emit GapDetected/ResendRequest, so any handler that
// needs to fall through to ordinary sequence processing (e.g. a Logon
// arriving outside the handshake) must route through here rather than
// through acceptLocked, which only ever covers the matching-sequence arm.
func (s *Session) onMessageLocked(msgSeq int64, possDup bool, payload []byte) Outcome {
	switch {
	case msgSeq == s.expectedReceivedSeq:
		return s.acceptLocked(msgSeq, payload)

	case msgSeq > s.expectedReceivedSeq:
		if s.state != AwaitingResend {
			s.state = AwaitingResend
			s.gapResumeSeq = msgSeq
			s.metrics.IncSequenceGap(s.key.SenderCompID, s.key.TargetCompID)
			s.metrics.IncResendRequest(s.key.SenderCompID, s.key.TargetCompID)
			s.sendResendRequest(s.expectedReceivedSeq, 0)
		} else if msgSeq > s.gapResumeSeq {
			s.gapResumeSeq = msgSeq
		}
		// Higher-sequence messages arriving while awaiting resend are
		// dropped; the counterparty will resend them after the gap fill.
		return GapDetected

	default: // msgSeq < expectedReceivedSeq
		if possDup {
			s.lastReceivedAt = s.now()
			return Duplicate
		}
		s.sendLogout("sequence number too low")
		return s.disconnectLocked("sequence violation")
	}
}

func (s *Session) acceptLocked(msgSeq int64, payload []byte) Outcome {
	s.expectedReceivedSeq++
	s.lastReceivedAt = s.now()

	if s.state == AwaitingResend && s.expectedReceivedSeq > s.gapResumeSeq {
		s.state = Active
		s.gapResumeSeq = 0
	}

	if s.publisher != nil && len(payload) > 0 {
		if err := s.publisher.Publish(s.sessionID, msgSeq, payload); err != nil {
			s.logger.Error("fix session publish failed", "session_id", s.sessionID, "seq", msgSeq, "err", err)
		}
	}
	return Accept
}

// OnSequenceReset processes an inbound SequenceReset. In reset mode
// (gapFill=false) it forcibly sets expectedReceivedSeq regardless of the
// current value. In gap-fill mode it requires newSeqNo >= expectedReceivedSeq.
func (s *Session) OnSequenceReset(newSeqNo int64, gapFill bool) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !gapFill {
		s.expectedReceivedSeq = newSeqNo
		if s.state == AwaitingResend {
			s.state = Active
			s.gapResumeSeq = 0
		}
		return Accept
	}

	if newSeqNo < s.expectedReceivedSeq {
		s.sendLogout("sequence reset gap fill below expected")
		return s.disconnectLocked("invalid gap fill")
	}
	s.expectedReceivedSeq = newSeqNo
	if s.state == AwaitingResend && s.expectedReceivedSeq > s.gapResumeSeq {
		s.state = Active
		s.gapResumeSeq = 0
	}
	return Accept
}
