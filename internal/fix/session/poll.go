package session

// Poll is driven at least every 100ms by the caller's agent loop. It emits
// heartbeats and test-requests, enforces logon/logout timeouts, and sends
// the initial Logon for initiator sessions. It returns the number of
// actions performed, for Agent-style idle strategies to decide whether to
// back off.
func (s *Session) Poll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions := 0
	now := s.now()

	switch s.state {
	case Connected:
		if s.role == Initiator {
			s.sendLogon(false)
			s.state = SentLogon
			s.logonDeadline = now.Add(s.cfg.LogonTimeout)
			actions++
		}
		return actions

	case SentLogon:
		if !s.logonDeadline.IsZero() && now.After(s.logonDeadline) {
			s.disconnectLocked("logon timeout")
			actions++
		}
		return actions

	case AwaitingLogout:
		if !s.logoutDeadline.IsZero() && now.After(s.logoutDeadline) {
			s.disconnectLocked("logout timeout")
			actions++
		}
		return actions

	case Disconnected, Disabled:
		return actions
	}

	// ACTIVE / AWAITING_RESEND: liveness protocol.
	if s.pendingTestReqID != "" && !s.testReqDeadline.IsZero() && now.After(s.testReqDeadline) {
		s.metrics.IncHeartbeatTimeout(s.key.SenderCompID, s.key.TargetCompID)
		s.disconnectLocked("test request deadline elapsed without heartbeat")
		return actions + 1
	}

	if now.Sub(s.lastSentAt) > s.heartbeatInterval {
		s.sendHeartbeat("")
		actions++
	}

	testReqThreshold := (s.heartbeatInterval * 6) / 5 // heartbeatInterval * 1.2
	if s.pendingTestReqID == "" && now.Sub(s.lastReceivedAt) > testReqThreshold {
		id := s.sendTestRequest()
		s.pendingTestReqID = id
		deadline := s.cfg.TestRequestDeadline
		if deadline <= 0 {
			deadline = testReqThreshold
		}
		s.testReqDeadline = now.Add(deadline)
		actions++
	}

	return actions
}
