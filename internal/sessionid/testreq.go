package sessionid

import "github.com/google/uuid"

// NewTestRequestID generates a fresh TestReqID (tag 112) for a heartbeat
// liveness probe. Random ids (rather than a sequence counter) keep probes
// distinguishable across reconnects within the same session.
func NewTestRequestID() string {
	return uuid.NewString()
}
