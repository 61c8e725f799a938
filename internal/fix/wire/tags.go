// Package wire implements the FIX tag=value wire encoding: field parsing,
// checksum computation, and admin message type constants. It has no
// knowledge of session state; internal/fix/session builds on top of it.
package wire

// SOH is the FIX field separator.
const SOH = '\x01'

// Session-level header/trailer tags used by the gateway.
const (
	TagBeginString    = 8
	TagBodyLength     = 9
	TagMsgType        = 35
	TagSenderCompID   = 49
	TagTargetCompID   = 56
	TagMsgSeqNum      = 34
	TagSendingTime    = 52
	TagPossDupFlag    = 43
	TagOrigSendingTime = 122
	TagCheckSum       = 10

	TagEncryptMethod    = 98
	TagHeartBtInt       = 108
	TagResetSeqNumFlag  = 141
	TagTestReqID        = 112
	TagBeginSeqNo       = 7
	TagEndSeqNo         = 16
	TagNewSeqNo         = 36
	TagGapFillFlag      = 123
	TagRefSeqNum        = 45
	TagRefTagID         = 371
	TagRefMsgType       = 372
	TagSessionRejectReason = 373
	TagText             = 58
)

// SessionRejectReason values (tag 373) the session state machine emits in
// outbound session-level Reject messages.
const (
	SessionRejectReasonSendingTimeAccuracy = 10
)

// MsgType values for the admin messages the session state machine handles.
const (
	MsgTypeLogon          = "A"
	MsgTypeLogout         = "5"
	MsgTypeHeartbeat      = "0"
	MsgTypeTestRequest    = "1"
	MsgTypeResendRequest  = "2"
	MsgTypeReject         = "3"
	MsgTypeSequenceReset  = "4"
)

// SendingTimeLayout is the FIX UTCTimestamp format (no timezone, millisecond precision).
const SendingTimeLayout = "20060102-15:04:05.000"
