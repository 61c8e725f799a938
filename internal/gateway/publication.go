package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/i-melnichenko/consensus-lab/internal/consensus"
)

// ErrNotLeader is returned when a publish is attempted against a non-leader node.
var ErrNotLeader = errors.New("gateway: not leader")

// ErrCommitTimeout is returned when a publish is accepted for replication but
// does not get committed/applied before the request deadline.
var ErrCommitTimeout = errors.New("gateway: publication not committed before deadline")

// Logger is a minimal structured logger interface, compatible with slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// Metrics captures publication-level metric sinks.
type Metrics interface {
	ObserveWaitAppliedDuration(nodeID string, d time.Duration, ok bool)
	IncPublishResult(nodeID, result string)
	ObserveSnapshotDuration(nodeID string, d time.Duration)
	IncSnapshot(nodeID, result string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveWaitAppliedDuration(string, time.Duration, bool) {}
func (noopMetrics) IncPublishResult(string, string)                       {}
func (noopMetrics) ObserveSnapshotDuration(string, time.Duration)          {}
func (noopMetrics) IncSnapshot(string, string)                             {}

// Subscriber receives committed gateway commands in increasing index order.
// It is the minimal bolt-on point for an indexer or replay-query subsystem;
// this package ships no such subsystem (per the Non-goals), only the hook.
type Subscriber interface {
	OnCommitted(index int64, cmd Command)
}

// defaultPublishTimeout bounds how long Publish waits for local apply before
// returning ErrCommitTimeout. SetPublishTimeout overrides it.
const defaultPublishTimeout = 5 * time.Second

// Publication is GatewayPublication: the append-only log endpoint FIX
// sessions publish accepted inbound messages to. It maps the
// StartCommand -> waitApplied pattern onto Aeron's offer()/position-reached
// semantics referenced by the spec.
type Publication struct {
	consensus   consensus.Consensus
	logger      Logger
	tracer      oteltrace.Tracer
	metrics     Metrics
	nodeID      string
	subscribers []Subscriber

	publishTimeout time.Duration

	mu               sync.Mutex
	lastAppliedIndex int64
	applyNotifyCh    chan struct{}
	appliedAtByIndex map[int64]time.Time
}

// New constructs a Publication bound to the given consensus engine.
func New(c consensus.Consensus, logger Logger, tracer oteltrace.Tracer, metrics Metrics, nodeID string, subscribers ...Subscriber) *Publication {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Publication{
		consensus:        c,
		logger:           logger,
		tracer:           tracer,
		metrics:          metrics,
		nodeID:           nodeID,
		subscribers:      subscribers,
		publishTimeout:   defaultPublishTimeout,
		applyNotifyCh:    make(chan struct{}, 1),
		appliedAtByIndex: make(map[int64]time.Time),
	}
}

// SetPublishTimeout overrides how long Publish waits for local apply before
// giving up with ErrCommitTimeout, mirroring the raft Node's SetHeartbeatInterval-
// style runtime tunables. Zero or negative leaves the default in place.
func (p *Publication) SetPublishTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	p.publishTimeout = d
}

func (p *Publication) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := p.tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func recordSpanErr(span oteltrace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(otelcodes.Error, err.Error())
}

// Publish implements session.Publisher: it replicates payload, tagged with
// the originating FIX session id and its sequence number, through consensus
// and blocks until the entry is applied locally.
func (p *Publication) Publish(sessionID int64, seqNo int64, payload []byte) error {
	deadline, cancel := context.WithTimeout(context.Background(), p.publishTimeout)
	defer cancel()

	ctx, span := p.startSpan(
		deadline,
		"gateway.publication.Publish",
		attribute.Int64("gateway.session_id", sessionID),
		attribute.Int64("gateway.seq_no", seqNo),
		attribute.Int("gateway.payload_bytes", len(payload)),
	)
	defer span.End()

	raw, err := json.Marshal(Command{SessionID: sessionID, SeqNo: seqNo, Payload: payload})
	if err != nil {
		recordSpanErr(span, err)
		return err
	}

	index, isLeader := p.consensus.StartCommand(raw)
	if !isLeader {
		p.metrics.IncPublishResult(p.nodeID, "not_leader")
		recordSpanErr(span, ErrNotLeader)
		return ErrNotLeader
	}
	p.metrics.IncPublishResult(p.nodeID, "accepted")
	span.SetAttributes(attribute.Int64("raft.log.index", index))

	if err := p.waitApplied(ctx, index); err != nil {
		recordSpanErr(span, err)
		return err
	}
	return nil
}

// IsLeader reports whether the underlying consensus node is currently leader.
func (p *Publication) IsLeader() bool {
	return p.consensus.IsLeader()
}

// RunApplyLoop applies committed consensus messages until ctx is canceled
// or a handler returns an error.
func (p *Publication) RunApplyLoop(ctx context.Context) error {
	ch := p.consensus.ApplyCh()
	if ch == nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := p.handleApply(msg); err != nil {
				return err
			}
		}
	}
}

func (p *Publication) handleApply(msg consensus.ApplyMsg) error {
	if msg.SnapshotValid {
		p.mu.Lock()
		p.lastAppliedIndex = msg.SnapshotIndex
		p.mu.Unlock()
		p.notifyApply()
		return nil
	}
	if !msg.CommandValid {
		return nil
	}

	var cmd Command
	if err := json.Unmarshal(msg.Command, &cmd); err != nil {
		return err
	}

	for _, sub := range p.subscribers {
		sub.OnCommitted(msg.CommandIndex, cmd)
	}

	p.mu.Lock()
	p.lastAppliedIndex = msg.CommandIndex
	p.appliedAtByIndex[msg.CommandIndex] = time.Now()
	const appliedAtRetention = int64(4096)
	if cutoff := msg.CommandIndex - appliedAtRetention; cutoff > 0 {
		delete(p.appliedAtByIndex, cutoff)
	}
	p.mu.Unlock()
	p.notifyApply()

	p.logger.Debug("gateway command applied", "index", msg.CommandIndex, "session_id", cmd.SessionID, "seq_no", cmd.SeqNo)
	return nil
}

func (p *Publication) waitApplied(ctx context.Context, index int64) error {
	ctx, span := p.startSpan(ctx, "gateway.publication.waitApplied", attribute.Int64("raft.log.index", index))
	defer span.End()
	start := time.Now()

	for {
		p.mu.Lock()
		applied := p.lastAppliedIndex
		p.mu.Unlock()
		if applied >= index {
			p.metrics.ObserveWaitAppliedDuration(p.nodeID, time.Since(start), true)
			return nil
		}
		select {
		case <-ctx.Done():
			p.metrics.ObserveWaitAppliedDuration(p.nodeID, time.Since(start), false)
			p.metrics.IncPublishResult(p.nodeID, "commit_timeout")
			return ErrCommitTimeout
		case <-p.applyNotifyCh:
		}
	}
}

func (p *Publication) notifyApply() {
	select {
	case p.applyNotifyCh <- struct{}{}:
	default:
	}
}
