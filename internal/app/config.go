package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConsensusType selects the consensus implementation used by the node.
type ConsensusType string

// Supported consensus engine types.
const (
	ConsensusTypeRaft ConsensusType = "raft"
)

// Config contains runtime settings for a node process.
type Config struct {
	NodeID        string
	ConsensusType ConsensusType
	LogLevel      string

	GatewayGRPCAddr   string
	AdminGRPCAddr     string
	ConsensusGRPCAddr string
	DataDir           string

	PeerAddrs []string

	// SnapshotEvery is loaded from APP_SNAPSHOT_EVERY but nothing reads it:
	// the node takes no automatic snapshots, whatever its value.
	SnapshotEvery uint64

	// FIX session tunables, shared by every acceptor/initiator session this
	// node hosts.
	FIXListenAddr          string
	HeartbeatInterval      time.Duration
	SendingTimeWindow      time.Duration
	LogInboundMessages     bool
	LogOutboundMessages    bool
	InboundMaxClaimAttempt int
	OutboundMaxClaimAttempt int

	// Raft cluster timing.
	ElectionTimeoutMin time.Duration
	ElectionTimeoutMax time.Duration
	RaftHeartbeat      time.Duration

	// Gateway publish back-pressure tunables. PublishTimeout bounds how long
	// a single Publish waits for local apply before ErrCommitTimeout; the
	// queue settings size the async hand-off that keeps a FIX Session's
	// locked transition from blocking on Raft commit.
	PublishTimeout      time.Duration
	PublishQueueDepth   int
	PublishQueueWorkers int

	// Observability sidecars. Empty addr disables the corresponding server.
	MetricsAddr string
	PprofAddr   string

	TracingEnabled     bool
	TracingEndpoint    string
	TracingServiceName string
}

// DefaultConfig returns a local-development configuration.
func DefaultConfig() Config {
	return Config{
		NodeID:                  "node-1",
		ConsensusType:           ConsensusTypeRaft,
		LogLevel:                "info",
		GatewayGRPCAddr:         ":8080",
		AdminGRPCAddr:           ":8081",
		ConsensusGRPCAddr:       ":9090",
		DataDir:                 "./var/node-1",
		FIXListenAddr:           ":9878",
		HeartbeatInterval:       30 * time.Second,
		SendingTimeWindow:       120 * time.Second,
		LogInboundMessages:      true,
		LogOutboundMessages:     true,
		InboundMaxClaimAttempt:  3,
		OutboundMaxClaimAttempt: 3,
		ElectionTimeoutMin:      150 * time.Millisecond,
		ElectionTimeoutMax:      300 * time.Millisecond,
		RaftHeartbeat:           50 * time.Millisecond,
		PublishTimeout:          5 * time.Second,
		PublishQueueDepth:       1024,
		PublishQueueWorkers:     4,
		MetricsAddr:             ":9100",
		PprofAddr:               "",
		TracingEnabled:          false,
		TracingEndpoint:         "localhost:4317",
		TracingServiceName:      "consensus-lab-gateway",
	}
}

// LoadConfigFromEnv loads config from environment variables.
//
// Supported vars:
// - APP_NODE_ID
// - APP_CONSENSUS_TYPE (must be "raft")
// - APP_LOG_LEVEL (debug|info|warn|error)
// - APP_GATEWAY_GRPC_ADDR
// - APP_ADMIN_GRPC_ADDR
// - APP_CONSENSUS_GRPC_ADDR
// - APP_DATA_DIR
// - APP_PEERS (comma-separated addresses)
// - APP_SNAPSHOT_EVERY (uint; parsed only, no automatic snapshots are taken)
// - APP_FIX_LISTEN_ADDR
// - APP_HEARTBEAT_INTERVAL_SECONDS
// - APP_SENDING_TIME_WINDOW_MS
// - APP_LOG_INBOUND_MESSAGES / APP_LOG_OUTBOUND_MESSAGES (bool; must both be true if clustered)
// - APP_INBOUND_MAX_CLAIM_ATTEMPTS / APP_OUTBOUND_MAX_CLAIM_ATTEMPTS
// - APP_ELECTION_TIMEOUT_MS_MIN / APP_ELECTION_TIMEOUT_MS_MAX / APP_HEARTBEAT_INTERVAL_MS
// - APP_PUBLISH_TIMEOUT_MS / APP_PUBLISH_QUEUE_DEPTH / APP_PUBLISH_QUEUE_WORKERS
// - APP_METRICS_ADDR / APP_PPROF_ADDR (empty disables the sidecar)
// - APP_TRACING_ENABLED / APP_TRACING_ENDPOINT / APP_TRACING_SERVICE_NAME
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("APP_NODE_ID")); v != "" {
		cfg.NodeID = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_CONSENSUS_TYPE")); v != "" {
		cfg.ConsensusType = ConsensusType(v)
	}
	if v := strings.TrimSpace(os.Getenv("APP_LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("APP_GATEWAY_GRPC_ADDR")); v != "" {
		cfg.GatewayGRPCAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_ADMIN_GRPC_ADDR")); v != "" {
		cfg.AdminGRPCAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_CONSENSUS_GRPC_ADDR")); v != "" {
		cfg.ConsensusGRPCAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_PEERS")); v != "" {
		cfg.PeerAddrs = splitCSV(v)
	}
	if v := strings.TrimSpace(os.Getenv("APP_SNAPSHOT_EVERY")); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid APP_SNAPSHOT_EVERY %q: %w", v, err)
		}
		cfg.SnapshotEvery = n
	}
	if v := strings.TrimSpace(os.Getenv("APP_FIX_LISTEN_ADDR")); v != "" {
		cfg.FIXListenAddr = v
	}
	if d, err := envSeconds("APP_HEARTBEAT_INTERVAL_SECONDS"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.HeartbeatInterval = d
	}
	if d, err := envMillis("APP_SENDING_TIME_WINDOW_MS"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.SendingTimeWindow = d
	}
	if v := strings.TrimSpace(os.Getenv("APP_LOG_INBOUND_MESSAGES")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid APP_LOG_INBOUND_MESSAGES %q: %w", v, err)
		}
		cfg.LogInboundMessages = b
	}
	if v := strings.TrimSpace(os.Getenv("APP_LOG_OUTBOUND_MESSAGES")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid APP_LOG_OUTBOUND_MESSAGES %q: %w", v, err)
		}
		cfg.LogOutboundMessages = b
	}
	if v := strings.TrimSpace(os.Getenv("APP_INBOUND_MAX_CLAIM_ATTEMPTS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid APP_INBOUND_MAX_CLAIM_ATTEMPTS %q: %w", v, err)
		}
		cfg.InboundMaxClaimAttempt = n
	}
	if v := strings.TrimSpace(os.Getenv("APP_OUTBOUND_MAX_CLAIM_ATTEMPTS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid APP_OUTBOUND_MAX_CLAIM_ATTEMPTS %q: %w", v, err)
		}
		cfg.OutboundMaxClaimAttempt = n
	}
	if d, err := envMillis("APP_ELECTION_TIMEOUT_MS_MIN"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.ElectionTimeoutMin = d
	}
	if d, err := envMillis("APP_ELECTION_TIMEOUT_MS_MAX"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.ElectionTimeoutMax = d
	}
	if d, err := envMillis("APP_HEARTBEAT_INTERVAL_MS"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.RaftHeartbeat = d
	}
	if d, err := envMillis("APP_PUBLISH_TIMEOUT_MS"); err != nil {
		return Config{}, err
	} else if d > 0 {
		cfg.PublishTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv("APP_PUBLISH_QUEUE_DEPTH")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid APP_PUBLISH_QUEUE_DEPTH %q: %w", v, err)
		}
		cfg.PublishQueueDepth = n
	}
	if v := strings.TrimSpace(os.Getenv("APP_PUBLISH_QUEUE_WORKERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid APP_PUBLISH_QUEUE_WORKERS %q: %w", v, err)
		}
		cfg.PublishQueueWorkers = n
	}
	if v, ok := os.LookupEnv("APP_METRICS_ADDR"); ok {
		cfg.MetricsAddr = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("APP_PPROF_ADDR"); ok {
		cfg.PprofAddr = strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(os.Getenv("APP_TRACING_ENABLED")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("app: invalid APP_TRACING_ENABLED %q: %w", v, err)
		}
		cfg.TracingEnabled = b
	}
	if v := strings.TrimSpace(os.Getenv("APP_TRACING_ENDPOINT")); v != "" {
		cfg.TracingEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("APP_TRACING_SERVICE_NAME")); v != "" {
		cfg.TracingServiceName = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envMillis(name string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("app: invalid %s %q: %w", name, v, err)
	}
	return time.Duration(n) * time.Millisecond, nil
}

func envSeconds(name string) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("app: invalid %s %q: %w", name, v, err)
	}
	return time.Duration(n) * time.Second, nil
}

// Validate checks that required settings are present and supported.
func (c Config) Validate() error {
	if strings.TrimSpace(c.NodeID) == "" {
		return fmt.Errorf("app: node id is required")
	}
	switch c.ConsensusType {
	case ConsensusTypeRaft:
	default:
		return fmt.Errorf("app: unsupported consensus type %q", c.ConsensusType)
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("app: unsupported log level %q", c.LogLevel)
	}
	if strings.TrimSpace(c.GatewayGRPCAddr) == "" {
		return fmt.Errorf("app: gateway grpc addr is required")
	}
	if strings.TrimSpace(c.AdminGRPCAddr) == "" {
		return fmt.Errorf("app: admin grpc addr is required")
	}
	if strings.TrimSpace(c.ConsensusGRPCAddr) == "" {
		return fmt.Errorf("app: consensus grpc addr is required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("app: data dir is required")
	}
	if strings.TrimSpace(c.FIXListenAddr) == "" {
		return fmt.Errorf("app: fix listen addr is required")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("app: heartbeat interval must be positive")
	}
	if c.SendingTimeWindow <= 0 {
		return fmt.Errorf("app: sending time window must be positive")
	}
	if len(c.PeerAddrs) > 0 && (!c.LogInboundMessages || !c.LogOutboundMessages) {
		return fmt.Errorf("app: clustered nodes must log both inbound and outbound messages")
	}
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("app: publish timeout must be positive")
	}
	if c.PublishQueueDepth <= 0 {
		return fmt.Errorf("app: publish queue depth must be positive")
	}
	if c.PublishQueueWorkers <= 0 {
		return fmt.Errorf("app: publish queue workers must be positive")
	}
	return nil
}

// PeerAddrMap parses PeerAddrs into a map of peer-id -> address.
// Each entry is either "host:port" (peer ID equals address) or "peer-id=host:port".
func (c Config) PeerAddrMap() (map[string]string, error) {
	out := make(map[string]string, len(c.PeerAddrs))
	for _, raw := range c.PeerAddrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		id := raw
		addr := raw
		if left, right, ok := strings.Cut(raw, "="); ok {
			id = strings.TrimSpace(left)
			addr = strings.TrimSpace(right)
		}

		if id == "" || addr == "" {
			return nil, fmt.Errorf("app: invalid peer entry %q", raw)
		}
		if _, exists := out[id]; exists {
			return nil, fmt.Errorf("app: duplicate peer id %q", id)
		}
		out[id] = addr
	}
	return out, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
