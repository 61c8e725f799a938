// Package admingrpc exposes node and FIX-session diagnostics over gRPC, using
// the same hand-authored JSON wire codec established for the Raft and
// gateway RPC services: no protoc toolchain is available here, so these
// types mirror what protoc-gen-go would have produced from an admin.proto
// definition.
package admingrpc

import "time"

// ConsensusType identifies the active consensus implementation.
type ConsensusType string

// Supported consensus types.
const (
	ConsensusTypeUnspecified ConsensusType = ""
	ConsensusTypeRaft        ConsensusType = "raft"
)

// NodeRole mirrors raft.Role for wire transfer.
type NodeRole string

// Reported node roles.
const (
	NodeRoleUnspecified NodeRole = ""
	NodeRoleLeader      NodeRole = "leader"
	NodeRoleFollower    NodeRole = "follower"
	NodeRoleCandidate   NodeRole = "candidate"
)

// NodeStatus mirrors raft.NodeStatus for wire transfer.
type NodeStatus string

// Reported node statuses.
const (
	NodeStatusUnspecified NodeStatus = ""
	NodeStatusHealthy     NodeStatus = "healthy"
	NodeStatusDegraded    NodeStatus = "degraded"
)

// PeerInfo describes a configured cluster peer.
type PeerInfo struct {
	NodeID  string `json:"node_id"`
	Address string `json:"address"`
}

// RaftPeerInfo is leader-side replication progress toward one peer.
type RaftPeerInfo struct {
	NodeID     string `json:"node_id"`
	MatchIndex int64  `json:"match_index"`
	NextIndex  int64  `json:"next_index"`
	Lag        int64  `json:"lag"`
}

// RaftNodeInfo is the Raft-specific portion of a node's admin snapshot.
type RaftNodeInfo struct {
	Term              int64          `json:"term"`
	LeaderID          string         `json:"leader_id"`
	LeaderSessionID   int64          `json:"leader_session_id"`
	CommitIndex       int64          `json:"commit_index"`
	LastApplied       int64          `json:"last_applied"`
	LastAppliedAt     time.Time      `json:"last_applied_at,omitempty"`
	LastLogIndex      int64          `json:"last_log_index"`
	LastLogTerm       int64          `json:"last_log_term"`
	SnapshotLastIndex int64          `json:"snapshot_last_index"`
	SnapshotLastTerm  int64          `json:"snapshot_last_term"`
	SnapshotSizeBytes int64          `json:"snapshot_size_bytes"`
	ClusterMembers    []string       `json:"cluster_members,omitempty"`
	QuorumSize        int32          `json:"quorum_size"`
	Peers             []RaftPeerInfo `json:"peers,omitempty"`
}

// FIXSessionInfo is one row of the FIX session table reported by a node.
type FIXSessionInfo struct {
	SessionID           int64     `json:"session_id"`
	SenderCompID        string    `json:"sender_comp_id"`
	TargetCompID        string    `json:"target_comp_id"`
	Role                string    `json:"role"`
	State               string    `json:"state"`
	NextSentSeq         int64     `json:"next_sent_seq"`
	ExpectedReceivedSeq int64     `json:"expected_received_seq"`
	LastReceivedAt      time.Time `json:"last_received_at,omitempty"`
	LastSentAt          time.Time `json:"last_sent_at,omitempty"`
}

// NodeInfo is the full per-node admin snapshot.
type NodeInfo struct {
	NodeID        string           `json:"node_id"`
	ConsensusType ConsensusType    `json:"consensus_type"`
	Role          NodeRole         `json:"role"`
	Status        NodeStatus       `json:"status"`
	Peers         []PeerInfo       `json:"peers,omitempty"`
	Raft          *RaftNodeInfo    `json:"raft,omitempty"`
	FIXSessions   []FIXSessionInfo `json:"fix_sessions,omitempty"`
}

// GetNodeInfoRequest has no fields; reserved for future filtering.
type GetNodeInfoRequest struct{}

// GetNodeInfoResponse wraps the node snapshot.
type GetNodeInfoResponse struct {
	Node *NodeInfo `json:"node"`
}
