package raftgrpc

// Wire-format messages for the Raft RPC service. These mirror what
// protoc-gen-go would have produced from a raft.proto definition, but are
// hand-authored JSON-tagged structs: no protoc toolchain is available here.
// See internal/transport/grpc/codec for the JSON wire codec that serializes
// them, and mapping.go for the conversion to/from internal/consensus/raft
// types.

// LogEntry is the wire representation of raft.LogEntry.
type LogEntry struct {
	Term    int64  `json:"term"`
	Command []byte `json:"command,omitempty"`
}

// ClusterConfig is the wire representation of raft.ClusterConfig.
type ClusterConfig struct {
	Members []string `json:"members"`
}

// RequestVoteRequest is the wire representation of raft.RequestVoteRequest.
type RequestVoteRequest struct {
	Term         int64  `json:"term"`
	CandidateID  string `json:"candidate_id"`
	LastLogIndex int64  `json:"last_log_index"`
	LastLogTerm  int64  `json:"last_log_term"`
}

// RequestVoteResponse is the wire representation of raft.RequestVoteResponse.
type RequestVoteResponse struct {
	Term        int64 `json:"term"`
	VoteGranted bool  `json:"vote_granted"`
}

// AppendEntriesRequest is the wire representation of raft.AppendEntriesRequest.
type AppendEntriesRequest struct {
	Term            int64      `json:"term"`
	LeaderID        string     `json:"leader_id"`
	PrevLogIndex    int64      `json:"prev_log_index"`
	PrevLogTerm     int64      `json:"prev_log_term"`
	Entries         []LogEntry `json:"entries,omitempty"`
	LeaderCommit    int64      `json:"leader_commit"`
	LeaderSessionID int64      `json:"leader_session_id"`
}

// AppendEntriesResponse is the wire representation of raft.AppendEntriesResponse.
type AppendEntriesResponse struct {
	Term          int64 `json:"term"`
	Success       bool  `json:"success"`
	ConflictTerm  int64 `json:"conflict_term"`
	ConflictIndex int64 `json:"conflict_index"`
}

// InstallSnapshotRequest is the wire representation of raft.InstallSnapshotRequest.
type InstallSnapshotRequest struct {
	Term              int64         `json:"term"`
	LeaderID          string        `json:"leader_id"`
	LastIncludedIndex int64         `json:"last_included_index"`
	LastIncludedTerm  int64         `json:"last_included_term"`
	Config            ClusterConfig `json:"config"`
	Data              []byte        `json:"data,omitempty"`
}

// InstallSnapshotResponse is the wire representation of raft.InstallSnapshotResponse.
type InstallSnapshotResponse struct {
	Term int64 `json:"term"`
}
