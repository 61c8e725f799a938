package raftgrpc

import (
	"github.com/i-melnichenko/consensus-lab/internal/consensus/raft"
)

// --- RequestVote ---

func requestVoteRequestFromWire(w *RequestVoteRequest) *raft.RequestVoteRequest {
	return &raft.RequestVoteRequest{
		Term:         w.Term,
		CandidateID:  w.CandidateID,
		LastLogIndex: w.LastLogIndex,
		LastLogTerm:  w.LastLogTerm,
	}
}

func requestVoteRequestToWire(r *raft.RequestVoteRequest) *RequestVoteRequest {
	return &RequestVoteRequest{
		Term:         r.Term,
		CandidateID:  r.CandidateID,
		LastLogIndex: r.LastLogIndex,
		LastLogTerm:  r.LastLogTerm,
	}
}

func requestVoteResponseFromWire(w *RequestVoteResponse) *raft.RequestVoteResponse {
	return &raft.RequestVoteResponse{
		Term:        w.Term,
		VoteGranted: w.VoteGranted,
	}
}

func requestVoteResponseToWire(r *raft.RequestVoteResponse) *RequestVoteResponse {
	return &RequestVoteResponse{
		Term:        r.Term,
		VoteGranted: r.VoteGranted,
	}
}

// --- AppendEntries ---

func appendEntriesRequestFromWire(w *AppendEntriesRequest) *raft.AppendEntriesRequest {
	entries := make([]raft.LogEntry, len(w.Entries))
	for i, e := range w.Entries {
		entries[i] = raft.LogEntry{Term: e.Term, Command: e.Command}
	}
	return &raft.AppendEntriesRequest{
		Term:            w.Term,
		LeaderID:        w.LeaderID,
		PrevLogIndex:    w.PrevLogIndex,
		PrevLogTerm:     w.PrevLogTerm,
		Entries:         entries,
		LeaderCommit:    w.LeaderCommit,
		LeaderSessionID: w.LeaderSessionID,
	}
}

func appendEntriesRequestToWire(r *raft.AppendEntriesRequest) *AppendEntriesRequest {
	entries := make([]LogEntry, len(r.Entries))
	for i, e := range r.Entries {
		entries[i] = LogEntry{Term: e.Term, Command: e.Command}
	}
	return &AppendEntriesRequest{
		Term:            r.Term,
		LeaderID:        r.LeaderID,
		PrevLogIndex:    r.PrevLogIndex,
		PrevLogTerm:     r.PrevLogTerm,
		Entries:         entries,
		LeaderCommit:    r.LeaderCommit,
		LeaderSessionID: r.LeaderSessionID,
	}
}

func appendEntriesResponseFromWire(w *AppendEntriesResponse) *raft.AppendEntriesResponse {
	return &raft.AppendEntriesResponse{
		Term:          w.Term,
		Success:       w.Success,
		ConflictTerm:  w.ConflictTerm,
		ConflictIndex: w.ConflictIndex,
	}
}

func appendEntriesResponseToWire(r *raft.AppendEntriesResponse) *AppendEntriesResponse {
	return &AppendEntriesResponse{
		Term:          r.Term,
		Success:       r.Success,
		ConflictTerm:  r.ConflictTerm,
		ConflictIndex: r.ConflictIndex,
	}
}

// --- InstallSnapshot ---

func clusterConfigFromWire(w ClusterConfig) raft.ClusterConfig {
	return raft.ClusterConfig{Members: append([]string(nil), w.Members...)}
}

func clusterConfigToWire(cfg raft.ClusterConfig) ClusterConfig {
	return ClusterConfig{Members: append([]string(nil), cfg.Members...)}
}

func installSnapshotRequestFromWire(w *InstallSnapshotRequest) *raft.InstallSnapshotRequest {
	return &raft.InstallSnapshotRequest{
		Term:              w.Term,
		LeaderID:          w.LeaderID,
		LastIncludedIndex: w.LastIncludedIndex,
		LastIncludedTerm:  w.LastIncludedTerm,
		Config:            clusterConfigFromWire(w.Config),
		Data:              append([]byte(nil), w.Data...),
	}
}

func installSnapshotRequestToWire(r *raft.InstallSnapshotRequest) *InstallSnapshotRequest {
	return &InstallSnapshotRequest{
		Term:              r.Term,
		LeaderID:          r.LeaderID,
		LastIncludedIndex: r.LastIncludedIndex,
		LastIncludedTerm:  r.LastIncludedTerm,
		Config:            clusterConfigToWire(r.Config),
		Data:              append([]byte(nil), r.Data...),
	}
}

func installSnapshotResponseFromWire(w *InstallSnapshotResponse) *raft.InstallSnapshotResponse {
	return &raft.InstallSnapshotResponse{Term: w.Term}
}

func installSnapshotResponseToWire(r *raft.InstallSnapshotResponse) *InstallSnapshotResponse {
	return &InstallSnapshotResponse{Term: r.Term}
}
