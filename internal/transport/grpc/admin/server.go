package admingrpc

import (
	"context"
	"math"
	"sort"

	raftconsensus "github.com/i-melnichenko/consensus-lab/internal/consensus/raft"
	"github.com/i-melnichenko/consensus-lab/internal/fix/session"
)

// RaftInspector is the subset of *raft.Node required by the admin gRPC server.
// *raft.Node satisfies this interface.
type RaftInspector interface {
	AdminState() raftconsensus.AdminState
}

// SessionInspector is implemented by whatever owns the set of live FIX
// sessions on this node (the session manager wired in cmd/node/main.go).
type SessionInspector interface {
	SessionStates() []session.AdminState
}

// Server implements AdminServiceServer.
type Server struct {
	nodeID        string
	consensusType string
	peerAddrs     map[string]string
	raft          RaftInspector
	sessions      SessionInspector
}

// NewServer creates an admin gRPC server adapter.
func NewServer(nodeID, consensusType string, peerAddrs map[string]string, raft RaftInspector, sessions SessionInspector) *Server {
	peerCopy := make(map[string]string, len(peerAddrs))
	for id, addr := range peerAddrs {
		peerCopy[id] = addr
	}
	return &Server{
		nodeID:        nodeID,
		consensusType: consensusType,
		peerAddrs:     peerCopy,
		raft:          raft,
		sessions:      sessions,
	}
}

// GetNodeInfo returns administrative information about the current node.
func (s *Server) GetNodeInfo(_ context.Context, _ *GetNodeInfoRequest) (*GetNodeInfoResponse, error) {
	node := &NodeInfo{
		NodeID:        s.nodeID,
		ConsensusType: mapConsensusType(s.consensusType),
		Role:          NodeRoleUnspecified,
		Status:        NodeStatusHealthy,
		Peers:         peerInfosFromMap(s.peerAddrs),
	}

	if s.raft != nil {
		rs := s.raft.AdminState()
		raftInfo := &RaftNodeInfo{
			Term:              rs.Term,
			LeaderID:          rs.LeaderID,
			LeaderSessionID:   rs.LeaderSessionID,
			CommitIndex:       rs.CommitIndex,
			LastApplied:       rs.LastApplied,
			LastAppliedAt:     rs.LastAppliedAt,
			LastLogIndex:      rs.LastLogIndex,
			LastLogTerm:       rs.LastLogTerm,
			SnapshotLastIndex: rs.SnapshotLastIndex,
			SnapshotLastTerm:  rs.SnapshotLastTerm,
			SnapshotSizeBytes: rs.SnapshotSizeBytes,
			ClusterMembers:    append([]string(nil), rs.ClusterMembers...),
			QuorumSize:        safeInt32(rs.QuorumSize),
			Peers:             make([]RaftPeerInfo, 0, len(rs.Peers)),
		}
		for _, p := range rs.Peers {
			lag := rs.LastLogIndex - p.MatchIndex
			if lag < 0 {
				lag = 0
			}
			raftInfo.Peers = append(raftInfo.Peers, RaftPeerInfo{
				NodeID:     p.NodeID,
				MatchIndex: p.MatchIndex,
				NextIndex:  p.NextIndex,
				Lag:        lag,
			})
		}

		node.Role = mapRaftRole(rs.Role)
		node.Status = mapRaftStatus(rs.Status)
		node.Raft = raftInfo
	}

	if s.sessions != nil {
		states := s.sessions.SessionStates()
		node.FIXSessions = make([]FIXSessionInfo, 0, len(states))
		for _, st := range states {
			node.FIXSessions = append(node.FIXSessions, FIXSessionInfo{
				SessionID:           st.SessionID,
				SenderCompID:        st.Key.SenderCompID,
				TargetCompID:        st.Key.TargetCompID,
				Role:                st.Role.String(),
				State:               st.State.String(),
				NextSentSeq:         st.NextSentSeq,
				ExpectedReceivedSeq: st.ExpectedReceivedSeq,
				LastReceivedAt:      st.LastReceivedAt,
				LastSentAt:          st.LastSentAt,
			})
		}
		sort.Slice(node.FIXSessions, func(i, j int) bool {
			return node.FIXSessions[i].SessionID < node.FIXSessions[j].SessionID
		})
	}

	return &GetNodeInfoResponse{Node: node}, nil
}

func peerInfosFromMap(peerAddrs map[string]string) []PeerInfo {
	if len(peerAddrs) == 0 {
		return nil
	}
	ids := make([]string, 0, len(peerAddrs))
	for id := range peerAddrs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]PeerInfo, 0, len(ids))
	for _, id := range ids {
		out = append(out, PeerInfo{
			NodeID:  id,
			Address: peerAddrs[id],
		})
	}
	return out
}

func mapConsensusType(v string) ConsensusType {
	switch v {
	case "raft":
		return ConsensusTypeRaft
	default:
		return ConsensusTypeUnspecified
	}
}

func mapRaftRole(v raftconsensus.Role) NodeRole {
	switch v {
	case raftconsensus.Leader:
		return NodeRoleLeader
	case raftconsensus.Follower:
		return NodeRoleFollower
	case raftconsensus.Candidate:
		return NodeRoleCandidate
	default:
		return NodeRoleUnspecified
	}
}

func mapRaftStatus(v raftconsensus.NodeStatus) NodeStatus {
	switch v {
	case raftconsensus.NodeStatusHealthy:
		return NodeStatusHealthy
	case raftconsensus.NodeStatusDegraded:
		return NodeStatusDegraded
	default:
		return NodeStatusUnspecified
	}
}

func safeInt32(v int) int32 {
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int32(v)
}
