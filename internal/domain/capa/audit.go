package capa

import (
	"fmt"
	"strconv"
)

// AuditLink is the hashed content of one audit entry.
type AuditLink struct {
	WorkflowID  string
	Seq         uint64
	Actor       string
	Action      AuditAction
	Before      string
	After       string
	Reason      string
	CorrectsSeq uint64
	CreatedAt   string
}

// Hash chains the entry to prevHash. The first entry of a workflow uses "".
func (l AuditLink) Hash(prevHash string) string {
	return digest(
		prevHash,
		l.WorkflowID,
		strconv.FormatUint(l.Seq, 10),
		l.Actor,
		string(l.Action),
		l.Before,
		l.After,
		l.Reason,
		strconv.FormatUint(l.CorrectsSeq, 10),
		l.CreatedAt,
	)
}

// ChainedEntry is a stored audit entry together with its recorded hashes.
type ChainedEntry struct {
	Link      AuditLink
	PrevHash  string
	EntryHash string
}

// ChainBreak describes the first entry at which verification failed.
type ChainBreak struct {
	Seq    uint64
	Reason string
}

// VerifyChain walks entries in seq order and reports the first gap, broken
// link or hash mismatch. A nil result means the chain is intact.
func VerifyChain(entries []ChainedEntry) *ChainBreak {
	prev := ""
	for i, e := range entries {
		want := uint64(i + 1)
		if e.Link.Seq != want {
			return &ChainBreak{Seq: e.Link.Seq, Reason: fmt.Sprintf("expected seq %d", want)}
		}
		if e.PrevHash != prev {
			return &ChainBreak{Seq: e.Link.Seq, Reason: "previous hash does not match predecessor"}
		}
		if got := e.Link.Hash(prev); got != e.EntryHash {
			return &ChainBreak{Seq: e.Link.Seq, Reason: "entry hash does not match content"}
		}
		prev = e.EntryHash
	}
	return nil
}
