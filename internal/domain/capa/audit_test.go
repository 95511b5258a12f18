package capa

import "testing"

func buildChain(links ...AuditLink) []ChainedEntry {
	out := make([]ChainedEntry, 0, len(links))
	prev := ""
	for _, l := range links {
		h := l.Hash(prev)
		out = append(out, ChainedEntry{Link: l, PrevHash: prev, EntryHash: h})
		prev = h
	}
	return out
}

func TestVerifyChain(t *testing.T) {
	links := []AuditLink{
		{WorkflowID: "wf-1", Seq: 1, Actor: "alice", Action: AuditCapaCreated, Before: "null", After: `{"phase":"correction"}`, CreatedAt: "t1"},
		{WorkflowID: "wf-1", Seq: 2, Actor: "bob", Action: AuditActionCreated, Before: "null", After: `{"title":"fix"}`, CreatedAt: "t2"},
		{WorkflowID: "wf-1", Seq: 3, Actor: "qm", Action: AuditCorrection, Before: `{"title":"fix"}`, After: `{"title":"fix sensor"}`, Reason: "typo", CorrectsSeq: 2, CreatedAt: "t3"},
	}

	if brk := VerifyChain(buildChain(links...)); brk != nil {
		t.Fatalf("VerifyChain() = %+v, want intact", brk)
	}
	if brk := VerifyChain(nil); brk != nil {
		t.Fatalf("VerifyChain(nil) = %+v", brk)
	}

	tampered := buildChain(links...)
	tampered[1].Link.After = `{"title":"other"}`
	if brk := VerifyChain(tampered); brk == nil || brk.Seq != 2 {
		t.Fatalf("VerifyChain(tampered content) = %+v", brk)
	}

	relinked := buildChain(links...)
	relinked[2].PrevHash = "forged"
	if brk := VerifyChain(relinked); brk == nil || brk.Seq != 3 {
		t.Fatalf("VerifyChain(broken link) = %+v", brk)
	}

	gap := buildChain(links[0], links[2])
	if brk := VerifyChain(gap); brk == nil || brk.Seq != 3 {
		t.Fatalf("VerifyChain(gap) = %+v", brk)
	}
}

func TestAuditLinkHashCoversCorrection(t *testing.T) {
	base := AuditLink{WorkflowID: "wf-1", Seq: 4, Actor: "qm", Action: AuditCorrection, CreatedAt: "t"}
	withReason := base
	withReason.Reason = "typo"
	withTarget := base
	withTarget.CorrectsSeq = 2

	if base.Hash("") == withReason.Hash("") || base.Hash("") == withTarget.Hash("") {
		t.Fatalf("hash ignores correction fields")
	}
	if base.Hash("") == base.Hash("x") {
		t.Fatalf("hash ignores previous hash")
	}
}
