package registry

import (
	"errors"
	"testing"
)

func TestHistoricalViewsAreImmutable(t *testing.T) {
	engine, state, _, key := newTestEngine(t)
	owner := addr(0x01)

	id := proposeOne(t, engine, state, key, owner, "schema")
	if err := engine.Accept(id); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := engine.CloseSnapshot(); err != nil {
		t.Fatalf("close snapshot: %v", err)
	}

	// Mutations in the next frame must not leak into the closed frame.
	id2 := proposeOne(t, engine, state, key, owner, "schema")
	if err := engine.Accept(id2); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := engine.CloseSnapshot(); err != nil {
		t.Fatalf("close snapshot: %v", err)
	}

	countsAt0, err := engine.OwnerTagCountsAt(0, owner)
	if err != nil {
		t.Fatalf("counts at 0: %v", err)
	}
	if len(countsAt0) != 1 || countsAt0[0].Count != 1 {
		t.Fatalf("closed frame mutated: %+v", countsAt0)
	}
	countsAt1, err := engine.OwnerTagCountsAt(1, owner)
	if err != nil {
		t.Fatalf("counts at 1: %v", err)
	}
	if len(countsAt1) != 1 || countsAt1[0].Count != 2 {
		t.Fatalf("unexpected counts at 1: %+v", countsAt1)
	}
}

func TestCheckpointSparsity(t *testing.T) {
	engine, state, _, key := newTestEngine(t)
	owner := addr(0x01)

	id := proposeOne(t, engine, state, key, owner, "schema")
	if err := engine.Accept(id); err != nil {
		t.Fatalf("accept: %v", err)
	}
	// Close several frames with no activity for this owner.
	for i := 0; i < 5; i++ {
		if _, err := engine.CloseSnapshot(); err != nil {
			t.Fatalf("close snapshot: %v", err)
		}
	}
	frames, err := state.CheckpointList(owner)
	if err != nil {
		t.Fatalf("checkpoint list: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("idle frames must not materialize checkpoints, got %v", frames)
	}
	// The stale checkpoint still answers queries for every later frame.
	for s := uint64(0); s < 5; s++ {
		counts, err := engine.OwnerTagCountsAt(s, owner)
		if err != nil {
			t.Fatalf("counts at %d: %v", s, err)
		}
		if len(counts) != 1 || counts[0].Count != 1 {
			t.Fatalf("unexpected counts at %d: %+v", s, counts)
		}
	}
}

func TestHistoricalZeroBeforeFirstCheckpoint(t *testing.T) {
	engine, state, _, key := newTestEngine(t)
	early := addr(0x01)
	late := addr(0x02)

	id := proposeOne(t, engine, state, key, early, "schema")
	if err := engine.Accept(id); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := engine.CloseSnapshot(); err != nil {
		t.Fatalf("close snapshot: %v", err)
	}
	id2 := proposeOne(t, engine, state, key, late, "schema")
	if err := engine.Accept(id2); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := engine.CloseSnapshot(); err != nil {
		t.Fatalf("close snapshot: %v", err)
	}

	counts, err := engine.OwnerTagCountsAt(0, late)
	if err != nil {
		t.Fatalf("historical read before first checkpoint must succeed: %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("expected all-zero view, got %+v", counts)
	}
	pcts, err := engine.OwnerTagPercentageAt(0, late, []string{"schema"})
	if err != nil {
		t.Fatalf("percentage before first checkpoint: %v", err)
	}
	if pcts[0].Sign() != 0 {
		t.Fatalf("expected zero percentage, got %s", pcts[0])
	}
}

func TestSnapshotOutOfRange(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	if _, err := engine.TagCountsAt(0); !errors.Is(err, ErrSnapshotOutOfRange) {
		t.Fatalf("open frame must not be readable, got %v", err)
	}
	if _, err := engine.CloseSnapshot(); err != nil {
		t.Fatalf("close snapshot: %v", err)
	}
	if _, err := engine.TagCountsAt(0); err != nil {
		t.Fatalf("closed frame read: %v", err)
	}
	if _, err := engine.TagCountsAt(1); !errors.Is(err, ErrSnapshotOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
}

func TestConservationAcrossOwners(t *testing.T) {
	engine, state, _, key := newTestEngine(t)
	owners := [][20]byte{addr(0x01), addr(0x02), addr(0x03)}
	tags := []string{"schema", "schema", "rows"}

	for i := range owners {
		id := proposeOne(t, engine, state, key, owners[i], tags[i])
		if err := engine.Accept(id); err != nil {
			t.Fatalf("accept: %v", err)
		}
	}
	// Remove one in a later frame to exercise debits too.
	if _, err := engine.CloseSnapshot(); err != nil {
		t.Fatalf("close snapshot: %v", err)
	}
	if err := engine.Remove(addr(0xA0), 0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := engine.CloseSnapshot(); err != nil {
		t.Fatalf("close snapshot: %v", err)
	}

	for s := uint64(0); s < 2; s++ {
		global, err := engine.TagCountsAt(s)
		if err != nil {
			t.Fatalf("global at %d: %v", s, err)
		}
		sum := map[string]uint64{}
		for _, owner := range owners {
			counts, err := engine.OwnerTagCountsAt(s, owner)
			if err != nil {
				t.Fatalf("owner at %d: %v", s, err)
			}
			for _, tc := range counts {
				sum[tc.Tag] += tc.Count
			}
		}
		globalMap := map[string]uint64{}
		for _, tc := range global {
			globalMap[tc.Tag] = tc.Count
		}
		if len(sum) != len(globalMap) {
			t.Fatalf("conservation violated at %d: owners=%v global=%v", s, sum, globalMap)
		}
		for tag, count := range globalMap {
			if sum[tag] != count {
				t.Fatalf("conservation violated at %d for %q: owners=%d global=%d", s, tag, sum[tag], count)
			}
		}
	}
}

func TestOwnerTagPercentage(t *testing.T) {
	engine, state, _, key := newTestEngine(t)
	alice := addr(0x01)
	bob := addr(0x02)

	for _, fixture := range []struct {
		owner [20]byte
		tag   string
	}{
		{alice, "schema"}, {alice, "schema"}, {bob, "rows"},
	} {
		id := proposeOne(t, engine, state, key, fixture.owner, fixture.tag)
		if err := engine.Accept(id); err != nil {
			t.Fatalf("accept: %v", err)
		}
	}
	if _, err := engine.CloseSnapshot(); err != nil {
		t.Fatalf("close snapshot: %v", err)
	}

	pcts, err := engine.OwnerTagPercentageAt(0, alice, []string{"schema", "rows"})
	if err != nil {
		t.Fatalf("percentage: %v", err)
	}
	if pcts[0].String() != "1000000000000000000" {
		t.Fatalf("alice owns all of schema, got %s", pcts[0])
	}
	if pcts[1].Sign() != 0 {
		t.Fatalf("alice owns none of rows, got %s", pcts[1])
	}
}
