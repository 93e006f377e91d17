package registry

import (
	"fmt"
	"sort"
)

// The snapshot ledger is sparse: each party (including GlobalParty) keeps an
// ordered list of the frame indices at which its view actually changed. The
// view "as of" frame S is the content of the greatest checkpoint <= S, or
// all-zero when no such checkpoint exists. Before the first write touching a
// party within the open frame, the party's latest checkpoint is copied
// forward into a fresh checkpoint at the open frame, so closed checkpoints
// are never mutated.

func countsToMap(counts []TagCount) map[string]uint64 {
	out := make(map[string]uint64, len(counts))
	for _, tc := range counts {
		out[tc.Tag] = tc.Count
	}
	return out
}

func mapToCounts(view map[string]uint64) []TagCount {
	out := make([]TagCount, 0, len(view))
	for tag, count := range view {
		if count == 0 {
			continue
		}
		out = append(out, TagCount{Tag: tag, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// frameAtOrBefore returns the greatest checkpoint frame <= s from an ordered
// list, using binary search.
func frameAtOrBefore(frames []uint64, s uint64) (uint64, bool) {
	idx := sort.Search(len(frames), func(i int) bool { return frames[i] > s })
	if idx == 0 {
		return 0, false
	}
	return frames[idx-1], true
}

// viewAt loads a party's materialized view as of frame s. The caller is
// responsible for range-checking s against closed frames.
func (e *Engine) viewAt(party [20]byte, s uint64) (map[string]uint64, error) {
	frames, err := e.state.CheckpointList(party)
	if err != nil {
		return nil, err
	}
	frame, ok := frameAtOrBefore(frames, s)
	if !ok {
		return map[string]uint64{}, nil
	}
	counts, found, err := e.state.CheckpointCounts(party, frame)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("registry: checkpoint list references missing frame %d", frame)
	}
	return countsToMap(counts), nil
}

// materialize ensures the party has a checkpoint at the open frame, copying
// the latest checkpoint's content forward when needed. It returns the view at
// the open frame ready for mutation.
func (e *Engine) materialize(party [20]byte, open uint64) (map[string]uint64, error) {
	frames, err := e.state.CheckpointList(party)
	if err != nil {
		return nil, err
	}
	if n := len(frames); n > 0 && frames[n-1] == open {
		counts, found, err := e.state.CheckpointCounts(party, open)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("registry: checkpoint list references missing frame %d", open)
		}
		return countsToMap(counts), nil
	}

	// Copy the previous checkpoint forward. The destination must be empty;
	// anything else means the checkpoint list and content store disagree.
	if _, found, err := e.state.CheckpointCounts(party, open); err != nil {
		return nil, err
	} else if found {
		return nil, ErrCheckpointClash
	}
	view := map[string]uint64{}
	if n := len(frames); n > 0 {
		counts, found, err := e.state.CheckpointCounts(party, frames[n-1])
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("registry: checkpoint list references missing frame %d", frames[n-1])
		}
		view = countsToMap(counts)
	}
	if err := e.state.CheckpointAppend(party, open, mapToCounts(view)); err != nil {
		return nil, err
	}
	return view, nil
}

// adjustTag applies a +1/-1 delta for a tag to a party's view inside the open
// frame, materializing the checkpoint first when necessary.
func (e *Engine) adjustTag(party [20]byte, tag string, delta int64) error {
	open, err := e.state.OpenFrame()
	if err != nil {
		return err
	}
	view, err := e.materialize(party, open)
	if err != nil {
		return err
	}
	switch {
	case delta > 0:
		view[tag] += uint64(delta)
	case delta < 0:
		dec := uint64(-delta)
		if view[tag] < dec {
			return ErrCountUnderflow
		}
		view[tag] -= dec
	default:
		return nil
	}
	return e.state.CheckpointUpdate(party, open, mapToCounts(view))
}

// closedFrameCheck validates a historical query index: only frames that have
// been closed by a snapshot may be read.
func (e *Engine) closedFrameCheck(s uint64) error {
	open, err := e.state.OpenFrame()
	if err != nil {
		return err
	}
	if s >= open {
		return ErrSnapshotOutOfRange
	}
	return nil
}
