package bptree

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"blockindex/internal/blockdev"
)

const (
	testBlockSize = 256
	testKeySize   = 8
	testValSize   = 8
)

// pad right-pads s with NUL bytes to n, matching the fixed-width
// on-disk representation used throughout the concrete scenarios.
func pad(s string, n int) []byte {
	out := make([]byte, n)
	copy(out, s)
	return out
}

func newTestIndex(t *testing.T, numBlocks int64) (*Index, func()) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.idx")

	dev, err := blockdev.Create(path, testBlockSize, numBlocks)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	idx, err := Attach(dev, 0, testKeySize, testValSize, true)
	if err != nil {
		dev.Close()
		t.Fatalf("Attach(create=true): %v", err)
	}

	return idx, func() { dev.Close() }
}

// TestLookupRoundTrip is scenario S1: a single insert is retrievable.
func TestLookupRoundTrip(t *testing.T) {
	idx, cleanup := newTestIndex(t, 16)
	defer cleanup()

	key := pad("00000001", testKeySize)
	val := pad("A", testValSize)

	if err := idx.Insert(key, val); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := idx.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !bytes.Equal(got, val) {
		t.Errorf("Lookup(%q) = %q, want %q", key, got, val)
	}
}

// TestInsertNoOverwrite is scenario S2: a duplicate key conflicts and
// the first value written wins.
func TestInsertNoOverwrite(t *testing.T) {
	idx, cleanup := newTestIndex(t, 16)
	defer cleanup()

	key := pad("K", testKeySize)
	v1 := pad("V1", testValSize)
	v2 := pad("V2", testValSize)

	if err := idx.Insert(key, v1); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if err := idx.Insert(key, v2); !errors.Is(err, ErrConflict) {
		t.Fatalf("second Insert error = %v, want ErrConflict", err)
	}

	got, err := idx.Lookup(key)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !bytes.Equal(got, v1) {
		t.Errorf("Lookup(%q) = %q, want original %q", key, got, v1)
	}
}

// TestManyInsertsForceSplits is scenario S3: enough keys are inserted
// to force several leaf splits (a leaf holds 14 entries at this block
// size; the root absorbs the separators without itself splitting), and
// every key remains independently retrievable afterward.
func TestManyInsertsForceSplits(t *testing.T) {
	idx, cleanup := newTestIndex(t, 4096)
	defer cleanup()

	type kv struct{ k, v string }
	var pairs []kv
	for i := 1; i <= 40; i++ {
		pairs = append(pairs, kv{fmt.Sprintf("k%02d", i), fmt.Sprintf("v%02d", i)})
	}

	for _, p := range pairs {
		if err := idx.Insert(pad(p.k, testKeySize), pad(p.v, testValSize)); err != nil {
			t.Fatalf("Insert(%q): %v", p.k, err)
		}
	}

	for _, p := range pairs {
		got, err := idx.Lookup(pad(p.k, testKeySize))
		if err != nil {
			t.Fatalf("Lookup(%q): %v", p.k, err)
		}
		if !bytes.Equal(got, pad(p.v, testValSize)) {
			t.Errorf("Lookup(%q) = %q, want %q", p.k, got, p.v)
		}
	}

	if _, err := idx.Lookup(pad("k99", testKeySize)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(k99) error = %v, want ErrNotFound", err)
	}
}

// TestUpdateExisting is scenario S4: Update overwrites exactly the
// targeted key and leaves its neighbors untouched.
func TestUpdateExisting(t *testing.T) {
	idx, cleanup := newTestIndex(t, 4096)
	defer cleanup()

	for i := 1; i <= 40; i++ {
		k := fmt.Sprintf("k%02d", i)
		v := fmt.Sprintf("v%02d", i)
		if err := idx.Insert(pad(k, testKeySize), pad(v, testValSize)); err != nil {
			t.Fatalf("Insert(%q): %v", k, err)
		}
	}

	if err := idx.Update(pad("k20", testKeySize), pad("V_NEW", testValSize)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := idx.Lookup(pad("k20", testKeySize))
	if err != nil {
		t.Fatalf("Lookup(k20): %v", err)
	}
	if !bytes.Equal(got, pad("V_NEW", testValSize)) {
		t.Errorf("Lookup(k20) = %q, want V_NEW", got)
	}

	got, err = idx.Lookup(pad("k21", testKeySize))
	if err != nil {
		t.Fatalf("Lookup(k21): %v", err)
	}
	if !bytes.Equal(got, pad("v21", testValSize)) {
		t.Errorf("Lookup(k21) = %q, want v21 (unaffected by neighbor update)", got)
	}
}

// TestUpdateMissingKeyFails checks Update against an absent key.
func TestUpdateMissingKeyFails(t *testing.T) {
	idx, cleanup := newTestIndex(t, 16)
	defer cleanup()

	err := idx.Update(pad("ghost", testKeySize), pad("x", testValSize))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(missing) error = %v, want ErrNotFound", err)
	}
}

// TestOutOfSpaceKeepsInvariants is scenario S5: once the free list is
// exhausted, Insert fails cleanly and existing data is still
// consistent and retrievable.
func TestOutOfSpaceKeepsInvariants(t *testing.T) {
	idx, cleanup := newTestIndex(t, 4)
	defer cleanup()

	var inserted []string
	var outOfSpace error
	for i := 0; i < 200; i++ {
		k := fmt.Sprintf("k%04d", i)
		err := idx.Insert(pad(k, testKeySize), pad(k, testValSize))
		if err != nil {
			outOfSpace = err
			break
		}
		inserted = append(inserted, k)
	}

	if !errors.Is(outOfSpace, ErrOutOfSpace) {
		t.Fatalf("expected to exhaust the free list with ErrOutOfSpace, got %v", outOfSpace)
	}
	if len(inserted) == 0 {
		t.Fatal("expected at least one successful insert before exhaustion")
	}

	for _, k := range inserted {
		got, err := idx.Lookup(pad(k, testKeySize))
		if err != nil {
			t.Fatalf("Lookup(%q) after exhaustion: %v", k, err)
		}
		if !bytes.Equal(got, pad(k, testValSize)) {
			t.Errorf("Lookup(%q) = %q, want %q", k, got, k)
		}
	}
}

// TestDetachReattachPersists is scenario S6: data survives a
// Detach/Attach(create=false) cycle through a fresh device handle.
func TestDetachReattachPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.idx")

	dev, err := blockdev.Create(path, testBlockSize, 4096)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	idx, err := Attach(dev, 0, testKeySize, testValSize, true)
	if err != nil {
		t.Fatalf("Attach(create=true): %v", err)
	}

	for i := 1; i <= 20; i++ {
		k := fmt.Sprintf("k%02d", i)
		if err := idx.Insert(pad(k, testKeySize), pad(k, testValSize)); err != nil {
			t.Fatalf("Insert(%q): %v", k, err)
		}
	}
	if err := idx.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	dev2, err := blockdev.Open(path, testBlockSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dev2.Close()

	idx2, err := Attach(dev2, 0, testKeySize, testValSize, false)
	if err != nil {
		t.Fatalf("Attach(create=false): %v", err)
	}

	for i := 1; i <= 20; i++ {
		k := fmt.Sprintf("k%02d", i)
		got, err := idx2.Lookup(pad(k, testKeySize))
		if err != nil {
			t.Fatalf("Lookup(%q) after reattach: %v", k, err)
		}
		if !bytes.Equal(got, pad(k, testValSize)) {
			t.Errorf("Lookup(%q) after reattach = %q, want %q", k, got, k)
		}
	}
}

// TestDeleteUnimplemented documents that deletion is explicitly out of
// scope.
func TestDeleteUnimplemented(t *testing.T) {
	idx, cleanup := newTestIndex(t, 16)
	defer cleanup()

	if err := idx.Delete(pad("anything", testKeySize)); !errors.Is(err, ErrUnimplemented) {
		t.Errorf("Delete error = %v, want ErrUnimplemented", err)
	}
}

// TestWrongSizedKeyRejected checks the fixed-width contract is
// enforced at the API boundary rather than silently truncated/padded.
func TestWrongSizedKeyRejected(t *testing.T) {
	idx, cleanup := newTestIndex(t, 16)
	defer cleanup()

	err := idx.Insert([]byte("short"), pad("v", testValSize))
	if err == nil {
		t.Error("Insert with undersized key: expected error, got nil")
	}
}

// TestCapacityNeverExceeded walks every reachable node after a large
// run of inserts and checks invariant 7: num_keys never exceeds the
// format-derived capacity.
func TestCapacityNeverExceeded(t *testing.T) {
	idx, cleanup := newTestIndex(t, 4096)
	defer cleanup()

	for i := 0; i < 200; i++ {
		k := fmt.Sprintf("k%04d", i)
		if err := idx.Insert(pad(k, testKeySize), pad(k, testValSize)); err != nil {
			if errors.Is(err, ErrOutOfSpace) {
				break
			}
			t.Fatalf("Insert(%q): %v", k, err)
		}
	}

	var walk func(int64) error
	walk = func(nodeIdx int64) error {
		node, err := idx.alloc.readNode(nodeIdx)
		if err != nil {
			return err
		}
		switch node.Kind {
		case KindInterior, KindRoot:
			if node.NumKeys > node.slotsInterior() {
				t.Errorf("block %d: NumKeys=%d exceeds capacity %d", nodeIdx, node.NumKeys, node.slotsInterior())
			}
			_, ptrs := node.interiorEntries()
			for _, p := range ptrs {
				if err := walk(p); err != nil {
					return err
				}
			}
		case KindLeaf:
			if node.NumKeys > node.slotsLeaf() {
				t.Errorf("block %d: NumKeys=%d exceeds capacity %d", nodeIdx, node.NumKeys, node.slotsLeaf())
			}
		}
		return nil
	}

	if err := walk(idx.alloc.RootBlock()); err != nil {
		t.Fatalf("walk: %v", err)
	}
}

// TestOrderingSorted checks invariant: the sorted-key-val dump visits
// keys in strictly ascending order.
func TestOrderingSorted(t *testing.T) {
	idx, cleanup := newTestIndex(t, 4096)
	defer cleanup()

	keys := []string{"k05", "k01", "k09", "k03", "k07", "k02", "k08", "k04", "k06"}
	for _, k := range keys {
		if err := idx.Insert(pad(k, testKeySize), pad(k, testValSize)); err != nil {
			t.Fatalf("Insert(%q): %v", k, err)
		}
	}

	var buf bytes.Buffer
	if err := idx.Display(&buf, DisplaySortedKeyVal); err != nil {
		t.Fatalf("Display: %v", err)
	}

	var last string
	for _, line := range bytes.Split(buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		cur := string(line)
		if last != "" && cur <= last {
			t.Errorf("sorted dump not strictly ascending: %q came after %q", cur, last)
		}
		last = cur
	}
}

// TestDisplayDepthDotTolerant exercises the DOT renderer and checks
// it does not error out on a freshly created, still-empty tree.
func TestDisplayDepthDotTolerant(t *testing.T) {
	idx, cleanup := newTestIndex(t, 16)
	defer cleanup()

	var buf bytes.Buffer
	if err := idx.Display(&buf, DisplayDepthDot); err != nil {
		t.Fatalf("Display(dot): %v", err)
	}
	if buf.Len() == 0 {
		t.Error("Display(dot) produced no output")
	}
}
