package text

import (
	"errors"
	"sync"
	"testing"
)

func TestBufferApply(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		edit   Edit
		want   string
		change Change
	}{
		{
			name:   "insert in line",
			text:   "hello world",
			edit:   NewInsert(Point{0, 5}, ","),
			want:   "hello, world",
			change: Change{OldStartLine: 0, OldEndLine: 0, NewEndLine: 0, Version: 2},
		},
		{
			name:   "insert newline",
			text:   "ab\ncd",
			edit:   NewInsert(Point{0, 1}, "\n"),
			want:   "a\nb\ncd",
			change: Change{OldStartLine: 0, OldEndLine: 0, NewEndLine: 1, Version: 2},
		},
		{
			name:   "delete across lines",
			text:   "one\ntwo\nthree",
			edit:   NewDelete(NewRange(Point{0, 3}, Point{2, 0})),
			want:   "onethree",
			change: Change{OldStartLine: 0, OldEndLine: 2, NewEndLine: 0, Version: 2},
		},
		{
			name:   "replace",
			text:   "x = 1\ny = 2",
			edit:   NewEdit(NewRange(Point{1, 4}, Point{1, 5}), "3\nz = 4"),
			want:   "x = 1\ny = 3\nz = 4",
			change: Change{OldStartLine: 1, OldEndLine: 1, NewEndLine: 2, Version: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuffer(tt.text)
			snap, changes, err := b.Apply(tt.edit)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if got := snap.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
			if len(changes) != 1 || changes[0] != tt.change {
				t.Errorf("changes = %v, want [%v]", changes, tt.change)
			}
			if b.Version() != 2 {
				t.Errorf("Version() = %d, want 2", b.Version())
			}
		})
	}
}

func TestBufferApplyErrors(t *testing.T) {
	b := NewBuffer("abc\ndef")

	_, _, err := b.Apply(NewInsert(Point{5, 0}, "x"))
	if !errors.Is(err, ErrRangeOutOfBounds) {
		t.Errorf("line out of range: err = %v", err)
	}
	_, _, err = b.Apply(NewInsert(Point{0, 4}, "x"))
	if !errors.Is(err, ErrRangeOutOfBounds) {
		t.Errorf("column out of range: err = %v", err)
	}
	_, _, err = b.Apply(NewDelete(NewRange(Point{1, 0}, Point{0, 0})))
	if !errors.Is(err, ErrInvalidRange) {
		t.Errorf("reversed range: err = %v", err)
	}

	// A failing edit in a batch leaves the buffer untouched.
	_, _, err = b.Apply(NewInsert(Point{0, 0}, "ok"), NewInsert(Point{9, 0}, "bad"))
	if err == nil {
		t.Fatal("expected error")
	}
	if b.Text() != "abc\ndef" || b.Version() != 1 {
		t.Errorf("buffer modified by failed batch: %q v%d", b.Text(), b.Version())
	}
}

func TestBufferBatchVersions(t *testing.T) {
	b := NewBuffer("a", WithVersion(10))
	snap, changes, err := b.Apply(
		NewInsert(Point{0, 1}, "b"),
		NewInsert(Point{0, 0}, ""), // no-op
		NewInsert(Point{0, 2}, "\nc"),
	)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Version() != 12 {
		t.Errorf("Version() = %d, want 12", snap.Version())
	}
	if len(changes) != 2 || changes[0].Version != 11 || changes[1].Version != 12 {
		t.Errorf("changes = %v", changes)
	}
	if snap.Text() != "ab\nc" {
		t.Errorf("Text() = %q", snap.Text())
	}
}

func TestBufferSnapshotsImmutable(t *testing.T) {
	b := NewBuffer("one")
	before := b.Snapshot()
	if _, _, err := b.Replace("two\nthree"); err != nil {
		t.Fatal(err)
	}
	if before.Text() != "one" {
		t.Errorf("old snapshot changed: %q", before.Text())
	}
	if b.Text() != "two\nthree" {
		t.Errorf("Text() = %q", b.Text())
	}
}

func TestBufferSubscribeOrder(t *testing.T) {
	b := NewBuffer("")

	var (
		mu       sync.Mutex
		versions []uint64
	)
	unsub := b.Subscribe(func(snap *Snapshot, c Change) {
		mu.Lock()
		defer mu.Unlock()
		if snap.Version() != c.Version {
			t.Errorf("snapshot v%d delivered with change v%d", snap.Version(), c.Version)
		}
		versions = append(versions, c.Version)
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := b.Apply(NewInsert(Point{0, 0}, "x")); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	if len(versions) != 20 {
		t.Fatalf("got %d notifications, want 20", len(versions))
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] != versions[i-1]+1 {
			t.Fatalf("notifications out of order: %v", versions)
		}
	}
	mu.Unlock()

	unsub()
	unsub()
	if _, _, err := b.Apply(NewInsert(Point{0, 0}, "y")); err != nil {
		t.Fatal(err)
	}
	if len(versions) != 20 {
		t.Errorf("listener called after unsubscribe")
	}
}
