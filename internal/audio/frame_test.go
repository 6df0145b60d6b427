package audio

import "testing"

func TestRingBufferEvictsOldest(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := uint64(1); i <= 5; i++ {
		rb.Push(Frame{Seq: i})
	}

	if rb.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", rb.Len())
	}

	snap := rb.Snapshot()
	want := []uint64{3, 4, 5}
	for i, f := range snap {
		if f.Seq != want[i] {
			t.Errorf("snap[%d].Seq = %d, want %d", i, f.Seq, want[i])
		}
	}
}

func TestRingBufferUnderfull(t *testing.T) {
	rb := NewRingBuffer(5)
	rb.Push(Frame{Seq: 1})
	rb.Push(Frame{Seq: 2})

	if rb.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", rb.Len())
	}

	snap := rb.Snapshot()
	if len(snap) != 2 || snap[0].Seq != 1 || snap[1].Seq != 2 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestNewRingBufferClampsCapacity(t *testing.T) {
	rb := NewRingBuffer(0)
	rb.Push(Frame{Seq: 1})
	rb.Push(Frame{Seq: 2})

	if rb.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", rb.Len())
	}
	if rb.Snapshot()[0].Seq != 2 {
		t.Errorf("capacity-1 buffer should keep only the latest frame")
	}
}
