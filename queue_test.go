package can2040

import "testing"

func TestTxSlotEncodeComputesMaskedCRC(t *testing.T) {
	msg := Msg{ID: 0x42, Length: 2, Data: [8]byte{0x11, 0x22}}
	var slot txSlot
	slot.encode(msg)
	if slot.crc&^uint32(0x7fff) != 0 {
		t.Fatalf("crc = %#x has bits set above the 15-bit field", slot.crc)
	}
	if slot.stuffedWords == 0 || slot.stuffedWords > maxStuffedWords {
		t.Fatalf("stuffedWords = %d, out of range", slot.stuffedWords)
	}
}

func TestTxQueuePushPullInvariant(t *testing.T) {
	var q txQueue
	for i := 0; i < txQueueSize; i++ {
		if !q.push(Msg{ID: uint32(i)}) {
			t.Fatalf("push %d should have succeeded", i)
		}
	}
	if !q.full() {
		t.Fatalf("queue should report full at capacity")
	}
	if q.push(Msg{ID: 99}) {
		t.Fatalf("push into a full queue should fail")
	}

	for i := 0; i < txQueueSize; i++ {
		slot, ok := q.front()
		if !ok {
			t.Fatalf("front() should have a slot at iteration %d", i)
		}
		if slot.msg.ID != uint32(i) {
			t.Fatalf("front().msg.ID = %d, want %d", slot.msg.ID, i)
		}
		q.advance()
	}
	if q.pending() != 0 {
		t.Fatalf("pending() = %d, want 0 after draining", q.pending())
	}
	if _, ok := q.front(); ok {
		t.Fatalf("front() on an empty queue should report false")
	}
}

func TestTxQueuePendingTracksPushesAndAdvances(t *testing.T) {
	var q txQueue
	q.push(Msg{ID: 1})
	q.push(Msg{ID: 2})
	q.push(Msg{ID: 3})
	if got := q.pending(); got != 3 {
		t.Fatalf("pending() = %d, want 3", got)
	}
	q.advance()
	if got := q.pending(); got != 2 {
		t.Fatalf("pending() = %d, want 2 after one advance", got)
	}
}

func TestTxQueueWrapsAroundRingPositions(t *testing.T) {
	var q txQueue
	// Push and advance past the ring's length several times so pushPos
	// and pullPos both exceed txQueueSize, exercising pos()'s modulo.
	for round := 0; round < 3; round++ {
		for i := 0; i < txQueueSize; i++ {
			if !q.push(Msg{ID: uint32(round*txQueueSize + i)}) {
				t.Fatalf("round %d push %d should have succeeded", round, i)
			}
			q.advance()
		}
	}
	if q.pending() != 0 {
		t.Fatalf("pending() = %d, want 0", q.pending())
	}
}
