// Package capture holds the read beats returned by the PHY until the
// issuing collaborator drains them.
package capture

// A Queue is a bounded ring buffer of captured read-data words, in PHY
// arrival order. The mission sequencer appends; exactly one consumer drains.
// A full queue rejects new beats so that data is never lost silently.
type Queue struct {
	words    []uint64
	head     int
	size     int
	capacity int
}

// NewQueue creates a queue that holds at most capacity beats.
func NewQueue(capacity int) *Queue {
	return &Queue{
		words:    make([]uint64, capacity),
		capacity: capacity,
	}
}

// CanPush reports whether the queue has room for one more beat.
func (q *Queue) CanPush() bool {
	return q.size < q.capacity
}

// Push appends one beat. It reports false when the queue is full, in which
// case the beat is rejected.
func (q *Queue) Push(word uint64) bool {
	if q.size >= q.capacity {
		return false
	}

	q.words[(q.head+q.size)%q.capacity] = word
	q.size++

	return true
}

// Pop removes and returns the oldest beat. The second return value is false
// when the queue is empty.
func (q *Queue) Pop() (uint64, bool) {
	if q.size == 0 {
		return 0, false
	}

	word := q.words[q.head]
	q.head = (q.head + 1) % q.capacity
	q.size--

	return word, true
}

// Drain removes and returns all beats in arrival order.
func (q *Queue) Drain() []uint64 {
	if q.size == 0 {
		return nil
	}

	out := make([]uint64, 0, q.size)
	for {
		word, ok := q.Pop()
		if !ok {
			break
		}
		out = append(out, word)
	}

	return out
}

// Len returns the number of beats currently held.
func (q *Queue) Len() int {
	return q.size
}

// Capacity returns the maximum number of beats the queue can hold.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Clear discards everything in the queue.
func (q *Queue) Clear() {
	q.head = 0
	q.size = 0
}
