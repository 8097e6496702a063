package capture

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Queue", func() {
	var q *Queue

	BeforeEach(func() {
		q = NewQueue(3)
	})

	It("should keep arrival order", func() {
		Expect(q.Push(1)).To(BeTrue())
		Expect(q.Push(2)).To(BeTrue())
		Expect(q.Push(3)).To(BeTrue())

		Expect(q.Drain()).To(Equal([]uint64{1, 2, 3}))
	})

	It("should reject beats when full", func() {
		q.Push(1)
		q.Push(2)
		q.Push(3)

		Expect(q.CanPush()).To(BeFalse())
		Expect(q.Push(4)).To(BeFalse())
		Expect(q.Len()).To(Equal(3))
	})

	It("should accept again after draining", func() {
		q.Push(1)
		q.Push(2)
		q.Push(3)
		q.Drain()

		Expect(q.Len()).To(Equal(0))
		Expect(q.Push(4)).To(BeTrue())

		word, ok := q.Pop()
		Expect(ok).To(BeTrue())
		Expect(word).To(Equal(uint64(4)))
	})

	It("should wrap around", func() {
		q.Push(1)
		q.Push(2)
		q.Pop()
		q.Push(3)
		q.Push(4)

		Expect(q.Drain()).To(Equal([]uint64{2, 3, 4}))
	})

	It("should return nothing when empty", func() {
		_, ok := q.Pop()
		Expect(ok).To(BeFalse())
		Expect(q.Drain()).To(BeNil())
	})

	It("should clear", func() {
		q.Push(1)
		q.Clear()

		Expect(q.Len()).To(Equal(0))
		Expect(q.Capacity()).To(Equal(3))
	})
})
