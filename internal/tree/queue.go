package tree

// queue is a FIFO backed by a slice with a moving head, so dequeue never
// shifts the remaining items.
type queue[T any] struct {
	items []T
	head  int
}

func (q *queue[T]) push(item T) {
	q.items = append(q.items, item)
}

func (q *queue[T]) pop() T {
	item := q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return item
}

func (q *queue[T]) len() int {
	return len(q.items) - q.head
}
