package intake

// Option applies a configuration option to the Queue.
type Option func(*Queue)

// WithCapacity bounds the queue.
func WithCapacity(capacity int) Option {
	return func(q *Queue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}
