package history

// Option configures a Log at construction.
type Option[T any] func(*Log[T])

// WithCapacity sets the maximum number of retained snapshots. Values below 1
// are ignored, leaving DefaultCapacity in place.
func WithCapacity[T any](n int) Option[T] {
	return func(l *Log[T]) {
		if n >= 1 {
			l.capacity = n
		}
	}
}

// WithEvictionFunc installs a callback invoked once per snapshot dropped by
// capacity eviction, in eviction order (oldest first). The callback runs
// synchronously after the evicting operation has released the log's internal
// lock, so it may call back into the log. Hosts use it to surface the loss of
// early history.
func WithEvictionFunc[T any](fn func(Record)) Option[T] {
	return func(l *Log[T]) {
		l.onEvict = fn
	}
}
