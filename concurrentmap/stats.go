package concurrentmap

// Stats is a point-in-time, approximate snapshot of a Map's size and
// resize activity.
type Stats struct {
	BucketCount int
	Size        int
	Resizes     int64
}

// Stats returns a snapshot of the map's current bucket count, size, and
// number of resizes completed so far.
func (m *Map[K, V]) Stats() Stats {
	acc := m.current.Load()
	return Stats{
		BucketCount: acc.count,
		Size:        int(m.size.Load()),
		Resizes:     m.resizes.Load(),
	}
}
