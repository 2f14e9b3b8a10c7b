package services

// orderedSums is a group-by accumulator that remembers the order in which
// keys were first seen.
type orderedSums[V any] struct {
	index map[string]int
	keys  []string
	vals  []V
}

func newOrderedSums[V any]() *orderedSums[V] {
	return &orderedSums[V]{index: make(map[string]int)}
}

// at returns the accumulator for key, creating a zero one on first sight.
// The pointer is only valid until the next call to at.
func (o *orderedSums[V]) at(key string) *V {
	i, ok := o.index[key]
	if !ok {
		i = len(o.keys)
		o.index[key] = i
		o.keys = append(o.keys, key)
		var zero V
		o.vals = append(o.vals, zero)
	}
	return &o.vals[i]
}

func (o *orderedSums[V]) len() int {
	return len(o.keys)
}

func (o *orderedSums[V]) each(fn func(key string, v V)) {
	for i, k := range o.keys {
		fn(k, o.vals[i])
	}
}
