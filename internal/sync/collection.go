package sync

// Record is anything with a stable identity.
type Record interface {
	RecordID() string
}

// maxEvicted bounds how many trimmed-out ids a collection remembers.
const maxEvicted = 1024

// Collection is a most-recent-first list of records with unique ids.
// Mutations never write into a slice that an earlier copy still holds.
type Collection[T Record] struct {
	items []T
	limit int

	// evicted holds ids trimmed off the tail, oldest first, so a late
	// redelivery of one is still recognised as a duplicate.
	evicted []string
}

// NewCollection creates an empty collection holding at most limit records.
// A limit of zero means unbounded.
func NewCollection[T Record](limit int) Collection[T] {
	return Collection[T]{limit: limit}
}

// Items returns the records, newest first.
func (c Collection[T]) Items() []T { return c.items }

// Len returns the number of records.
func (c Collection[T]) Len() int { return len(c.items) }

// Index returns the position of id, or -1.
func (c Collection[T]) Index(id string) int {
	for i, item := range c.items {
		if item.RecordID() == id {
			return i
		}
	}
	return -1
}

// Seen reports whether id is mirrored or was trimmed off the tail.
func (c Collection[T]) Seen(id string) bool {
	if c.Index(id) >= 0 {
		return true
	}
	for _, e := range c.evicted {
		if e == id {
			return true
		}
	}
	return false
}

// Get returns the record with the given id.
func (c Collection[T]) Get(id string) (T, bool) {
	if i := c.Index(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Reset replaces the contents with items, which must already be ordered
// newest first. Later duplicates of an id are dropped.
func (c *Collection[T]) Reset(items []T) {
	seen := make(map[string]bool, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		if seen[item.RecordID()] {
			continue
		}
		seen[item.RecordID()] = true
		out = append(out, item)
	}
	c.items = c.trim(out)
}

// Prepend adds item at the front. It reports false, leaving the collection
// unchanged, when the id is already present or was trimmed earlier.
func (c *Collection[T]) Prepend(item T) bool {
	if c.Seen(item.RecordID()) {
		return false
	}
	out := make([]T, 0, len(c.items)+1)
	out = append(out, item)
	out = append(out, c.items...)
	c.items = c.trim(out)
	return true
}

// Merge prepends the records of newer, ordered newest first, that are not
// already seen, keeping their order. It returns the records it added.
func (c *Collection[T]) Merge(newer []T) []T {
	var added []T
	for i := len(newer) - 1; i >= 0; i-- {
		if c.Prepend(newer[i]) {
			added = append(added, newer[i])
		}
	}
	return added
}

// Replace swaps in item for the record with the same id.
func (c *Collection[T]) Replace(item T) bool {
	i := c.Index(item.RecordID())
	if i < 0 {
		return false
	}
	out := make([]T, len(c.items))
	copy(out, c.items)
	out[i] = item
	c.items = out
	return true
}

// Remove deletes the record with the given id and returns it.
func (c *Collection[T]) Remove(id string) (T, bool) {
	i := c.Index(id)
	if i < 0 {
		var zero T
		return zero, false
	}
	removed := c.items[i]
	out := make([]T, 0, len(c.items)-1)
	out = append(out, c.items[:i]...)
	out = append(out, c.items[i+1:]...)
	c.items = out
	return removed, true
}

// trim cuts items to the limit and records the dropped ids.
func (c *Collection[T]) trim(items []T) []T {
	if c.limit <= 0 || len(items) <= c.limit {
		return items
	}
	dropped := items[c.limit:]
	evicted := make([]string, 0, len(c.evicted)+len(dropped))
	evicted = append(evicted, c.evicted...)
	for i := len(dropped) - 1; i >= 0; i-- {
		evicted = append(evicted, dropped[i].RecordID())
	}
	if len(evicted) > maxEvicted {
		evicted = evicted[len(evicted)-maxEvicted:]
	}
	c.evicted = evicted
	return items[:c.limit]
}
