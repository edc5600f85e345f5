package engine

import "container/list"

// handle addresses a live order inside an orderArena. Handles are recycled
// once the order leaves the book.
type handle uint32

// slot is the arena's record for one live order and its place in the book.
// The arena holds the only copy of a resting order.
type slot struct {
	order Order
	level *priceLevel
	elem  *list.Element
}

// orderArena owns every live order of a book. The sides, the price levels and
// the id index refer to orders only through handles.
type orderArena struct {
	slots []slot
	free  []handle
}

func (a *orderArena) alloc(o Order) handle {
	if n := len(a.free); n > 0 {
		h := a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[h] = slot{order: o}
		return h
	}
	a.slots = append(a.slots, slot{order: o})
	return handle(len(a.slots) - 1)
}

func (a *orderArena) get(h handle) *slot {
	return &a.slots[h]
}

func (a *orderArena) release(h handle) {
	a.slots[h] = slot{}
	a.free = append(a.free, h)
}

// live returns the number of allocated slots.
func (a *orderArena) live() int {
	return len(a.slots) - len(a.free)
}
