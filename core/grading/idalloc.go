package grading

import "sort"

// idAllocator hands out small positive ids, reusing freed ones (smallest first).
type idAllocator struct {
	free []int // sorted
	next int
}

func newIDAllocator() *idAllocator {
	return &idAllocator{next: 1}
}

func (a *idAllocator) Alloc() int {
	if len(a.free) > 0 {
		id := a.free[0]
		a.free = a.free[1:]
		return id
	}
	id := a.next
	a.next++
	return id
}

func (a *idAllocator) Free(id int) {
	if id <= 0 || id >= a.next {
		return
	}
	i := sort.SearchInts(a.free, id)
	if i < len(a.free) && a.free[i] == id {
		return
	}
	a.free = append(a.free, 0)
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = id
}

// Reset rebuilds the allocator so that `used` ids are taken and every gap below the highest one is free.
func (a *idAllocator) Reset(used []int) {
	taken := make(map[int]bool, len(used))
	max := 0
	for _, id := range used {
		if id <= 0 {
			continue
		}
		taken[id] = true
		if id > max {
			max = id
		}
	}
	a.free = a.free[:0]
	for id := 1; id < max; id++ {
		if !taken[id] {
			a.free = append(a.free, id)
		}
	}
	a.next = max + 1
}
