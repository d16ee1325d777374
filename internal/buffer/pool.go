// Package buffer provides the fixed-slot pool backing pending encode state.
package buffer

// NoSlot is returned by Acquire when the pool is exhausted.
const NoSlot = -1

// Pool hands out fixed-capacity slots from a single backing slab. A slot is
// exclusive to its owner between Acquire and Release.
type Pool struct {
	slotCapacity int
	slab         []byte
	keys         []uint64
	used         []bool
	free         []int
}

// NewPool creates a pool of slots fixed-capacity buffers.
func NewPool(slots, slotCapacity int) *Pool {
	p := &Pool{
		slotCapacity: slotCapacity,
		slab:         make([]byte, slots*slotCapacity),
		keys:         make([]uint64, slots),
		used:         make([]bool, slots),
		free:         make([]int, 0, slots),
	}
	for i := slots - 1; i >= 0; i-- {
		p.free = append(p.free, i)
	}
	return p
}

// Acquire reserves a slot under key, or returns NoSlot when exhausted.
func (p *Pool) Acquire(key uint64) int {
	if len(p.free) == 0 {
		return NoSlot
	}
	slot := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	p.keys[slot] = key
	p.used[slot] = true
	return slot
}

// Buffer returns the backing bytes of an acquired slot.
func (p *Pool) Buffer(slot int) []byte {
	if slot < 0 || slot >= len(p.used) || !p.used[slot] {
		panic("buffer: slot not acquired")
	}
	return p.slab[slot*p.slotCapacity : (slot+1)*p.slotCapacity]
}

// Release returns a slot to the pool. Releasing a slot that is not held
// panics; the slot lifecycle is an invariant of the owner.
func (p *Pool) Release(slot int) {
	if slot < 0 || slot >= len(p.used) || !p.used[slot] {
		panic("buffer: release of unacquired slot")
	}
	p.used[slot] = false
	p.keys[slot] = 0
	p.free = append(p.free, slot)
}

// Acquired reports how many slots are currently held.
func (p *Pool) Acquired() int {
	return len(p.used) - len(p.free)
}
