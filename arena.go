package l0

// Arena is a bump allocator backing every L0 value, string and environment
// frame. It is modeled on the block-chain allocator in
// original_source/cheng_c/src/l0_arena.c: a chain of fixed-minimum-size
// blocks with a bump cursor, growing by a new block when a request does not
// fit the current one.
//
// Go values are garbage collected, so "ownership" here is rendered as a
// generation counter rather than manual frees (the safearena idiom, minus
// its use of the experimental arena package and unsafe pointers, which this
// module has no need for): Reset and Destroy both bump the generation, and
// Live reports whether a *Value allocated earlier still belongs to the
// arena's current generation. Nothing in the evaluator or emitter relies on
// Live for correctness — Go's GC keeps the backing memory valid regardless
// — but it lets tests assert that allocations made before a reset are no
// longer valid afterward.
type Arena struct {
	blocks    []*block
	current   int
	blockSize int
	maxBytes  int // 0 means unbounded; set via Config to make exhaustion testable
	totalUsed int
	generation uint64
	valueCount int
	destroyed bool
}

type block struct {
	buf  []byte
	used int
}

const defaultBlockSize = 64 * 1024
const defaultAlignment = 8

// NewArena creates an arena with an initial block of at least
// initialBlockBytes (defaultBlockSize if zero or negative).
func NewArena(initialBlockBytes int) *Arena {
	size := initialBlockBytes
	if size <= 0 {
		size = defaultBlockSize
	}
	a := &Arena{blockSize: size}
	a.blocks = []*block{{buf: make([]byte, size)}}
	return a
}

// NewArenaFromConfig creates an arena whose initial block size and total
// allocation ceiling come from cfg's "arena.initial_block_bytes" and
// "arena.max_bytes" settings instead of this module's defaults — the hook
// test harnesses use to make exhaustion reachable with a tiny budget rather
// than calling SetMaxBytes after construction.
func NewArenaFromConfig(cfg *Config) *Arena {
	a := NewArena(cfg.GetInt("arena.initial_block_bytes"))
	a.SetMaxBytes(cfg.GetInt("arena.max_bytes"))
	return a
}

// SetMaxBytes bounds the arena's total allocation, purely so allocation
// failure is reachable in tests; zero means unbounded.
func (a *Arena) SetMaxBytes(n int) { a.maxBytes = n }

func isPowerOfTwo(n int) bool { return n > 0 && n&(n-1) == 0 }

func alignUp(offset, align int) int {
	return (offset + align - 1) &^ (align - 1)
}

// Alloc reserves n bytes aligned to align (a power of two; zero means
// defaultAlignment) from the current block, growing the chain if needed.
func (a *Arena) Alloc(n, align int) ([]byte, error) {
	if a.destroyed {
		return nil, ArenaError("allocation on destroyed arena")
	}
	if align == 0 {
		align = defaultAlignment
	}
	if !isPowerOfTwo(align) {
		return nil, ArenaError("alignment %d is not a power of two", align)
	}
	if n < 0 {
		return nil, ArenaError("negative allocation size %d", n)
	}
	if n == 0 {
		// A zero-size allocation returns a valid, non-nil slice without
		// materially advancing the cursor (spec §4.1).
		return a.blocks[a.current].buf[0:0:0], nil
	}

	cur := a.blocks[a.current]
	start := alignUp(cur.used, align)
	if start+n > len(cur.buf) {
		size := a.blockSize
		if n+defaultAlignment > size {
			size = n + defaultAlignment
		}
		if a.maxBytes > 0 && a.totalUsed+size > a.maxBytes {
			return nil, ArenaError("arena exhausted: requested %d bytes, %d/%d used", n, a.totalUsed, a.maxBytes)
		}
		nb := &block{buf: make([]byte, size)}
		a.blocks = append(a.blocks, nb)
		a.current = len(a.blocks) - 1
		cur = nb
		start = 0
	}
	if a.maxBytes > 0 && a.totalUsed+n > a.maxBytes {
		return nil, ArenaError("arena exhausted: requested %d bytes, %d/%d used", n, a.totalUsed, a.maxBytes)
	}
	cur.used = start + n
	a.totalUsed += n
	return cur.buf[start : start+n : start+n], nil
}

// StrDup copies s into arena-owned memory and returns it as a Go string
// backed by that memory, matching the reference allocator's "symbols and
// strings own their bytes inside the arena" invariant (spec §4.2).
func (a *Arena) StrDup(s string) (string, error) {
	if len(s) == 0 {
		return "", nil
	}
	buf, err := a.Alloc(len(s), 1)
	if err != nil {
		return "", err
	}
	copy(buf, s)
	return string(buf), nil
}

// newValue bumps the arena's value-allocation accounting and stamps v with
// the arena's current generation, so Live can later detect use of a value
// allocated before a Reset/Destroy.
func (a *Arena) newValue(kind Kind) *Value {
	a.valueCount++
	return &Value{kind: kind, arena: a, generation: a.generation}
}

// Live reports whether v was allocated by this arena and has not been
// invalidated by a later Reset or Destroy. The global Nil singleton (and a
// nil pointer) needs no arena and is always reported live; values from
// other arenas never are.
func (a *Arena) Live(v *Value) bool {
	if v == nil || v.kind == KindNil {
		return true
	}
	return v.arena == a && v.generation == a.generation && !a.destroyed
}

// Reset rewinds every block's cursor to zero and makes the head of the
// chain current again; every previously returned pointer is considered
// invalid (tracked via the generation counter — see Live).
func (a *Arena) Reset() {
	for _, b := range a.blocks {
		b.used = 0
	}
	a.current = 0
	a.totalUsed = 0
	a.valueCount = 0
	a.generation++
}

// Destroy releases every block. The arena must not be used afterwards.
func (a *Arena) Destroy() {
	a.blocks = nil
	a.destroyed = true
	a.generation++
}

// BlockCount reports the number of blocks currently chained, mostly useful
// for the reset-idempotency property test (spec §8): after Reset, allocations
// that fit in the first block succeed without growing the chain.
func (a *Arena) BlockCount() int { return len(a.blocks) }
