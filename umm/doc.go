// Package umm provides a block-indexed heap allocator for small, fixed
// memory regions.
//
// # Overview
//
// A heap is a contiguous byte region carved into fixed-size blocks (8 bytes
// by default). Blocks are linked by 16-bit indices rather than pointers:
// every run of blocks sits on a doubly-linked list in address order, and
// free runs sit on a second doubly-linked free list anchored at block 0.
// Allocation handles (Ptr) are 32-bit addresses of run payloads relative to
// the heap's base address, so pointers from different heaps never collide.
//
// # Operations
//
//   - Alloc(size): best-fit (or first-fit) search of the free list, splitting
//     the chosen run when it is larger than needed
//   - Free(ptr): merge with free neighbours, otherwise push on the free list
//   - Realloc(ptr, size): shrink in place, grow into free neighbours, or move
//   - Calloc(count, size): overflow-safe Alloc plus zero fill
//
// Exhaustion is not an error: Alloc returns Nil and the heap's OOMTracker
// records the request and its call site.
//
// # Usage Example
//
//	h, err := umm.New(umm.DefaultConfig(4096))
//	if err != nil {
//	    return err
//	}
//
//	p := h.Alloc(20)
//	if p == umm.Nil {
//	    // out of memory
//	}
//	copy(h.Bytes(p, 20), data)
//
//	p = h.Realloc(p, 64)
//	h.Free(p)
//
// # Block Accounting
//
// A request that fits in the body of a single block (block size minus the
// 4-byte link header) takes one block. Larger requests take
// 2 + ceil((size - body) / blockSize) blocks. On a heap of 16 blocks of 8
// bytes, Alloc(20) consumes 4 blocks and leaves 11 free (88 bytes): block 0
// is reserved as the sentinel.
//
// # Checking
//
// Config.Integrity verifies the block and free lists before every
// mutating call. Config.Poison surrounds each allocation with guard bytes
// that are verified on Free and Realloc. Either failure is a Corruption,
// delivered to Config.OnCorruption, which panics by default.
//
// # Multiple Heaps
//
// A Manager registers several heaps under HeapIDs. Alloc goes to the
// selected heap; Free and Realloc go to whichever heap owns the pointer.
//
//	defer m.Use(umm.HeapIRAM).Restore()
//	p := m.Alloc(128)
//
// # Concurrency
//
// Every operation runs inside the heap's CriticalSection. The default
// MutexSection makes a Heap safe for concurrent use.
//
// # Debugging
//
// Set UMM_LOG_ALLOC=1 to trace every call through the debug logger.
package umm
