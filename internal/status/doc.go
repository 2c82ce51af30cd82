// Package status implements hashpipe status buffers and the registry of
// buffers a gateway manages.
//
// A status buffer is a fixed-size region of 80-byte FITS header records
// ("cards"). Each value card holds an 8-character key, "= ", and either a
// numeric literal or a single-quoted string. The last used record is the
// END card; a buffer whose END card would fall off the end of the region is
// full.
//
// # Stores
//
// Buffers are obtained from a Store:
//
//   - FileStore maps one file per instance (MAP_SHARED) so that hashpipe
//     processes and the gateway see the same bytes. Cross-process access is
//     serialized with flock(2).
//   - MemoryStore keeps buffers on the heap and is used by tests and tools.
//
// # Locking
//
// An Entity pairs an InstanceID with its Buffer and a context-aware lock.
// Buffer methods are not synchronized; callers go through Entity.Do, which
// holds the lock for the duration of the callback:
//
//	err := entity.Do(ctx, func(buf *status.Buffer) error {
//	    return buf.Put("RA", status.Float(156.3))
//	})
//
// A lock that cannot be acquired before ctx ends yields ErrLockTimeout.
package status
