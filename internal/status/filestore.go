package status

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DefaultDir is where FileStore keeps status buffers unless told otherwise.
const DefaultDir = "/dev/shm/hashpipe"

// FileStore maps status buffers from files, one per instance, so separate
// processes share them.
type FileStore struct {
	Dir  string
	Size int
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &FileStore{Dir: dir, Size: DefaultSize}
}

// Path returns the file backing the buffer for id.
func (s *FileStore) Path(id InstanceID) string {
	return filepath.Join(s.Dir, fmt.Sprintf("hashpipe_status.%d", id))
}

// Open implements Store.
func (s *FileStore) Open(id InstanceID, create bool) (*Buffer, error) {
	size := s.Size
	if size < RecordSize {
		size = DefaultSize
	}
	size -= size % RecordSize

	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating status dir: %w", err)
		}
	}

	path := s.Path(id)
	f, err := os.OpenFile(path, flags, 0o666) //nolint:gosec // path is built from the configured dir and a numeric id
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		return nil, fmt.Errorf("opening status buffer %s: %w", path, err)
	}

	buf, err := mapFile(f, size)
	if err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("mapping status buffer %s: %w", path, err)
	}
	return buf, nil
}

func mapFile(f *os.File, size int) (*Buffer, error) {
	fd := int(f.Fd())

	// Sizing and initialising a fresh file happen under an exclusive lock
	// so a concurrent opener never sees a half-written END record.
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return nil, fmt.Errorf("flock: %w", err)
	}
	defer unix.Flock(fd, unix.LOCK_UN) //nolint:errcheck // released on close as well

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	if info.Size() < int64(size) {
		if err := f.Truncate(int64(size)); err != nil {
			return nil, fmt.Errorf("truncate: %w", err)
		}
	}

	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}

	buf := NewBuffer(data)
	buf.xlock = &fileLock{f: f}
	buf.closer = func() error {
		return errors.Join(unix.Munmap(data), f.Close())
	}
	return buf, nil
}

// fileLock is an advisory whole-file lock shared with other processes.
type fileLock struct {
	f *os.File
}

func (l *fileLock) tryLock() (bool, error) {
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("flock: %w", err)
	}
	return true, nil
}

func (l *fileLock) unlock() error {
	return unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}
