//go:build unix

package transport

import (
	"os"

	"golang.org/x/sys/unix"
)

type region struct {
	f   *os.File
	mem []byte
}

func mapRegion(f *os.File, size int) (*region, error) {
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &region{f: f, mem: mem}, nil
}

func (r *region) write(frame []byte) error {
	fd := int(r.f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		return err
	}
	copy(r.mem, frame)
	return unix.Flock(fd, unix.LOCK_UN)
}

func (r *region) close() error {
	err := unix.Munmap(r.mem)
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}
