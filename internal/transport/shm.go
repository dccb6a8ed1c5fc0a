package transport

import (
	"fmt"
	"os"

	"github.com/starford/raido/internal/apperr"
)

// DefaultPath is where the shared region lives unless configured otherwise.
const DefaultPath = "/dev/shm/raido.frame"

// SharedFile is a fixed-size file region the consumer maps and reads. The
// writer holds an exclusive flock for the duration of each copy.
type SharedFile struct {
	path     string
	capacity int
	region   *region
}

// OpenSharedFile creates or reuses path and sizes it to capacity bytes.
func OpenSharedFile(path string, capacity int) (*SharedFile, error) {
	if path == "" {
		path = DefaultPath
	}
	if capacity < MinCapacity {
		return nil, fmt.Errorf("transport: capacity %d below %d", capacity, MinCapacity)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %v: %w", path, err, apperr.ErrTransportUnavailable)
	}
	if err := f.Truncate(int64(capacity)); err != nil {
		f.Close()
		return nil, fmt.Errorf("transport: size %s: %v: %w", path, err, apperr.ErrTransportUnavailable)
	}
	r, err := mapRegion(f, capacity)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("transport: map %s: %v: %w", path, err, apperr.ErrTransportUnavailable)
	}
	return &SharedFile{path: path, capacity: capacity, region: r}, nil
}

func (s *SharedFile) Write(frame []byte) error {
	if len(frame) > s.capacity {
		return fmt.Errorf("transport: %d > %d: %w", len(frame), s.capacity, apperr.ErrFrameTooLarge)
	}
	if s.region == nil {
		return fmt.Errorf("transport: %s: %w", s.path, apperr.ErrClosed)
	}
	if err := s.region.write(frame); err != nil {
		return fmt.Errorf("transport: write %s: %v: %w", s.path, err, apperr.ErrTransportUnavailable)
	}
	return nil
}

func (s *SharedFile) Capacity() int { return s.capacity }

func (s *SharedFile) Path() string { return s.path }

// Close unmaps the region. The file is left in place for the consumer.
func (s *SharedFile) Close() error {
	if s.region == nil {
		return nil
	}
	err := s.region.close()
	s.region = nil
	return err
}
