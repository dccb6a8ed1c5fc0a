// Package transport delivers encoded frames to the downstream consumer.
package transport

import (
	"fmt"
	"strings"
)

// MinCapacity is the smallest usable region: one header plus a minimal payload.
const MinCapacity = 16

// Transport receives whole frames. Each Write replaces the previous frame.
type Transport interface {
	Write(frame []byte) error
	Capacity() int
	Close() error
}

// Kind names a transport implementation in configuration.
type Kind string

const (
	KindSharedFile Kind = "shm"
	KindMemory     Kind = "memory"
)

// Open builds the transport named by kind.
func Open(kind Kind, path string, capacity int) (Transport, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindSharedFile, "":
		return OpenSharedFile(path, capacity)
	case KindMemory:
		return NewMemory(capacity), nil
	default:
		return nil, fmt.Errorf("transport: unknown kind %q", kind)
	}
}
