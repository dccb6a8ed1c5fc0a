package source

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Recording is a captured session: the scenery origin plus one frame of
// named values per sample.
type Recording struct {
	Origin Origin  `yaml:"origin"`
	Frames []Frame `yaml:"frames"`
}

// Frame holds every value visible during one sample.
type Frame struct {
	Floats         map[string]float32   `yaml:"floats"`
	Ints           map[string]int       `yaml:"ints"`
	Strings        map[string]string    `yaml:"strings"`
	FloatArrays    map[string][]float32 `yaml:"float_arrays"`
	IntArrays      map[string][]int     `yaml:"int_arrays"`
	Models         map[int]string       `yaml:"models"`
	ActiveAircraft int                  `yaml:"active_aircraft"`
}

// Replay plays a recording frame by frame, wrapping at the end.
type Replay struct {
	*Values

	mu     sync.Mutex
	frames []Frame
	dir    string
	next   int
}

// LoadReplay reads a YAML recording. Relative model paths resolve against
// the recording's directory.
func LoadReplay(path string) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("source: read %s: %w", path, err)
	}

	var rec Recording
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("source: parse %s: %w", path, err)
	}
	return NewReplay(rec, filepath.Dir(path))
}

func NewReplay(rec Recording, dir string) (*Replay, error) {
	if len(rec.Frames) == 0 {
		return nil, errors.New("source: recording has no frames")
	}
	r := &Replay{Values: NewValues(), frames: rec.Frames, dir: dir}
	r.SetOrigin(rec.Origin)
	return r, nil
}

// Advance makes the next frame current.
func (r *Replay) Advance() {
	r.mu.Lock()
	f := r.frames[r.next]
	r.next = (r.next + 1) % len(r.frames)
	r.mu.Unlock()

	r.load(f)
}

// Len is the number of frames.
func (r *Replay) Len() int { return len(r.frames) }

func (r *Replay) load(f Frame) {
	v := r.Values
	v.mu.Lock()
	defer v.mu.Unlock()

	v.reset()
	maps.Copy(v.floats, f.Floats)
	maps.Copy(v.ints, f.Ints)
	maps.Copy(v.strs, f.Strings)
	for k, a := range f.FloatArrays {
		v.farrs[k] = slices.Clone(a)
	}
	for k, a := range f.IntArrays {
		v.iarrs[k] = slices.Clone(a)
	}
	for i, p := range f.Models {
		if p != "" && !filepath.IsAbs(p) && r.dir != "" {
			p = filepath.Join(r.dir, p)
		}
		v.models[i] = p
	}
	v.active = f.ActiveAircraft
}
