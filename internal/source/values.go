// Package source provides simulator sources backed by memory or by a
// recorded session.
package source

import (
	"math"
	"slices"
	"sync"

	"github.com/starford/raido/internal/models"
)

const metersPerDegree = 111320.0

// Origin anchors local scenery coordinates: x grows east, z grows south.
type Origin struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// Values is an in-memory source. It is safe for concurrent use.
type Values struct {
	mu     sync.RWMutex
	floats map[string]float32
	ints   map[string]int
	strs   map[string]string
	farrs  map[string][]float32
	iarrs  map[string][]int
	models map[int]string
	active int
	origin Origin
}

func NewValues() *Values {
	v := &Values{}
	v.reset()
	return v
}

func (v *Values) reset() {
	v.floats = map[string]float32{}
	v.ints = map[string]int{}
	v.strs = map[string]string{}
	v.farrs = map[string][]float32{}
	v.iarrs = map[string][]int{}
	v.models = map[int]string{}
	v.active = 0
}

func (v *Values) SetFloat(name string, f float32) *Values {
	v.mu.Lock()
	v.floats[name] = f
	v.mu.Unlock()
	return v
}

func (v *Values) SetInt(name string, i int) *Values {
	v.mu.Lock()
	v.ints[name] = i
	v.mu.Unlock()
	return v
}

func (v *Values) SetString(name, s string) *Values {
	v.mu.Lock()
	v.strs[name] = s
	v.mu.Unlock()
	return v
}

func (v *Values) SetFloats(name string, f ...float32) *Values {
	v.mu.Lock()
	v.farrs[name] = slices.Clone(f)
	v.mu.Unlock()
	return v
}

func (v *Values) SetInts(name string, i ...int) *Values {
	v.mu.Lock()
	v.iarrs[name] = slices.Clone(i)
	v.mu.Unlock()
	return v
}

// SetModelPath sets the model file of the subject at index.
func (v *Values) SetModelPath(index int, path string) *Values {
	v.mu.Lock()
	v.models[index] = path
	v.mu.Unlock()
	return v
}

func (v *Values) SetActiveAircraft(n int) *Values {
	v.mu.Lock()
	v.active = n
	v.mu.Unlock()
	return v
}

func (v *Values) SetOrigin(o Origin) *Values {
	v.mu.Lock()
	v.origin = o
	v.mu.Unlock()
	return v
}

func (v *Values) Has(name string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if _, ok := v.floats[name]; ok {
		return true
	}
	if _, ok := v.ints[name]; ok {
		return true
	}
	if _, ok := v.strs[name]; ok {
		return true
	}
	if _, ok := v.farrs[name]; ok {
		return true
	}
	_, ok := v.iarrs[name]
	return ok
}

// Float returns a float value, falling back to an int of the same name.
func (v *Values) Float(name string) float32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if f, ok := v.floats[name]; ok {
		return f
	}
	return float32(v.ints[name])
}

// Int returns an int value, falling back to a truncated float.
func (v *Values) Int(name string) int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if i, ok := v.ints[name]; ok {
		return i
	}
	return int(v.floats[name])
}

func (v *Values) String(name string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.strs[name]
}

func (v *Values) Floats(name string) []float32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.farrs[name])
}

func (v *Values) Ints(name string) []int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return slices.Clone(v.iarrs[name])
}

func (v *Values) ModelPath(index int) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.models[index]
}

func (v *Values) ActiveAircraft() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.active
}

// LocalToWorld uses an equirectangular approximation around the origin,
// which is adequate within a few tens of kilometers.
func (v *Values) LocalToWorld(x, y, z float64) models.Position {
	v.mu.RLock()
	o := v.origin
	v.mu.RUnlock()

	lat := o.Lat - z/metersPerDegree
	lon := o.Lon + x/(metersPerDegree*math.Cos(lat*math.Pi/180))
	return models.Position{Lon: float32(lon), Lat: float32(lat), AltFt: float32(y * 3.28084)}
}
