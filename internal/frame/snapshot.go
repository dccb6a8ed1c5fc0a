package frame

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/starford/raido/internal/models"
)

// PayloadVersion is the first byte of every snapshot payload.
const PayloadVersion = 1

// EncodeSnapshot serialises s deterministically: equal snapshots give equal
// bytes.
func EncodeSnapshot(s models.Snapshot) []byte {
	w := &writer{buf: make([]byte, 0, 512+len(s.AI)*96)}
	w.u8(PayloadVersion)
	w.user(&s.User)
	w.u32(uint32(len(s.AI)))
	for i := range s.AI {
		w.aircraft(&s.AI[i])
	}
	return w.buf
}

// DecodeSnapshot is the inverse of EncodeSnapshot.
func DecodeSnapshot(b []byte) (models.Snapshot, error) {
	r := &reader{buf: b}
	var s models.Snapshot

	if v := r.u8(); r.err == nil && v != PayloadVersion {
		return s, fmt.Errorf("frame: unsupported payload version %d", v)
	}
	r.user(&s.User)
	n := r.u32()
	if r.err == nil && int(n) > r.remaining() {
		return s, fmt.Errorf("frame: ai count %d exceeds payload", n)
	}
	if n > 0 {
		s.AI = make([]models.Aircraft, n)
		for i := range s.AI {
			r.aircraft(&s.AI[i])
		}
	}
	if r.err != nil {
		return models.Snapshot{}, r.err
	}
	return s, nil
}

type writer struct{ buf []byte }

func (w *writer) u8(v uint8) { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = order.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = order.AppendUint32(w.buf, v) }
func (w *writer) i64(v int64) { w.buf = order.AppendUint64(w.buf, uint64(v)) }
func (w *writer) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *writer) str(s string) {
	if len(s) > math.MaxUint16 {
		s = s[:math.MaxUint16]
	}
	w.u16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *writer) time(t time.Time) {
	if t.IsZero() {
		w.i64(0)
		return
	}
	w.i64(t.UnixNano())
}

func (w *writer) aircraft(a *models.Aircraft) {
	w.u32(a.ObjectID)
	w.str(a.Title)
	w.str(a.Model)
	w.str(a.Registration)
	w.u8(uint8(a.Category))
	w.u8(uint8(a.EngineType))
	w.u16(uint16(a.Flags))
	w.f32(a.Position.Lon)
	w.f32(a.Position.Lat)
	w.f32(a.Position.AltFt)
	for _, v := range []float32{
		a.HeadingTrueDeg, a.HeadingMagDeg, a.GroundSpeedKts, a.IndicatedSpeedKts,
		a.TrueAirspeedKts, a.MachSpeed, a.VerticalSpeedFpm, a.IndicatedAltitudeFt,
	} {
		w.f32(v)
	}
	w.u16(uint16(a.TransponderCode))
	w.u16(a.DeckHeightFt)
	w.u16(a.ModelRadiusFt)
	w.u16(a.WingSpanFt)
	w.u8(a.NumEngines)
}

func (w *writer) user(u *models.UserAircraft) {
	w.aircraft(&u.Aircraft)
	for _, v := range []float32{
		u.MagVarDeg, u.TrackMagDeg, u.TrackTrueDeg, u.AltitudeAboveGround, u.GroundAltitudeFt,
		u.AltitudeAutopilotFt, u.WindSpeedKts, u.WindDirectionDegT, u.AmbientTemperatureC,
		u.TotalAirTemperatureC, u.SeaLevelPressureMbar, u.AmbientVisibilityM,
	} {
		w.f32(v)
	}
	for _, v := range []uint8{
		u.PitotIcePercent, u.StructuralIcePercent, u.AoaIcePercent, u.InletIcePercent,
		u.PropIcePercent, u.StatIcePercent, u.WindowIcePercent, u.CarbIcePercent,
	} {
		w.u8(v)
	}
	for _, v := range []float32{
		u.TotalWeightLbs, u.MaxGrossWeightLbs, u.EmptyWeightLbs, u.FuelTotalWeightLbs,
		u.FuelTotalQuantityGal, u.FuelFlowPPH, u.FuelFlowGPH,
	} {
		w.f32(v)
	}
	w.time(u.LocalTime)
	w.time(u.ZuluTime)
}

var errShortPayload = errors.New("frame: payload truncated")

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.remaining() < n {
		r.err = errShortPayload
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return order.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return order.Uint32(b)
	}
	return 0
}

func (r *reader) i64() int64 {
	if b := r.take(8); b != nil {
		return int64(order.Uint64(b))
	}
	return 0
}

func (r *reader) f32() float32 { return math.Float32frombits(r.u32()) }

func (r *reader) str() string {
	n := int(r.u16())
	if b := r.take(n); b != nil {
		return string(b)
	}
	return ""
}

func (r *reader) time() time.Time {
	ns := r.i64()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func (r *reader) aircraft(a *models.Aircraft) {
	a.ObjectID = r.u32()
	a.Title = r.str()
	a.Model = r.str()
	a.Registration = r.str()
	a.Category = models.Category(r.u8())
	a.EngineType = models.EngineType(r.u8())
	a.Flags = models.Flags(r.u16())
	a.Position.Lon = r.f32()
	a.Position.Lat = r.f32()
	a.Position.AltFt = r.f32()
	for _, p := range []*float32{
		&a.HeadingTrueDeg, &a.HeadingMagDeg, &a.GroundSpeedKts, &a.IndicatedSpeedKts,
		&a.TrueAirspeedKts, &a.MachSpeed, &a.VerticalSpeedFpm, &a.IndicatedAltitudeFt,
	} {
		*p = r.f32()
	}
	a.TransponderCode = int16(r.u16())
	a.DeckHeightFt = r.u16()
	a.ModelRadiusFt = r.u16()
	a.WingSpanFt = r.u16()
	a.NumEngines = r.u8()
}

func (r *reader) user(u *models.UserAircraft) {
	r.aircraft(&u.Aircraft)
	for _, p := range []*float32{
		&u.MagVarDeg, &u.TrackMagDeg, &u.TrackTrueDeg, &u.AltitudeAboveGround, &u.GroundAltitudeFt,
		&u.AltitudeAutopilotFt, &u.WindSpeedKts, &u.WindDirectionDegT, &u.AmbientTemperatureC,
		&u.TotalAirTemperatureC, &u.SeaLevelPressureMbar, &u.AmbientVisibilityM,
	} {
		*p = r.f32()
	}
	for _, p := range []*uint8{
		&u.PitotIcePercent, &u.StructuralIcePercent, &u.AoaIcePercent, &u.InletIcePercent,
		&u.PropIcePercent, &u.StatIcePercent, &u.WindowIcePercent, &u.CarbIcePercent,
	} {
		*p = r.u8()
	}
	for _, p := range []*float32{
		&u.TotalWeightLbs, &u.MaxGrossWeightLbs, &u.EmptyWeightLbs, &u.FuelTotalWeightLbs,
		&u.FuelTotalQuantityGal, &u.FuelFlowPPH, &u.FuelFlowGPH,
	} {
		*p = r.f32()
	}
	u.LocalTime = r.time()
	u.ZuluTime = r.time()
}
