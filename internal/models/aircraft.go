// Package models defines the telemetry domain types carried through the relay.
package models

import (
	"math"
	"time"
)

// InvalidFloat marks a telemetry value the source cannot provide.
const InvalidFloat = float32(math.MaxFloat32)

// Category classifies a subject.
type Category uint8

const (
	CategoryAirplane Category = iota
	CategoryHelicopter
	CategoryBoat
	CategoryGroundVehicle
	CategoryControlTower
	CategorySimpleObject
	CategoryViewer
	CategoryUnknown
	CategoryCarrier
	CategoryFrigate
)

var categoryNames = [...]string{
	"airplane", "helicopter", "boat", "ground_vehicle", "control_tower",
	"simple_object", "viewer", "unknown", "carrier", "frigate",
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// EngineType is the primary engine family of an aircraft.
type EngineType uint8

const (
	EnginePiston EngineType = iota
	EngineJet
	EngineNone
	EngineHeloTurbine
	EngineUnsupported
	EngineTurboprop
)

var engineNames = [...]string{"piston", "jet", "none", "helo_turbine", "unsupported", "turboprop"}

func (e EngineType) String() string {
	if int(e) < len(engineNames) {
		return engineNames[e]
	}
	return "unsupported"
}

// MarshalText encodes the engine type by name.
func (e EngineType) MarshalText() ([]byte, error) { return []byte(e.String()), nil }

// Flags is a bit set of subject and simulator state.
type Flags uint16

const (
	FlagOnGround Flags = 1 << iota
	FlagInCloud
	FlagInRain
	FlagInSnow
	FlagIsUser
	FlagSimPaused
	FlagSimReplay
	FlagSimXPlane11
	FlagSimXPlane12
)

// Set returns f with flag switched on or off.
func (f Flags) Set(flag Flags, on bool) Flags {
	if on {
		return f | flag
	}
	return f &^ flag
}

// Has reports whether all bits of flag are set.
func (f Flags) Has(flag Flags) bool { return f&flag == flag }

// Position is a geographic coordinate with altitude in feet.
type Position struct {
	Lon   float32 `json:"lon"`
	Lat   float32 `json:"lat"`
	AltFt float32 `json:"alt_ft"`
}

const nullEpsilon = 0.01

// IsNull reports whether the coordinate sits at 0/0, which the simulator
// reports when it has no position.
func (p Position) IsNull() bool {
	return abs32(p.Lon) < nullEpsilon && abs32(p.Lat) < nullEpsilon
}

// IsValidRange reports whether lon/lat are finite and inside the WGS84 bounds.
// Altitude is only checked when it is not InvalidFloat.
func (p Position) IsValidRange() bool {
	if !finite(p.Lon) || !finite(p.Lat) {
		return false
	}
	if p.Lon < -180 || p.Lon > 180 || p.Lat < -90 || p.Lat > 90 {
		return false
	}
	if p.AltFt != InvalidFloat && !finite(p.AltFt) {
		return false
	}
	return true
}

// IsValid reports a usable, non-null position.
func (p Position) IsValid() bool {
	return p.IsValidRange() && !p.IsNull()
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Aircraft is one subject record: AI traffic, multiplayer, ships, or the
// common part of the user aircraft.
type Aircraft struct {
	ObjectID     uint32     `json:"object_id"`
	Title        string     `json:"title"`
	Model        string     `json:"model"`
	Registration string     `json:"registration"`
	Category     Category   `json:"category"`
	EngineType   EngineType `json:"engine_type"`
	Flags        Flags      `json:"flags"`
	Position     Position   `json:"position"`

	HeadingTrueDeg      float32 `json:"heading_true_deg"`
	HeadingMagDeg       float32 `json:"heading_mag_deg"`
	GroundSpeedKts      float32 `json:"ground_speed_kts"`
	IndicatedSpeedKts   float32 `json:"indicated_speed_kts"`
	TrueAirspeedKts     float32 `json:"true_airspeed_kts"`
	MachSpeed           float32 `json:"mach_speed"`
	VerticalSpeedFpm    float32 `json:"vertical_speed_fpm"`
	IndicatedAltitudeFt float32 `json:"indicated_altitude_ft"`

	TransponderCode int16  `json:"transponder_code"`
	DeckHeightFt    uint16 `json:"deck_height_ft"`
	ModelRadiusFt   uint16 `json:"model_radius_ft"`
	WingSpanFt      uint16 `json:"wing_span_ft"`
	NumEngines      uint8  `json:"num_engines"`
}

// MarkUnavailable sets the speed, heading and altitude fields that traffic
// sources do not provide to InvalidFloat.
func (a *Aircraft) MarkUnavailable() {
	a.HeadingMagDeg = InvalidFloat
	a.GroundSpeedKts = InvalidFloat
	a.IndicatedSpeedKts = InvalidFloat
	a.TrueAirspeedKts = InvalidFloat
	a.MachSpeed = InvalidFloat
	a.VerticalSpeedFpm = InvalidFloat
	a.IndicatedAltitudeFt = InvalidFloat
}

// UserAircraft extends Aircraft with the environment, weight and fuel values
// only available for the user.
type UserAircraft struct {
	Aircraft

	MagVarDeg            float32 `json:"mag_var_deg"`
	TrackMagDeg          float32 `json:"track_mag_deg"`
	TrackTrueDeg         float32 `json:"track_true_deg"`
	AltitudeAboveGround  float32 `json:"altitude_above_ground_ft"`
	GroundAltitudeFt     float32 `json:"ground_altitude_ft"`
	AltitudeAutopilotFt  float32 `json:"altitude_autopilot_ft"`
	WindSpeedKts         float32 `json:"wind_speed_kts"`
	WindDirectionDegT    float32 `json:"wind_direction_deg_t"`
	AmbientTemperatureC  float32 `json:"ambient_temperature_c"`
	TotalAirTemperatureC float32 `json:"total_air_temperature_c"`
	SeaLevelPressureMbar float32 `json:"sea_level_pressure_mbar"`
	AmbientVisibilityM   float32 `json:"ambient_visibility_m"`

	PitotIcePercent      uint8 `json:"pitot_ice_percent"`
	StructuralIcePercent uint8 `json:"structural_ice_percent"`
	AoaIcePercent        uint8 `json:"aoa_ice_percent"`
	InletIcePercent      uint8 `json:"inlet_ice_percent"`
	PropIcePercent       uint8 `json:"prop_ice_percent"`
	StatIcePercent       uint8 `json:"stat_ice_percent"`
	WindowIcePercent     uint8 `json:"window_ice_percent"`
	CarbIcePercent       uint8 `json:"carb_ice_percent"`

	TotalWeightLbs       float32 `json:"total_weight_lbs"`
	MaxGrossWeightLbs    float32 `json:"max_gross_weight_lbs"`
	EmptyWeightLbs       float32 `json:"empty_weight_lbs"`
	FuelTotalWeightLbs   float32 `json:"fuel_total_weight_lbs"`
	FuelTotalQuantityGal float32 `json:"fuel_total_quantity_gal"`
	FuelFlowPPH          float32 `json:"fuel_flow_pph"`
	FuelFlowGPH          float32 `json:"fuel_flow_gph"`

	LocalTime time.Time `json:"local_time"`
	ZuluTime  time.Time `json:"zulu_time"`
}
