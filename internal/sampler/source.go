package sampler

import "github.com/starford/raido/internal/models"

// Source is the simulator's named value store. Missing names read as zero.
type Source interface {
	Has(name string) bool
	Float(name string) float32
	Int(name string) int
	String(name string) string
	Floats(name string) []float32
	Ints(name string) []int
	// ModelPath returns the model file of the subject at index; 0 is the user.
	ModelPath(index int) string
	// ActiveAircraft counts the user plus every multiplayer slot in use.
	ActiveAircraft() int
	// LocalToWorld converts local scenery coordinates in meters.
	LocalToWorld(x, y, z float64) models.Position
}

// Advancer is implemented by sources that step through recorded frames.
type Advancer interface {
	Advance()
}

// Value names read from the simulator.
const (
	RefVersion = "sim/version/xplane_internal_version"

	RefPaused = "sim/time/paused"
	RefReplay = "sim/operation/prefs/replay_mode"

	RefLat       = "sim/flightmodel/position/latitude"
	RefLon       = "sim/flightmodel/position/longitude"
	RefElevation = "sim/flightmodel/position/elevation"
	RefAGL       = "sim/flightmodel/position/y_agl"
	RefMagVar    = "sim/flightmodel/position/magnetic_variation"
	RefOnGround  = "sim/flightmodel/failures/onground_any"

	RefTailNumber = "sim/aircraft/view/acf_tailnum"
	RefTitle      = "sim/aircraft/view/acf_descrip"
	RefICAO       = "sim/aircraft/view/acf_ICAO"
	RefSizeX      = "sim/aircraft/view/acf_size_x"
	RefSizeZ      = "sim/aircraft/view/acf_size_z"
	RefEngines    = "sim/aircraft/engine/acf_num_engines"
	RefEngineType = "sim/aircraft/prop/acf_en_type"
	RefSquawk     = "sim/cockpit/radios/transponder_code"

	RefRain   = "sim/weather/rain_percent"
	RefRain12 = "sim/weather/aircraft/precipitation_on_aircraft_ratio"

	RefCarbIce  = "sim/flightmodel/engine/ENGN_crbice"
	RefFuelFlow = "sim/cockpit2/engine/indicators/fuel_flow_kg_sec"

	RefLocalDays = "sim/time/local_date_days"
	RefLocalSec  = "sim/time/local_time_sec"
	RefZuluSec   = "sim/time/zulu_time_sec"

	RefBoatHeading  = "sim/world/boat/heading_deg"
	RefBoatVelocity = "sim/world/boat/velocity_msc"
	RefBoatX        = "sim/world/boat/x_mtr"
	RefBoatY        = "sim/world/boat/y_mtr"
	RefBoatZ        = "sim/world/boat/z_mtr"
	RefCarrierDeck  = "sim/world/boat/carrier_deck_height_mtr"
	RefFrigateDeck  = "sim/world/boat/frigate_deck_height_mtr"

	RefTCASCount    = "sim/cockpit2/tcas/indicators/tcas_num_acf"
	RefTCASModeC    = "sim/cockpit2/tcas/targets/modeC_code"
	RefTCASLat      = "sim/cockpit2/tcas/targets/position/lat"
	RefTCASLon      = "sim/cockpit2/tcas/targets/position/lon"
	RefTCASEle      = "sim/cockpit2/tcas/targets/position/ele"
	RefTCASVS       = "sim/cockpit2/tcas/targets/position/vertical_speed"
	RefTCASSpeed    = "sim/cockpit2/tcas/targets/position/V_msc"
	RefTCASHeading  = "sim/cockpit2/tcas/targets/position/psi"
	RefTCASOnGround = "sim/cockpit2/tcas/targets/position/weight_on_wheels"
	RefTCASType     = "sim/cockpit2/tcas/targets/icao_type"
	RefTCASFlightID = "sim/cockpit2/tcas/targets/flight_id"
)

// Legacy multiplayer slots, 1 to 19.
const (
	refPlaneLat       = "sim/multiplayer/position/plane%d_lat"
	refPlaneLon       = "sim/multiplayer/position/plane%d_lon"
	refPlaneEle       = "sim/multiplayer/position/plane%d_el"
	refPlaneHeading   = "sim/multiplayer/position/plane%d_psi"
	refPlaneTailNum   = "sim/multiplayer/position/plane%d_tailnum"
	maxLegacyAircraft = 20
)

// tcasStringWidth is the slot size of the TCAS type and flight id arrays.
const tcasStringWidth = 8

func isXPlane12(src Source) bool { return src.Int(RefVersion) >= 120000 }
