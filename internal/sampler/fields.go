package sampler

import "github.com/starford/raido/internal/models"

// floatField copies one named value into a record. ref12 and conv12 replace
// ref and conv on X-Plane 12 when set.
type floatField[T any] struct {
	ref    string
	ref12  string
	conv   func(float32) float32
	conv12 func(float32) float32
	set    func(*T, float32)
}

type stringField[T any] struct {
	ref string
	set func(*T, string)
}

// percentField stores the largest of several 0..1 ratios as a percentage.
type percentField[T any] struct {
	refs []string
	set  func(*T, uint8)
}

func fill[T any](src Source, xp12 bool, dst *T, table []floatField[T]) {
	for _, f := range table {
		ref, conv := f.ref, f.conv
		if xp12 && f.ref12 != "" {
			ref = f.ref12
			if f.conv12 != nil {
				conv = f.conv12
			}
		}
		v := src.Float(ref)
		if conv != nil {
			v = conv(v)
		}
		f.set(dst, v)
	}
}

func fillStrings[T any](src Source, dst *T, table []stringField[T]) {
	for _, f := range table {
		f.set(dst, src.String(f.ref))
	}
}

func fillPercents[T any](src Source, dst *T, table []percentField[T]) {
	for _, f := range table {
		var hi float32
		for _, ref := range f.refs {
			hi = max(hi, src.Float(ref))
		}
		f.set(dst, ratioToPercent(hi))
	}
}

type userAC = models.UserAircraft

var userFloats = []floatField[userAC]{
	{ref: RefMagVar, conv: func(v float32) float32 { return -v }, set: func(u *userAC, v float32) { u.MagVarDeg = v }},

	{ref: "sim/cockpit2/gauges/indicators/wind_speed_kts", set: func(u *userAC, v float32) { u.WindSpeedKts = v }},
	{ref: "sim/cockpit2/gauges/indicators/wind_heading_deg_mag", set: func(u *userAC, v float32) { u.WindDirectionDegT = v }},
	{
		ref:   "sim/weather/temperature_ambient_c",
		ref12: "sim/weather/aircraft/temperature_ambient_deg_c",
		set:   func(u *userAC, v float32) { u.AmbientTemperatureC = v },
	},
	{
		ref:   "sim/weather/temperature_le_c",
		ref12: "sim/weather/aircraft/temperature_leadingedge_deg_c",
		set:   func(u *userAC, v float32) { u.TotalAirTemperatureC = v },
	},
	{ref: "sim/physics/earth_pressure_p", conv: pascalToMbar, set: func(u *userAC, v float32) { u.SeaLevelPressureMbar = v }},
	{
		ref:    "sim/weather/visibility_reported_m",
		ref12:  "sim/weather/aircraft/visibility_reported_sm",
		conv12: nmToMeters,
		set:    func(u *userAC, v float32) { u.AmbientVisibilityM = v },
	},

	{ref: "sim/flightmodel/weight/m_total", conv: kgToLbs, set: func(u *userAC, v float32) { u.TotalWeightLbs = v }},
	{ref: "sim/aircraft/weight/acf_m_max", conv: kgToLbs, set: func(u *userAC, v float32) { u.MaxGrossWeightLbs = v }},
	{ref: "sim/aircraft/weight/acf_m_empty", conv: kgToLbs, set: func(u *userAC, v float32) { u.EmptyWeightLbs = v }},
	{ref: "sim/flightmodel/weight/m_fuel_total", conv: kgToLbs, set: func(u *userAC, v float32) { u.FuelTotalWeightLbs = v }},

	{ref: RefAGL, conv: metersToFeet, set: func(u *userAC, v float32) { u.AltitudeAboveGround = v }},
	{ref: "sim/cockpit/autopilot/altitude", set: func(u *userAC, v float32) { u.AltitudeAutopilotFt = v }},
	{ref: "sim/flightmodel/misc/h_ind", set: func(u *userAC, v float32) { u.IndicatedAltitudeFt = v }},

	{ref: "sim/flightmodel/position/mag_psi", set: func(u *userAC, v float32) { u.HeadingMagDeg = v }},
	{ref: "sim/flightmodel/position/true_psi", set: func(u *userAC, v float32) { u.HeadingTrueDeg = v }},
	{ref: "sim/cockpit2/gauges/indicators/ground_track_mag_pilot", set: func(u *userAC, v float32) { u.TrackMagDeg = v }},

	{ref: "sim/flightmodel/position/indicated_airspeed", set: func(u *userAC, v float32) { u.IndicatedSpeedKts = v }},
	{ref: "sim/flightmodel/position/true_airspeed", conv: msToKnots, set: func(u *userAC, v float32) { u.TrueAirspeedKts = v }},
	{ref: "sim/flightmodel/position/groundspeed", conv: msToKnots, set: func(u *userAC, v float32) { u.GroundSpeedKts = v }},
	{ref: "sim/flightmodel/misc/machno", set: func(u *userAC, v float32) { u.MachSpeed = v }},
	{ref: "sim/flightmodel/position/vh_ind_fpm", set: func(u *userAC, v float32) { u.VerticalSpeedFpm = v }},

	// Size z points to the tail, size x to the right wing tip.
	{ref: RefSizeZ, conv: metersToFeet, set: func(u *userAC, v float32) { u.ModelRadiusFt = roundUint16(v) }},
	{ref: RefSizeX, conv: metersToFeet, set: func(u *userAC, v float32) { u.WingSpanFt = roundUint16(v * 2) }},
}

var userStrings = []stringField[userAC]{
	{ref: RefTitle, set: func(u *userAC, v string) { u.Title = v }},
	{ref: RefICAO, set: func(u *userAC, v string) { u.Model = v }},
	{ref: RefTailNumber, set: func(u *userAC, v string) { u.Registration = v }},
}

var userIce = []percentField[userAC]{
	{refs: []string{"sim/flightmodel/failures/pitot_ice"}, set: func(u *userAC, v uint8) { u.PitotIcePercent = v }},
	{refs: []string{"sim/flightmodel/failures/frm_ice", "sim/flightmodel/failures/frm_ice2"}, set: func(u *userAC, v uint8) { u.StructuralIcePercent = v }},
	{refs: []string{"sim/flightmodel/failures/aoa_ice", "sim/flightmodel/failures/aoa_ice2"}, set: func(u *userAC, v uint8) { u.AoaIcePercent = v }},
	{refs: []string{"sim/flightmodel/failures/inlet_ice"}, set: func(u *userAC, v uint8) { u.InletIcePercent = v }},
	{refs: []string{"sim/flightmodel/failures/prop_ice"}, set: func(u *userAC, v uint8) { u.PropIcePercent = v }},
	{refs: []string{"sim/flightmodel/failures/stat_ice", "sim/flightmodel/failures/stat_ice2"}, set: func(u *userAC, v uint8) { u.StatIcePercent = v }},
	{refs: []string{"sim/flightmodel/failures/window_ice"}, set: func(u *userAC, v uint8) { u.WindowIcePercent = v }},
}
