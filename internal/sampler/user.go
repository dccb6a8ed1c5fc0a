package sampler

import "github.com/starford/raido/internal/models"

// X-Plane engine type codes.
const (
	xpRecipCarb = iota
	xpRecipInjected
	xpFreeTurbine
	xpElectric
	xpLoBypassJet
	xpHiBypassJet
	xpRocket
	xpTipRockets
	xpFixedTurbine
	xpNewFreeTurbine
	xpNewFixedTurbine
)

func simFlag(xp12 bool) models.Flags {
	if xp12 {
		return models.FlagSimXPlane12
	}
	return models.FlagSimXPlane11
}

// fillUser reads the user aircraft. It reports false when the simulator has
// no usable position yet.
func (s *Sampler) fillUser(xp12 bool) (models.UserAircraft, bool) {
	src := s.src
	var u models.UserAircraft

	alt := metersToFeet(src.Float(RefElevation))
	u.Position = models.Position{Lon: src.Float(RefLon), Lat: src.Float(RefLat), AltFt: alt}
	if !u.Position.IsValid() {
		return u, false
	}

	u.NumEngines = uint8(src.Int(RefEngines))
	fill(src, xp12, &u, userFloats)
	fillStrings(src, &u, userStrings)
	fillPercents(src, &u, userIce)

	for i, v := range src.Floats(RefCarbIce) {
		if i >= int(u.NumEngines) {
			break
		}
		u.CarbIcePercent = max(u.CarbIcePercent, ratioToPercent(v))
	}

	u.WindDirectionDegT += u.MagVarDeg
	u.TrackTrueDeg = u.TrackMagDeg + u.MagVarDeg
	u.GroundAltitudeFt = alt - u.AltitudeAboveGround

	var flow float32
	for _, v := range src.Floats(RefFuelFlow) {
		flow += v
	}
	u.FuelFlowPPH = kgToLbs(flow) * 3600

	u.TransponderCode = DecodeTransponder(src.Int(RefSquawk))

	rain := RefRain
	if xp12 {
		rain = RefRain12
	}
	u.Flags = models.FlagIsUser | simFlag(xp12)
	u.Flags = u.Flags.Set(models.FlagOnGround, src.Int(RefOnGround) != 0)
	u.Flags = u.Flags.Set(models.FlagInRain, src.Float(rain) > 0.1)
	u.Flags = u.Flags.Set(models.FlagSimPaused, src.Int(RefPaused) != 0)
	u.Flags = u.Flags.Set(models.FlagSimReplay, src.Int(RefReplay) != 0)

	// Category is not available from the simulator.
	u.Category = models.CategoryUnknown

	var lbsPerGal float32
	u.EngineType, lbsPerGal = engineFromTypes(src.Ints(RefEngineType), int(u.NumEngines))
	u.FuelTotalQuantityGal = u.FuelTotalWeightLbs / lbsPerGal
	u.FuelFlowGPH = u.FuelFlowPPH / lbsPerGal

	u.LocalTime, u.ZuluTime = simTimes(s.now().Year(), src.Int(RefLocalDays),
		src.Float(RefLocalSec), src.Float(RefZuluSec))

	return u, true
}

// engineFromTypes returns the type of the first engine with a known kind and
// the fuel density that goes with it.
func engineFromTypes(types []int, engines int) (models.EngineType, float32) {
	for i, t := range types {
		if i >= engines {
			break
		}
		switch t {
		case xpElectric, xpRecipCarb, xpRecipInjected:
			return models.EnginePiston, avgasLbsPerGal
		case xpFreeTurbine, xpFixedTurbine, xpNewFreeTurbine, xpNewFixedTurbine:
			return models.EngineTurboprop, jetALbsPerGal
		case xpRocket, xpTipRockets, xpLoBypassJet, xpHiBypassJet:
			return models.EngineJet, jetALbsPerGal
		}
	}
	return models.EngineUnsupported, avgasLbsPerGal
}
