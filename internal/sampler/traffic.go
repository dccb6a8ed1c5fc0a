package sampler

import (
	"fmt"
	"strings"

	"github.com/starford/raido/internal/models"
)

const (
	carrierIndex = 0
	frigateIndex = 1
)

// boat builds the carrier or frigate at idx of the boat arrays.
func (s *Sampler) boat(idx int, deckRef string, cat models.Category, flags models.Flags) (models.Aircraft, bool) {
	src := s.src
	headings := src.Floats(RefBoatHeading)
	velocity := src.Floats(RefBoatVelocity)
	x, y, z := src.Floats(RefBoatX), src.Floats(RefBoatY), src.Floats(RefBoatZ)
	if len(headings) <= idx || len(velocity) <= idx || len(x) <= idx || len(y) <= idx || len(z) <= idx {
		return models.Aircraft{}, false
	}

	var b models.Aircraft
	b.MarkUnavailable()
	b.Flags = flags
	b.Category = cat
	b.EngineType = models.EngineUnsupported
	b.DeckHeightFt = roundUint16(metersToFeet(src.Float(deckRef)))

	b.GroundSpeedKts = msToKnots(max(velocity[idx], 0))
	if !inRange(0.1, 70, b.GroundSpeedKts) {
		b.GroundSpeedKts = models.InvalidFloat
	}
	b.HeadingTrueDeg = headings[idx]

	b.Position = src.LocalToWorld(float64(x[idx]), float64(y[idx]), float64(z[idx]))
	b.Position.AltFt = models.InvalidFloat

	ok := b.Position.IsValid() &&
		inRange(0, 360, b.HeadingTrueDeg) &&
		b.DeckHeightFt <= 100
	return b, ok
}

// tcasTraffic reads AI and multiplayer aircraft from the TCAS target arrays.
// Slot 0 is the user and is skipped.
func (s *Sampler) tcasTraffic(count int, flags models.Flags, nextID *uint32, out []models.Aircraft) []models.Aircraft {
	src := s.src
	lat, lon, ele := src.Floats(RefTCASLat), src.Floats(RefTCASLon), src.Floats(RefTCASEle)
	heading, speed, vs := src.Floats(RefTCASHeading), src.Floats(RefTCASSpeed), src.Floats(RefTCASVS)
	onGround, modeC := src.Ints(RefTCASOnGround), src.Ints(RefTCASModeC)
	types, flightIDs := src.String(RefTCASType), src.String(RefTCASFlightID)

	for i := 1; i < count; i++ {
		pos := models.Position{Lon: at(lon, i), Lat: at(lat, i), AltFt: metersToFeet(at(ele, i))}
		if !pos.IsValid() {
			continue
		}

		var ac models.Aircraft
		ac.MarkUnavailable()
		ac.Flags = flags.Set(models.FlagOnGround, atInt(onGround, i) != 0)
		ac.Position = pos
		ac.HeadingTrueDeg = at(heading, i)
		ac.Model = slot(types, i)
		ac.Registration = slot(flightIDs, i)
		ac.GroundSpeedKts = msToKnots(at(speed, i))
		ac.VerticalSpeedFpm = at(vs, i)
		ac.TransponderCode = DecodeTransponder(atInt(modeC, i))
		ac.Category = models.CategoryAirplane
		ac.EngineType = models.EngineUnsupported
		ac.ObjectID = *nextID

		if s.fetchAIInfo && s.enricher != nil {
			s.enricher.Enrich(&ac, i)
		}
		out = append(out, ac)
		*nextID++
	}
	return out
}

// legacyTraffic reads the numbered multiplayer slots used before TCAS
// targets existed. At most 19 aircraft besides the user are available.
func (s *Sampler) legacyTraffic(flags models.Flags, nextID *uint32, out []models.Aircraft) []models.Aircraft {
	src := s.src
	n := min(src.ActiveAircraft(), maxLegacyAircraft) - 1

	for i := 1; i <= n; i++ {
		pos := models.Position{
			Lon:   src.Float(fmt.Sprintf(refPlaneLon, i)),
			Lat:   src.Float(fmt.Sprintf(refPlaneLat, i)),
			AltFt: metersToFeet(src.Float(fmt.Sprintf(refPlaneEle, i))),
		}
		if !pos.IsValid() {
			continue
		}

		var ac models.Aircraft
		ac.MarkUnavailable()
		ac.Flags = flags
		ac.Position = pos
		ac.HeadingTrueDeg = src.Float(fmt.Sprintf(refPlaneHeading, i))
		ac.Registration = src.String(fmt.Sprintf(refPlaneTailNum, i))
		ac.Category = models.CategoryAirplane
		ac.EngineType = models.EngineUnsupported
		ac.ObjectID = *nextID

		if s.fetchAIInfo && s.enricher != nil {
			s.enricher.Enrich(&ac, i)
		}
		out = append(out, ac)
		*nextID++
	}
	return out
}

func at(v []float32, i int) float32 {
	if i < len(v) {
		return v[i]
	}
	return 0
}

func atInt(v []int, i int) int {
	if i < len(v) {
		return v[i]
	}
	return 0
}

// slot cuts the i-th fixed-width, zero-terminated string out of a packed
// byte array.
func slot(packed string, i int) string {
	start := i * tcasStringWidth
	if start >= len(packed) {
		return ""
	}
	end := min(start+tcasStringWidth, len(packed))
	s := packed[start:end]
	if n := strings.IndexByte(s, 0); n >= 0 {
		s = s[:n]
	}
	return strings.TrimSpace(s)
}
