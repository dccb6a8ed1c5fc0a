package sampler

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/source"
	"github.com/starford/raido/internal/testutil"
)

type fakeStore struct {
	accept bool
	got    []models.Snapshot
}

func (f *fakeStore) TryUpdate(s models.Snapshot) bool {
	if !f.accept {
		return false
	}
	f.got = append(f.got, s)
	return true
}

type fakeEnricher struct{ calls []int }

func (f *fakeEnricher) Enrich(ac *models.Aircraft, index int) bool {
	f.calls = append(f.calls, index)
	ac.Title = "enriched"
	return true
}

func userValues() *source.Values {
	return source.NewValues().
		SetOrigin(source.Origin{Lat: 48.35, Lon: 11.78}).
		SetFloat(RefLat, 48.35).
		SetFloat(RefLon, 11.78).
		SetFloat(RefElevation, 1000).
		SetFloat(RefAGL, 100).
		SetFloat(RefMagVar, -3).
		SetFloat("sim/cockpit2/gauges/indicators/ground_track_mag_pilot", 90).
		SetFloat("sim/cockpit2/gauges/indicators/wind_heading_deg_mag", 270).
		SetFloat("sim/physics/earth_pressure_p", 101325).
		SetFloat("sim/flightmodel/position/groundspeed", 50).
		SetFloat("sim/flightmodel/weight/m_fuel_total", 100).
		SetFloat("sim/flightmodel/failures/frm_ice", 0.1).
		SetFloat("sim/flightmodel/failures/frm_ice2", 0.25).
		SetFloats(RefCarbIce, 0.2, 0.9).
		SetFloats(RefFuelFlow, 0.01, 0.01).
		SetInt(RefEngines, 1).
		SetInts(RefEngineType, xpLoBypassJet).
		SetInt(RefSquawk, 7000).
		SetInt(RefOnGround, 1).
		SetString(RefTailNumber, "D-EABC").
		SetModelPath(0, "/acf/c172.acf")
}

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 0.01 }

func TestFill_UserConversions(t *testing.T) {
	s := New(userValues(), &fakeStore{accept: true}, WithLogger(testutil.QuietLogger()))
	snap := s.Fill()
	if snap.IsEmpty() {
		t.Fatal("expected a valid snapshot")
	}
	u := snap.User

	if !near(u.Position.AltFt, 3280.84) {
		t.Errorf("altitude = %v", u.Position.AltFt)
	}
	if !near(u.GroundAltitudeFt, 3280.84-328.084) {
		t.Errorf("ground altitude = %v", u.GroundAltitudeFt)
	}
	if u.MagVarDeg != 3 || u.TrackTrueDeg != 93 || u.WindDirectionDegT != 273 {
		t.Errorf("magvar=%v track=%v wind=%v", u.MagVarDeg, u.TrackTrueDeg, u.WindDirectionDegT)
	}
	if !near(u.SeaLevelPressureMbar, 1013.25) {
		t.Errorf("pressure = %v", u.SeaLevelPressureMbar)
	}
	if !near(u.GroundSpeedKts, 97.19) {
		t.Errorf("ground speed = %v", u.GroundSpeedKts)
	}
	if u.StructuralIcePercent != 25 {
		t.Errorf("structural ice = %d, want max of both refs", u.StructuralIcePercent)
	}
	if u.CarbIcePercent != 20 {
		t.Errorf("carb ice = %d, only engine 1 counts", u.CarbIcePercent)
	}
	if u.EngineType != models.EngineJet {
		t.Errorf("engine = %v", u.EngineType)
	}
	if !near(u.FuelTotalQuantityGal, 220.4622/6.7) {
		t.Errorf("fuel gal = %v", u.FuelTotalQuantityGal)
	}
	if !near(u.FuelFlowPPH, 0.02*2.204622*3600) {
		t.Errorf("fuel flow = %v", u.FuelFlowPPH)
	}
	if u.TransponderCode != 0o7000 {
		t.Errorf("squawk = %o", u.TransponderCode)
	}
	if !u.Flags.Has(models.FlagIsUser|models.FlagOnGround|models.FlagSimXPlane11) || u.Flags.Has(models.FlagInRain) {
		t.Errorf("flags = %b", u.Flags)
	}
	if u.Registration != "D-EABC" || u.Category != models.CategoryUnknown {
		t.Errorf("registration=%q category=%v", u.Registration, u.Category)
	}
}

func TestFill_XPlane12Refs(t *testing.T) {
	src := userValues().
		SetInt(RefVersion, 120100).
		SetFloat("sim/weather/aircraft/visibility_reported_sm", 10).
		SetFloat("sim/weather/visibility_reported_m", 1).
		SetFloat(RefRain12, 0.5)

	u := New(src, &fakeStore{}).Fill().User
	if !near(u.AmbientVisibilityM, 18520) {
		t.Errorf("visibility = %v", u.AmbientVisibilityM)
	}
	if !u.Flags.Has(models.FlagSimXPlane12 | models.FlagInRain) {
		t.Errorf("flags = %b", u.Flags)
	}
}

func TestFill_InvalidPosition(t *testing.T) {
	src := userValues().SetFloat(RefLat, 0).SetFloat(RefLon, 0)
	store := &fakeStore{accept: true}
	s := New(src, store)

	if s.Sample() {
		t.Fatal("Sample reported a valid snapshot at 0/0")
	}
	if len(store.got) != 1 || !store.got[0].IsEmpty() {
		t.Errorf("store got %+v, want the empty sentinel", store.got)
	}
	if st := s.Stats(); st.Invalid != 1 || st.Samples != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFill_BoatsAndTCAS(t *testing.T) {
	src := userValues().
		SetFloats(RefBoatHeading, 90, 400).
		SetFloats(RefBoatVelocity, 10, 10).
		SetFloats(RefBoatX, 1000, 0).
		SetFloats(RefBoatY, 0, 0).
		SetFloats(RefBoatZ, -1000, 0).
		SetFloat(RefCarrierDeck, 20).
		SetInt(RefTCASCount, 3).
		SetInts(RefTCASModeC, 0, 1200, 7700).
		SetFloats(RefTCASLat, 0, 48.4, 0).
		SetFloats(RefTCASLon, 0, 11.9, 0).
		SetFloats(RefTCASEle, 0, 900, 0).
		SetInts(RefTCASOnGround, 0, 1, 0).
		SetString(RefTCASType, "C172\x00\x00\x00\x00B738\x00\x00\x00\x00").
		SetModelPath(1, "/acf/b738.acf")

	enr := &fakeEnricher{}
	s := New(src, &fakeStore{}, WithEnricher(enr), WithFetchAI(true, true))
	snap := s.Fill()

	if len(snap.AI) != 2 {
		t.Fatalf("ai = %d, want carrier plus one TCAS target", len(snap.AI))
	}
	carrier := snap.AI[0]
	if carrier.Category != models.CategoryCarrier || carrier.ObjectID != 1 {
		t.Errorf("carrier = %+v", carrier)
	}
	if carrier.Position.AltFt != models.InvalidFloat || carrier.DeckHeightFt != 66 {
		t.Errorf("carrier alt=%v deck=%d", carrier.Position.AltFt, carrier.DeckHeightFt)
	}

	ac := snap.AI[1]
	if ac.ObjectID != 2 || ac.Model != "B738" || ac.TransponderCode != 0o1200 {
		t.Errorf("tcas target = %+v", ac)
	}
	if !ac.Flags.Has(models.FlagOnGround) || ac.IndicatedSpeedKts != models.InvalidFloat {
		t.Errorf("tcas flags=%b ias=%v", ac.Flags, ac.IndicatedSpeedKts)
	}
	if ac.Title != "enriched" {
		t.Error("tcas target was not enriched")
	}
	if len(enr.calls) != 2 || enr.calls[0] != 0 || enr.calls[1] != 1 {
		t.Errorf("enrich calls = %v, want [0 1]", enr.calls)
	}
}

func TestFill_LegacyMultiplayer(t *testing.T) {
	src := userValues().
		SetActiveAircraft(25).
		SetFloat("sim/multiplayer/position/plane2_lat", 48.5).
		SetFloat("sim/multiplayer/position/plane2_lon", 11.5).
		SetFloat("sim/multiplayer/position/plane2_psi", 180).
		SetString("sim/multiplayer/position/plane2_tailnum", "N123").
		SetFloat("sim/multiplayer/position/plane19_lat", 47).
		SetFloat("sim/multiplayer/position/plane19_lon", 10).
		SetFloat("sim/multiplayer/position/plane20_lat", 47).
		SetFloat("sim/multiplayer/position/plane20_lon", 10)

	enr := &fakeEnricher{}
	snap := New(src, &fakeStore{}, WithEnricher(enr), WithFetchAI(true, false)).Fill()

	if len(snap.AI) != 2 {
		t.Fatalf("ai = %d, want slots 2 and 19", len(snap.AI))
	}
	if snap.AI[0].Registration != "N123" || snap.AI[0].HeadingTrueDeg != 180 {
		t.Errorf("slot 2 = %+v", snap.AI[0])
	}
	if len(enr.calls) != 1 {
		t.Errorf("traffic must not be enriched without ai info, calls = %v", enr.calls)
	}
}

func TestFill_NoAI(t *testing.T) {
	src := userValues().SetFloats(RefBoatHeading, 90).SetFloats(RefBoatVelocity, 1).
		SetFloats(RefBoatX, 1).SetFloats(RefBoatY, 1).SetFloats(RefBoatZ, 1)
	snap := New(src, &fakeStore{}, WithFetchAI(false, true)).Fill()
	if len(snap.AI) != 0 {
		t.Errorf("ai = %d, want none", len(snap.AI))
	}
}

func TestSample_DropsOnContention(t *testing.T) {
	store := &fakeStore{accept: false}
	s := New(userValues(), store)

	if s.Sample() {
		t.Fatal("Sample reported success while the store was busy")
	}
	if st := s.Stats(); st.Drops != 1 {
		t.Errorf("drops = %d, want 1", st.Drops)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := &syncStore{}
	s := New(userValues(), store, WithLogger(testutil.QuietLogger()), WithVerbose(true))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, MinPeriod) }()

	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		return s.Stats().Samples >= 2
	}, "sampler did not tick")
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

type syncStore struct{}

func (syncStore) TryUpdate(models.Snapshot) bool { return true }

func TestDecodeTransponder(t *testing.T) {
	cases := map[int]int16{7000: 0o7000, 1200: 0o1200, 7777: 0o7777, 0: 0, 7800: -1, 12345: -1, -5: -1}
	for in, want := range cases {
		if got := DecodeTransponder(in); got != want {
			t.Errorf("DecodeTransponder(%d) = %o, want %o", in, got, want)
		}
	}
}

func TestClampPeriod(t *testing.T) {
	if ClampPeriod(0) != DefaultPeriod || ClampPeriod(time.Millisecond) != MinPeriod || ClampPeriod(time.Second) != time.Second {
		t.Error("ClampPeriod returned unexpected values")
	}
}

func TestSimTimes(t *testing.T) {
	local, zulu := simTimes(2024, 10, 3600*14, 3600*12)
	if _, off := local.Zone(); off != 2*3600 {
		t.Errorf("offset = %d", off)
	}
	if zulu.Hour() != 12 || zulu.YearDay() != 11 {
		t.Errorf("zulu = %v", zulu)
	}

	// Local just after midnight, zulu still on the previous evening.
	local, zulu = simTimes(2024, 10, 1800, 23*3600+1800)
	if _, off := local.Zone(); off != 3600 {
		t.Errorf("offset across midnight = %d", off)
	}
	if zulu.YearDay() != 10 || zulu.Hour() != 23 {
		t.Errorf("zulu across midnight = %v", zulu)
	}
}
