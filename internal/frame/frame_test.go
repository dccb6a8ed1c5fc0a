package frame

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/starford/raido/internal/models"
)

func TestEncode_Layout(t *testing.T) {
	payload := []byte("abcdef")
	f := Encode(payload, false)

	if len(f) != HeaderSize+len(payload) {
		t.Fatalf("len = %d", len(f))
	}
	if got := binary.LittleEndian.Uint32(f[0:4]); got != uint32(HeaderSize+len(payload)) {
		t.Errorf("total_length = %d, want %d", got, HeaderSize+len(payload))
	}
	if got := binary.LittleEndian.Uint32(f[4:8]); got != 0 {
		t.Errorf("terminated = %d, want 0", got)
	}
	if string(f[8:]) != "abcdef" {
		t.Errorf("payload = %q", f[8:])
	}

	term := Encode(nil, true)
	if got := binary.LittleEndian.Uint32(term[0:4]); got != HeaderSize {
		t.Errorf("empty frame total = %d", got)
	}
	if got := binary.LittleEndian.Uint32(term[4:8]); got != 1 {
		t.Errorf("terminated = %d, want 1", got)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	s := sampleSnapshot()
	a := Encode(EncodeSnapshot(s), false)
	b := Encode(EncodeSnapshot(s), false)
	if string(a) != string(b) {
		t.Fatal("encoding the same snapshot twice gave different bytes")
	}
}

func TestDecode_TrailingBytesIgnored(t *testing.T) {
	f := Encode([]byte{1, 2, 3}, true)
	region := append(f, make([]byte, 32)...)

	p, term, err := Decode(region)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !term || len(p) != 3 || p[2] != 3 {
		t.Errorf("got payload %v terminated %v", p, term)
	}
}

func TestDecode_Malformed(t *testing.T) {
	bad := make([]byte, 8)
	binary.LittleEndian.PutUint32(bad, 4)
	for name, b := range map[string][]byte{
		"short":     {1, 2, 3},
		"too_small": bad,
		"too_large": Encode([]byte("xyz"), false)[:9],
	} {
		if _, _, err := Decode(b); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	in := sampleSnapshot()

	payload, term, err := Decode(Encode(EncodeSnapshot(in), false))
	if err != nil || term {
		t.Fatalf("Decode: %v %v", err, term)
	}
	out, err := DecodeSnapshot(payload)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}

	if out.User.Registration != "D-EABC" || out.User.Position != in.User.Position {
		t.Errorf("user = %+v", out.User.Aircraft)
	}
	if !out.User.ZuluTime.Equal(in.User.ZuluTime) {
		t.Errorf("zulu = %v, want %v", out.User.ZuluTime, in.User.ZuluTime)
	}
	if !out.User.LocalTime.IsZero() {
		t.Errorf("zero local time decoded as %v", out.User.LocalTime)
	}
	if out.User.PitotIcePercent != 12 || out.User.FuelFlowGPH != 9.5 {
		t.Errorf("user extras = %d %v", out.User.PitotIcePercent, out.User.FuelFlowGPH)
	}
	if len(out.AI) != 1 {
		t.Fatalf("ai count = %d", len(out.AI))
	}
	ai := out.AI[0]
	if ai.Model != "B738" || ai.EngineType != models.EngineJet || ai.TransponderCode != 7000 {
		t.Errorf("ai = %+v", ai)
	}
	if !ai.Flags.Has(models.FlagOnGround) || ai.Position != in.AI[0].Position {
		t.Errorf("ai flags/position = %v %+v", ai.Flags, ai.Position)
	}
}

func TestDecodeSnapshot_Truncated(t *testing.T) {
	p := EncodeSnapshot(sampleSnapshot())
	if _, err := DecodeSnapshot(p[:len(p)-3]); err == nil {
		t.Fatal("expected error for truncated payload")
	}
	p[0] = 9
	if _, err := DecodeSnapshot(p); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func sampleSnapshot() models.Snapshot {
	var s models.Snapshot
	s.User.Registration = "D-EABC"
	s.User.Model = "C172"
	s.User.Position = models.Position{Lon: 11.78, Lat: 48.35, AltFt: 1487}
	s.User.PitotIcePercent = 12
	s.User.FuelFlowGPH = 9.5
	s.User.ZuluTime = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	ai := models.Aircraft{
		ObjectID:        42,
		Model:           "B738",
		EngineType:      models.EngineJet,
		TransponderCode: 7000,
		Position:        models.Position{Lon: 11.8, Lat: 48.4, AltFt: 3000},
	}
	ai.Flags = ai.Flags.Set(models.FlagOnGround, true)
	s.AI = []models.Aircraft{ai}
	return s
}
