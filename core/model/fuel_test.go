package model

import (
	"encoding/json"
	"testing"
)

func TestFuelTypeRoundTrip(t *testing.T) {
	for _, f := range []FuelType{FuelLNG, FuelBunker, FuelDiesel} {
		parsed, err := ParseFuelType(f.String())
		if err != nil {
			t.Fatalf("parse %q: %v", f.String(), err)
		}
		if parsed != f {
			t.Fatalf("round trip %q: got %v want %v", f.String(), parsed, f)
		}
	}
}

func TestParseFuelTypeUnknown(t *testing.T) {
	if _, err := ParseFuelType("plutonium"); err == nil {
		t.Fatal("expected error for unknown fuel")
	}
}

func TestFuelTypeJSON(t *testing.T) {
	b, err := json.Marshal(map[FuelType]float64{FuelBunker: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"bunker":1}` {
		t.Fatalf("fuel keys must serialize by name, got %s", b)
	}

	var f FuelType
	if err := json.Unmarshal([]byte(`"diesel"`), &f); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if f != FuelDiesel {
		t.Fatalf("got %v want diesel", f)
	}
}
