package taxonomy

import "testing"

func TestLookup_Registered(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code     string
		wantDesc string
		wantHW   string
	}{
		{Obstruction, "Rock, debris, or object blocking the track", OFCNode},
		{Tampering, "Fishplate removal or rail displacement", OFCNode},
		{Thermal, "Fire, heat source, or human presence", ThermalCam},
		{Vibration, "Unusual vibration or audio anomaly detected", OFCNode},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()
			d := Lookup(tt.code)
			if d.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", d.Description, tt.wantDesc)
			}
			if len(d.DetectedBy) != 1 || d.DetectedBy[0] != tt.wantHW {
				t.Errorf("DetectedBy = %v, want [%s]", d.DetectedBy, tt.wantHW)
			}
		})
	}
}

func TestLookup_UnknownFallsBack(t *testing.T) {
	t.Parallel()

	for _, code := range []string{"", "obstruction", "LANDSLIDE", "  THERMAL", "\x00"} {
		d := Lookup(code)
		if d.Description != UnknownDescription {
			t.Errorf("Lookup(%q).Description = %q, want %q", code, d.Description, UnknownDescription)
		}
		if len(d.DetectedBy) != 1 || d.DetectedBy[0] != OFCNode {
			t.Errorf("Lookup(%q).DetectedBy = %v, want [%s]", code, d.DetectedBy, OFCNode)
		}
	}
}

func TestLookup_ReturnsCopy(t *testing.T) {
	t.Parallel()

	d := Lookup(Thermal)
	d.DetectedBy[0] = "MUTATED"

	if got := Lookup(Thermal).DetectedBy[0]; got != ThermalCam {
		t.Errorf("mutating a lookup result leaked into the table: got %q", got)
	}
}

func TestCodes_AllKnown(t *testing.T) {
	t.Parallel()

	codes := Codes()
	if len(codes) != 4 {
		t.Fatalf("Codes() len = %d, want 4", len(codes))
	}
	for _, c := range codes {
		if !Known(c) {
			t.Errorf("Known(%q) = false", c)
		}
	}
	if Known("nope") {
		t.Error("Known(nope) = true")
	}
}
