package hardware

import (
	"math"
	"testing"
)

func TestSearch(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Seed())

	tests := []struct {
		name     string
		lat, lng float64
		radius   float64
		want     []string
	}{
		{"colocated pair", 28.61, 77.2, 0.1, []string{"HW-001", "HW-002"}},
		{"default radius", 28.61, 77.2, 0, []string{"HW-001", "HW-002", "HW-003"}},
		{"wide radius", 28.615, 77.205, 5, []string{"HW-001", "HW-002", "HW-003", "HW-004"}},
		{"nothing nearby", 0, 0, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := r.Search(tt.lat, tt.lng, tt.radius)
			if got == nil {
				t.Fatal("Search returned nil, want empty slice")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Search = %+v, want ids %v", got, tt.want)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestSearch_InclusiveRadius(t *testing.T) {
	t.Parallel()

	r := NewRegistry([]Record{{ID: "X", Lat: 1, Lng: 0, Status: StatusActive}})
	edge := Distance(0, 0, 1, 0)
	if math.Abs(edge-KmPerDegree) > 1e-9 {
		t.Fatalf("Distance = %v, want %v", edge, KmPerDegree)
	}
	if got := r.Search(0, 0, edge); len(got) != 1 {
		t.Errorf("device on the radius boundary should match, got %+v", got)
	}
}

func TestSearch_ResultShape(t *testing.T) {
	t.Parallel()

	got := NewRegistry(Seed()).Search(28.62, 77.21, 0.01)
	if len(got) != 1 {
		t.Fatalf("Search = %+v", got)
	}
	want := Match{ID: "HW-004", Type: "THERMAL_CAM", Coordinates: Coordinates{Lat: 28.62, Lng: 77.21}, Status: StatusActive}
	if got[0] != want {
		t.Errorf("match = %+v, want %+v", got[0], want)
	}
}

func TestCounts(t *testing.T) {
	t.Parallel()

	active, faulty := NewRegistry(Seed()).Counts()
	if active != 3 || faulty != 1 {
		t.Errorf("Counts = %d, %d; want 3, 1", active, faulty)
	}
}

func TestNewRegistry_Copies(t *testing.T) {
	t.Parallel()

	seed := Seed()
	r := NewRegistry(seed)
	seed[0].Status = StatusFaulty
	if active, _ := r.Counts(); active != 3 {
		t.Errorf("registry shares caller slice: active = %d", active)
	}
}
