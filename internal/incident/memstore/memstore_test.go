package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/linnemanlabs/trackwatch/internal/incident"
)

func TestStore_SaveAndLoad(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if err := s.Save(ctx, incident.CollectionAlerts, []byte(`[{"id":"a1"}]`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, incident.CollectionAlerts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != `[{"id":"a1"}]` {
		t.Errorf("Load = %s", got)
	}
}

func TestStore_LoadNeverSaved(t *testing.T) {
	t.Parallel()

	got, err := New().Load(context.Background(), incident.CollectionAnomalies)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Errorf("Load = %q, want nil", got)
	}
}

func TestStore_CopiesOnSaveAndLoad(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	doc := []byte("[]")
	if err := s.Save(ctx, incident.CollectionAlerts, doc); err != nil {
		t.Fatal(err)
	}
	doc[0] = 'X'

	got, _ := s.Load(ctx, incident.CollectionAlerts)
	if string(got) != "[]" {
		t.Errorf("stored doc mutated through caller slice: %q", got)
	}
	got[0] = 'Y'
	again, _ := s.Load(ctx, incident.CollectionAlerts)
	if string(again) != "[]" {
		t.Errorf("stored doc mutated through loaded slice: %q", again)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = s.Save(ctx, incident.CollectionAlerts, []byte(fmt.Sprintf("[%d]", i)))
		}(i)
		go func() {
			defer wg.Done()
			_, _ = s.Load(ctx, incident.CollectionAlerts)
		}()
	}
	wg.Wait()
}

func TestStore_WithRegistries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	alerts := incident.NewAlertRegistry(s, nil, incident.Hooks{})
	anomalies := incident.NewAnomalyRegistry(s, alerts, nil, incident.Hooks{})

	intensity := 0.4
	if _, err := anomalies.Create(ctx, incident.NewAnomaly{
		ID: "x1", Type: "OBSTRUCTION", Position: []float64{1, 2}, Intensity: &intensity,
	}); err != nil {
		t.Fatal(err)
	}

	// A second registry over the same store sees the persisted state.
	reopened := incident.NewAnomalyRegistry(s, alerts, nil, incident.Hooks{})
	if got := reopened.List(ctx); len(got) != 1 || got[0].ID != "x1" {
		t.Errorf("List after reopen = %+v", got)
	}
}
