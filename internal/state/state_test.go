package state

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/ziadkadry99/draw2ui/internal/store"
)

func TestCellGetSet(t *testing.T) {
	c := NewCell(1)
	if c.Get() != 1 {
		t.Fatalf("Get = %d, want 1", c.Get())
	}
	c.Set(2)
	if c.Get() != 2 {
		t.Errorf("Get = %d, want 2", c.Get())
	}
}

func TestCellSubscribeOrder(t *testing.T) {
	c := NewCell("")
	var calls []string
	c.Subscribe(func(v string) { calls = append(calls, "first:"+v) })
	c.Subscribe(func(v string) { calls = append(calls, "second:"+v) })

	c.Set("a")
	c.Set("b")

	want := []string{"first:a", "second:a", "first:b", "second:b"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %s, want %s", i, calls[i], want[i])
		}
	}
}

func TestCellObserverSeesStoredValue(t *testing.T) {
	c := NewCell(0)
	var seen int
	c.Subscribe(func(int) { seen = c.Get() })
	c.Set(7)
	if seen != 7 {
		t.Errorf("observer read %d, want 7", seen)
	}
}

func TestCellUnsubscribe(t *testing.T) {
	c := NewCell(0)
	var a, b int
	unsubA := c.Subscribe(func(int) { a++ })
	c.Subscribe(func(int) { b++ })

	c.Set(1)
	unsubA()
	unsubA()
	c.Set(2)

	if a != 1 {
		t.Errorf("unsubscribed observer called %d times, want 1", a)
	}
	if b != 2 {
		t.Errorf("remaining observer called %d times, want 2", b)
	}
}

func TestCellObserverCanWriteOtherCells(t *testing.T) {
	s := New()
	s.CurrentProjectID.Subscribe(func(id string) {
		if id == "" {
			s.CurrentProjectData.Set(nil)
		}
	})
	s.CurrentProjectData.Set(&store.ProjectData{ID: "x"})
	s.CurrentProjectID.Set("")
	if s.CurrentProjectData.Get() != nil {
		t.Error("expected observer to clear project data")
	}
}

func TestCellConcurrentUpdate(t *testing.T) {
	c := NewCell(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Update(func(n int) int { return n + 1 })
		}()
	}
	wg.Wait()
	if c.Get() != 50 {
		t.Errorf("Get = %d, want 50", c.Get())
	}
}

func TestNewDefaults(t *testing.T) {
	s := New()
	if s.ViewMode.Get() != ViewSplit {
		t.Errorf("ViewMode = %s", s.ViewMode.Get())
	}
	if s.Theme.Get() != store.ThemeDark {
		t.Errorf("Theme = %s", s.Theme.Get())
	}
	if s.CurrentProjectID.Get() != "" || s.CurrentProjectData.Get() != nil {
		t.Error("expected no project selected")
	}
	if s.Preview.Get() != DefaultPreview() {
		t.Errorf("Preview = %+v", s.Preview.Get())
	}
}

func TestMergePreview(t *testing.T) {
	s := New()
	color := "violet"
	got := s.MergePreview(PreviewPatch{ThemeColor: &color})
	if got.ThemeColor != "violet" || got.Font != "font-sans" || got.Device != DeviceDesktop || got.Scale != 1 {
		t.Errorf("merge replaced untouched fields: %+v", got)
	}

	mobile := DeviceMobile
	s.MergePreview(PreviewPatch{Device: &mobile})
	if p := s.Preview.Get(); p.ThemeColor != "violet" || p.Device != DeviceMobile {
		t.Errorf("Preview = %+v", p)
	}
}

func TestClampScale(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1, 1},
		{0.1, 0.25},
		{5, 2},
		{0.30000000000000004, 0.3},
		{1.1, 1.1},
	}
	for _, tt := range tests {
		if got := ClampScale(tt.in); got != tt.want {
			t.Errorf("ClampScale(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWatch(t *testing.T) {
	s := New()
	var events []string
	stop := s.Watch(func(cell string, value any) { events = append(events, cell) })

	s.ViewMode.Set(ViewCode)
	s.Generating.Set(true)
	stop()
	s.Theme.Set(store.ThemeLight)

	if len(events) != 2 || events[0] != CellViewMode || events[1] != CellGenerating {
		t.Errorf("events = %v", events)
	}
}

func TestSnapshotJSON(t *testing.T) {
	s := New()
	s.CurrentProjectID.Set("p1")
	s.ViewMode.Set(ViewCode)

	raw, err := json.Marshal(s.Snapshot())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var doc map[string]any
	json.Unmarshal(raw, &doc)
	if doc["currentProjectId"] != "p1" || doc["viewMode"] != "code" || doc["isGenerating"] != false {
		t.Errorf("snapshot = %s", raw)
	}
	if _, ok := doc["projects"].([]any); !ok {
		t.Errorf("projects should encode as an array: %s", raw)
	}
}
