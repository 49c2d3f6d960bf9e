package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewStoreDefaults(t *testing.T) {
	st := NewStore(nil, nil)

	s := st.Snapshot()
	if s != Defaults() {
		t.Errorf("fresh store = %+v, want defaults", s)
	}
	if s.Brightness != 160 {
		t.Errorf("default brightness = %d, want 160", s.Brightness)
	}
	if s.BaseColor != 0xFF0000 {
		t.Errorf("default base color = %#06x, want 0xFF0000", s.BaseColor)
	}
	if s.Reverse != [4]bool{true, false, false, true} {
		t.Errorf("default reverse = %v", s.Reverse)
	}
	if !st.CPUEnabled() || !st.FanEnabled() {
		t.Error("bars disabled by default")
	}
}

func TestNewStoreLoadsPersisted(t *testing.T) {
	saved := Defaults()
	saved.Brightness = 20
	saved.Counts = [4]int{1, 2, 3, 999} // out of range on purpose

	st := NewStore(&MemStore{Stored: &saved}, nil)

	s := st.Snapshot()
	if s.Brightness != 20 {
		t.Errorf("brightness = %d, want persisted 20", s.Brightness)
	}
	if s.Counts != [4]int{1, 2, 3, MaxPixels} {
		t.Errorf("counts = %v, want clamp to %d", s.Counts, MaxPixels)
	}
}

func TestNewStoreLoadErrorFallsBack(t *testing.T) {
	st := NewStore(&MemStore{LoadErr: errors.New("disk gone")}, nil)
	if st.Snapshot() != Defaults() {
		t.Error("load error did not fall back to defaults")
	}
}

func TestApplyPartialPatch(t *testing.T) {
	st := NewStore(nil, nil)
	before := st.Snapshot()
	gen := st.Generation()

	patch := `{"brightness": 40, "enableFan": false, "reverse": [null, true]}`
	if err := st.Apply([]byte(patch), false); err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	s := st.Snapshot()
	if s.Brightness != 40 {
		t.Errorf("brightness = %d, want 40", s.Brightness)
	}
	if s.EnableFan {
		t.Error("enableFan still true")
	}
	if s.Reverse != [4]bool{true, true, false, true} {
		t.Errorf("reverse = %v, want index 1 flipped only", s.Reverse)
	}
	if s.Counts != before.Counts || s.BaseColor != before.BaseColor {
		t.Error("untouched fields changed")
	}
	if st.Generation() == gen {
		t.Error("generation did not advance")
	}
}

func TestApplyRejectsBadPatchAtomically(t *testing.T) {
	st := NewStore(nil, nil)
	before := st.Snapshot()
	gen := st.Generation()

	// brightness decodes before the broken count field would be seen by a
	// naive field-at-a-time application.
	patch := `{"brightness": 1, "count": "five"}`
	if err := st.Apply([]byte(patch), false); err == nil {
		t.Fatal("Apply accepted a mistyped patch")
	}

	if st.Snapshot() != before {
		t.Error("failed patch left partial changes behind")
	}
	if st.Generation() != gen {
		t.Error("failed patch advanced the generation")
	}
}

func TestApplySavePersists(t *testing.T) {
	mem := &MemStore{}
	st := NewStore(mem, nil)

	if err := st.Apply([]byte(`{"colorA": 4259584}`), false); err != nil {
		t.Fatal(err)
	}
	if mem.Saves != 0 {
		t.Fatalf("preview persisted: %d saves", mem.Saves)
	}

	if err := st.Apply([]byte(`{"colorA": 4259584}`), true); err != nil {
		t.Fatal(err)
	}
	if mem.Saves != 1 {
		t.Fatalf("Saves = %d, want 1", mem.Saves)
	}
	if mem.Stored.BaseColor != 0x40FF00 {
		t.Errorf("persisted color = %#06x, want 0x40FF00", mem.Stored.BaseColor)
	}
}

func TestApplyClampsValues(t *testing.T) {
	st := NewStore(nil, nil)

	patch := `{"brightness": 999, "count": [60, -4, 10, 10]}`
	if err := st.Apply([]byte(patch), false); err != nil {
		t.Fatal(err)
	}

	s := st.Snapshot()
	if s.Brightness != 255 {
		t.Errorf("brightness = %d, want clamp to 255", s.Brightness)
	}
	if s.Counts != [4]int{MaxPixels, 0, 10, 10} {
		t.Errorf("counts = %v", s.Counts)
	}
}

func TestApplyPSK(t *testing.T) {
	st := NewStore(nil, nil)
	if st.Key() != "" {
		t.Fatalf("fresh key = %q, want empty", st.Key())
	}
	if err := st.Apply([]byte(`{"psk": "sekrit"}`), false); err != nil {
		t.Fatal(err)
	}
	if st.Key() != "sekrit" {
		t.Errorf("Key = %q, want sekrit", st.Key())
	}
}

func TestSetCountsPersists(t *testing.T) {
	mem := &MemStore{}
	st := NewStore(mem, nil)
	gen := st.Generation()

	if err := st.SetCounts([4]int{5, 0, 99, 7}); err != nil {
		t.Fatal(err)
	}
	s := st.Snapshot()
	if s.Counts != [4]int{5, 0, MaxPixels, 7} {
		t.Errorf("counts = %v", s.Counts)
	}
	if mem.Saves != 1 {
		t.Errorf("Saves = %d, want 1", mem.Saves)
	}
	if st.Generation() == gen {
		t.Error("generation did not advance")
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	mem := &MemStore{}
	st := NewStore(mem, nil)

	if err := st.Apply([]byte(`{"brightness": 3, "psk": "x", "masterOff": true}`), true); err != nil {
		t.Fatal(err)
	}
	if err := st.Reset(); err != nil {
		t.Fatal(err)
	}

	if st.Snapshot() != Defaults() {
		t.Errorf("after reset = %+v, want defaults", st.Snapshot())
	}
	if mem.Stored == nil || *mem.Stored != Defaults() {
		t.Error("reset not persisted")
	}
}

func TestMasterOffDisablesBothBars(t *testing.T) {
	st := NewStore(nil, nil)
	if err := st.Apply([]byte(`{"masterOff": true}`), false); err != nil {
		t.Fatal(err)
	}
	if st.CPUEnabled() || st.FanEnabled() {
		t.Error("masterOff left a bar enabled")
	}
}

func TestJSONShape(t *testing.T) {
	st := NewStore(nil, nil)

	data, err := st.JSON()
	if err != nil {
		t.Fatalf("JSON returned error: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("JSON output not valid JSON: %v", err)
	}
	for _, key := range []string{"count", "brightness", "colorA", "reverse", "masterOff", "enableCpu", "enableFan"} {
		if _, ok := m[key]; !ok {
			t.Errorf("JSON missing key %q", key)
		}
	}
	if _, ok := m["psk"]; ok {
		t.Error("empty psk serialized")
	}
}

func TestValidatePatch(t *testing.T) {
	if err := ValidatePatch([]byte(`{"brightness": 10, "legacyMode": 3}`)); err != nil {
		t.Errorf("patch with unknown key rejected: %v", err)
	}
	if err := ValidatePatch([]byte(`{}`)); err != nil {
		t.Errorf("empty patch rejected: %v", err)
	}
	if err := ValidatePatch([]byte(`{"brightness": "dim"}`)); err == nil {
		t.Error("mistyped patch accepted")
	}
	if err := ValidatePatch([]byte(`[1,2]`)); err == nil {
		t.Error("non-object patch accepted")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "settings.json")
	fs := NewFileStore(path)

	if _, ok, err := fs.Load(); err != nil || ok {
		t.Fatalf("Load on missing file = ok=%v err=%v, want ok=false err=nil", ok, err)
	}

	want := Defaults()
	want.Brightness = 7
	want.PSK = "k"
	if err := fs.Save(want); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, ok, err := fs.Load()
	if err != nil || !ok {
		t.Fatalf("Load = ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	fs := NewFileStore(path)
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := fs.Load(); err == nil {
		t.Fatal("Load accepted corrupt state")
	}
}
