package file

import (
	"os"
	"path/filepath"
	"testing"

	"sprinkler/internal/sprinkler"
	"sprinkler/internal/store"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sprinkler.dat")
	st := New(path)

	var cfg sprinkler.Config
	cfg.Relays[0] = cfg.Relays[0].SetEnabled(true).SetMinutes(45)
	cfg.QueueMembers[0] = 1
	cfg.RelayGPIO[0] = 5

	if err := st.Save(&cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	var loaded sprinkler.Config
	if err := st.Load(&loaded); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != cfg {
		t.Fatal("loaded config differs from saved")
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "missing.dat"))
	var cfg sprinkler.Config
	if err := st.Load(&cfg); err == nil {
		t.Fatal("load of missing blob succeeded")
	}
}

func TestLoadTruncatedBlobFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sprinkler.dat")
	if err := os.WriteFile(path, make([]byte, store.BlobSize/2), 0o644); err != nil {
		t.Fatal(err)
	}
	st := New(path)
	var cfg sprinkler.Config
	if err := st.Load(&cfg); err == nil {
		t.Fatal("load of truncated blob succeeded")
	}
}

func TestSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sprinkler.dat")
	st := New(path)

	var cfg sprinkler.Config
	if err := st.Save(&cfg); err != nil {
		t.Fatalf("first save: %v", err)
	}
	cfg.PumpDelayMS = 1000
	if err := st.Save(&cfg); err != nil {
		t.Fatalf("second save: %v", err)
	}

	// No temp files may survive a completed save.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("want only the blob file, got %d entries", len(entries))
	}

	var loaded sprinkler.Config
	if err := st.Load(&loaded); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.PumpDelayMS != 1000 {
		t.Fatalf("second save not visible: pump delay %d", loaded.PumpDelayMS)
	}
}
