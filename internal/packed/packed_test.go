package packed

import "testing"

// =============================================================================
// ScheduleWord
// =============================================================================

func TestScheduleWordLayout(t *testing.T) {
	var w ScheduleWord

	w = w.SetEnabled(true)
	if uint32(w) != 1<<31 {
		t.Fatalf("enabled bit: want bit 31, got %#08x", uint32(w))
	}

	w = 0
	w = w.SetHour(0, true)
	if uint32(w) != 1<<7 {
		t.Fatalf("hour 0: want bit 7, got %#08x", uint32(w))
	}
	w = 0
	w = w.SetHour(23, true)
	if uint32(w) != 1<<30 {
		t.Fatalf("hour 23: want bit 30, got %#08x", uint32(w))
	}

	w = 0
	w = w.SetWeekday(0, true)
	if uint32(w) != 1 {
		t.Fatalf("weekday 0: want bit 0, got %#08x", uint32(w))
	}
	w = 0
	w = w.SetWeekday(6, true)
	if uint32(w) != 1<<6 {
		t.Fatalf("weekday 6: want bit 6, got %#08x", uint32(w))
	}
}

func TestScheduleWordRoundTrip(t *testing.T) {
	var w ScheduleWord
	w = w.SetEnabled(true)
	w = w.SetHour(6, true)
	w = w.SetHour(18, true)
	w = w.SetWeekday(2, true)

	if !w.Enabled() {
		t.Fatal("enabled lost")
	}
	if !w.Hour(6) || !w.Hour(18) || w.Hour(7) {
		t.Fatalf("hours: got set %#06x", w.Hours())
	}
	if !w.Weekday(2) || w.Weekday(3) {
		t.Fatalf("weekdays: got set %#02x", w.Weekdays())
	}

	// Clearing one sub-field must not disturb the others.
	w = w.SetHour(6, false)
	if w.Hour(6) {
		t.Fatal("hour 6 not cleared")
	}
	if !w.Enabled() || !w.Hour(18) || !w.Weekday(2) {
		t.Fatal("clearing hour 6 disturbed other fields")
	}
}

// =============================================================================
// RelayWord
// =============================================================================

func TestRelayWordLayout(t *testing.T) {
	var w RelayWord
	w = w.SetEnabled(true)
	w = w.SetPump(5)
	w = w.SetMinutes(4095)

	want := uint16(1<<15 | 5<<12 | 4095)
	if uint16(w) != want {
		t.Fatalf("relay word: want %#04x, got %#04x", want, uint16(w))
	}
	if !w.Enabled() || w.Pump() != 5 || w.Minutes() != 4095 {
		t.Fatalf("read back: enabled=%v pump=%d minutes=%d", w.Enabled(), w.Pump(), w.Minutes())
	}
}

func TestRelayWordFieldIsolation(t *testing.T) {
	var w RelayWord
	w = w.SetMinutes(1234)
	w = w.SetPump(3)
	if w.Minutes() != 1234 {
		t.Fatalf("SetPump disturbed minutes: got %d", w.Minutes())
	}
	w = w.SetMinutes(7)
	if w.Pump() != 3 {
		t.Fatalf("SetMinutes disturbed pump: got %d", w.Pump())
	}
	if w.Enabled() {
		t.Fatal("enable bit set by field writes")
	}
}

// =============================================================================
// MonthByte
// =============================================================================

func TestMonthByteLayout(t *testing.T) {
	var b MonthByte
	b = b.SetEnabled(true)
	b = b.SetFlagA(true)
	b = b.SetFlagB(true)
	b = b.SetSlot(31)

	want := uint8(1<<7 | 1<<6 | 1<<5 | 31)
	if uint8(b) != want {
		t.Fatalf("month byte: want %#02x, got %#02x", want, uint8(b))
	}

	b = b.SetFlagA(false)
	if b.FlagA() {
		t.Fatal("flag A not cleared")
	}
	if !b.Enabled() || !b.FlagB() || b.Slot() != 31 {
		t.Fatal("clearing flag A disturbed other fields")
	}
}

// =============================================================================
// PumpWord
// =============================================================================

func TestPumpWordLayout(t *testing.T) {
	var w PumpWord
	w = w.SetEnabled(0, true)
	if uint32(w) != 1<<25 {
		t.Fatalf("pump 0 enable: want bit 25, got %#08x", uint32(w))
	}
	w = 0
	w = w.SetEnabled(4, true)
	if uint32(w) != 1<<29 {
		t.Fatalf("pump 4 enable: want bit 29, got %#08x", uint32(w))
	}

	w = 0
	w = w.SetRelay(0, 31)
	if uint32(w) != 31 {
		t.Fatalf("pump 0 relay: want bits 0..4, got %#08x", uint32(w))
	}
	w = 0
	w = w.SetRelay(4, 31)
	if uint32(w) != 31<<20 {
		t.Fatalf("pump 4 relay: want bits 20..24, got %#08x", uint32(w))
	}
}

func TestPumpWordAllPumps(t *testing.T) {
	var w PumpWord
	for p := uint8(0); p < 5; p++ {
		w = w.SetRelay(p, p+10)
		w = w.SetEnabled(p, p%2 == 0)
	}
	for p := uint8(0); p < 5; p++ {
		if got := w.Relay(p); got != p+10 {
			t.Fatalf("pump %d relay: want %d, got %d", p, p+10, got)
		}
		if got := w.Enabled(p); got != (p%2 == 0) {
			t.Fatalf("pump %d enabled: want %v, got %v", p, p%2 == 0, got)
		}
	}
}

// =============================================================================
// PauseWord
// =============================================================================

func TestPauseWordLayout(t *testing.T) {
	var w PauseWord
	w = w.SetSeconds(0x7FFFFFFF)
	if uint32(w) != 0x7FFFFFFF {
		t.Fatalf("seconds: want lower 31 bits, got %#08x", uint32(w))
	}
	w = w.SetAutoAdvance(true)
	if uint32(w) != 0xFFFFFFFF {
		t.Fatalf("autoadvance: want bit 31, got %#08x", uint32(w))
	}
	if w.Seconds() != 0x7FFFFFFF || !w.AutoAdvance() {
		t.Fatalf("read back: seconds=%d auto=%v", w.Seconds(), w.AutoAdvance())
	}

	w = w.SetSeconds(90)
	if !w.AutoAdvance() {
		t.Fatal("SetSeconds disturbed autoadvance")
	}
	if w.Seconds() != 90 {
		t.Fatalf("seconds: want 90, got %d", w.Seconds())
	}
}
