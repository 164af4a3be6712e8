package main

import (
	"encoding/json"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	hwmem "sprinkler/internal/hardware/memory"
	"sprinkler/internal/sprinkler"
	storemem "sprinkler/internal/store/memory"
)

func newTestController(t *testing.T) *sprinkler.Sprinkler {
	t.Helper()
	return sprinkler.New(hwmem.New(nil), storemem.New(), nil, nil)
}

func populate(t *testing.T, s *sprinkler.Sprinkler) {
	t.Helper()
	steps := []error{
		s.SetPumpDelayMS(2000),
		s.SetRelayEnabled(0, true),
		s.SetRelayMinutes(0, 15),
		s.SetRelayPump(0, 0),
		s.SetRelayGPIO(0, 17),
		s.SetRelayOverlapMS(0, 3000),
		s.SetQueueMember(0, 0, true),
		s.SetQueueRepeat(0, 2),
		s.SetQueuePauseSeconds(0, 30),
		s.SetQueueAutoAdvance(0, true),
		s.SetQueueOverrideSec(0, 0, 90),
		s.SetPumpRelay(0, 1),
		s.SetPumpEnabled(0, true),
		s.SetScheduleEnabled(3, true),
		s.SetScheduleHour(3, 6, true),
		s.SetScheduleMinute(3, 6, 45),
		s.SetScheduleWeekday(3, 2, true),
		s.SetScheduleQueue(3, 0, true),
		s.SetMonthEnabled(5, true),
		s.SetMonthSlot(5, 3),
		s.SetMonthFlagA(5, true),
		s.SetRelayPause(0, 12),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("populate step %d: %v", i, err)
		}
	}
}

func TestExportDocRoundTrip(t *testing.T) {
	src := newTestController(t)
	populate(t, src)

	doc := buildExportDoc(src.Snapshot())

	dst := newTestController(t)
	if err := applyExportDoc(dst, doc); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if dst.Snapshot() != src.Snapshot() {
		t.Fatal("config after export/apply differs from original")
	}
}

func TestExportDocJSONRoundTrip(t *testing.T) {
	src := newTestController(t)
	populate(t, src)
	doc := buildExportDoc(src.Snapshot())

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded exportDoc
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	dst := newTestController(t)
	if err := applyExportDoc(dst, decoded); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if dst.Snapshot() != src.Snapshot() {
		t.Fatal("config after JSON round-trip differs from original")
	}
}

func TestExportDocMsgpackRoundTrip(t *testing.T) {
	src := newTestController(t)
	populate(t, src)
	doc := buildExportDoc(src.Snapshot())

	data, err := msgpack.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded exportDoc
	if err := msgpack.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	dst := newTestController(t)
	if err := applyExportDoc(dst, decoded); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if dst.Snapshot() != src.Snapshot() {
		t.Fatal("config after msgpack round-trip differs from original")
	}
}

func TestApplyExportDocRejectsBadValues(t *testing.T) {
	dst := newTestController(t)
	err := applyExportDoc(dst, exportDoc{
		Relays: []relayExport{{ID: 0, Minutes: 5000}},
	})
	if err == nil {
		t.Fatal("out-of-range import value accepted")
	}
}
