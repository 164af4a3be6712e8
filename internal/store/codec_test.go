package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"sprinkler/internal/sprinkler"
)

func TestBlobSize(t *testing.T) {
	// 4 (pumps) + 128 (schedules) + 768 (minutes) + 128 (slot queues) +
	// 64 (relays) + 128 (overlap) + 12 (months) + 4 (pump delay) +
	// 128 (members) + 32 (repeat) + 2048 (overrides) + 128 (pause) +
	// 32 (gpio) = 3604
	if BlobSize != 3604 {
		t.Fatalf("BlobSize should be 3604, got %d", BlobSize)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var cfg sprinkler.Config
	cfg.Pumps = cfg.Pumps.SetEnabled(2, true).SetRelay(2, 9)
	cfg.Schedules[0] = cfg.Schedules[0].SetEnabled(true).SetHour(6, true).SetWeekday(0, true)
	cfg.ScheduleMinutes[0][6] = 30
	cfg.ScheduleQueues[0] = 0x5
	cfg.Relays[3] = cfg.Relays[3].SetEnabled(true).SetPump(1).SetMinutes(90)
	cfg.RelayOverlapMS[3] = 5000
	cfg.Months[7] = cfg.Months[7].SetEnabled(true).SetSlot(12)
	cfg.PumpDelayMS = 2500
	cfg.QueueMembers[1] = 0xF0
	cfg.QueueRepeat[1] = 4
	cfg.OverrideSec[1][4] = 600
	cfg.QueuePause[1] = cfg.QueuePause[1].SetAutoAdvance(true).SetSeconds(15)
	cfg.RelayGPIO[3] = 17

	blob := Encode(&cfg)
	if len(blob) != BlobSize {
		t.Fatalf("encoded size: want %d, got %d", BlobSize, len(blob))
	}

	var decoded sprinkler.Config
	if err := Decode(blob, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != cfg {
		t.Fatal("decoded config differs from original")
	}
}

func TestBinaryLayout(t *testing.T) {
	var cfg sprinkler.Config
	cfg.Pumps = 0x01020304
	cfg.Schedules[0] = 0x11121314
	cfg.ScheduleMinutes[0][0] = 0x21
	cfg.PumpDelayMS = 0x31323334
	cfg.RelayGPIO[0] = 0x41

	blob := Encode(&cfg)

	// Pumps word at offset 0, little-endian.
	if got := binary.LittleEndian.Uint32(blob[0:4]); got != 0x01020304 {
		t.Fatalf("pumps at wrong offset or endianness: %#08x", got)
	}
	// First schedule word at offset 4.
	if got := binary.LittleEndian.Uint32(blob[4:8]); got != 0x11121314 {
		t.Fatalf("schedule 0 at wrong offset: %#08x", got)
	}
	// Schedule minutes start after the 32 schedule words: 4 + 128 = 132.
	if blob[132] != 0x21 {
		t.Fatalf("minute[0][0] at wrong offset: %#02x", blob[132])
	}
	// Pump delay sits after pumps+schedules+minutes+slot-queues+relays+
	// overlap+months: 4+128+768+128+64+128+12 = 1232.
	if got := binary.LittleEndian.Uint32(blob[1232:1236]); got != 0x31323334 {
		t.Fatalf("pump delay at wrong offset: %#08x", got)
	}
	// GPIO table is the final 32 bytes.
	if blob[BlobSize-32] != 0x41 {
		t.Fatalf("gpio[0] at wrong offset: %#02x", blob[BlobSize-32])
	}
}

func TestZeroConfigEncodesToZeros(t *testing.T) {
	var cfg sprinkler.Config
	blob := Encode(&cfg)
	if !bytes.Equal(blob, make([]byte, BlobSize)) {
		t.Fatal("zero config did not encode to all-zero blob")
	}
}

func TestDecodeRejectsWrongSize(t *testing.T) {
	var cfg sprinkler.Config
	if err := Decode(make([]byte, BlobSize-1), &cfg); !errors.Is(err, ErrBlobSize) {
		t.Fatalf("short blob: want ErrBlobSize, got %v", err)
	}
	if err := Decode(make([]byte, BlobSize+1), &cfg); !errors.Is(err, ErrBlobSize) {
		t.Fatalf("long blob: want ErrBlobSize, got %v", err)
	}
}
