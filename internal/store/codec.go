// Package store holds the persisted-configuration codec shared by the
// storage backends. The payload is the full persisted portion of the
// controller configuration as a fixed-layout little-endian blob: struct
// field order, packed words written as their underlying integers, no
// version header and no checksum. Corruption therefore surfaces as a
// decode failure, which the controller's init path answers by zero-filling.
package store

import (
	"encoding/binary"
	"errors"

	"sprinkler/internal/packed"
	"sprinkler/internal/sprinkler"
)

// Section sizes, in blob order.
const (
	pumpsBytes           = 4
	schedulesBytes       = sprinkler.NumSchedules * 4
	scheduleMinutesBytes = sprinkler.NumSchedules * sprinkler.HoursPerDay
	scheduleQueuesBytes  = sprinkler.NumSchedules * 4
	relaysBytes          = sprinkler.NumRelays * 2
	relayOverlapBytes    = sprinkler.NumRelays * 4
	monthsBytes          = sprinkler.NumMonths
	pumpDelayBytes       = 4
	queueMembersBytes    = sprinkler.NumQueues * 4
	queueRepeatBytes     = sprinkler.NumQueues
	overrideSecBytes     = sprinkler.NumQueues * sprinkler.NumRelays * 2
	queuePauseBytes      = sprinkler.NumQueues * 4
	relayGPIOBytes       = sprinkler.NumRelays

	// BlobSize is the exact size of an encoded configuration.
	BlobSize = pumpsBytes + schedulesBytes + scheduleMinutesBytes +
		scheduleQueuesBytes + relaysBytes + relayOverlapBytes + monthsBytes +
		pumpDelayBytes + queueMembersBytes + queueRepeatBytes +
		overrideSecBytes + queuePauseBytes + relayGPIOBytes
)

// ErrBlobSize is returned when a payload is not exactly BlobSize bytes.
var ErrBlobSize = errors.New("config blob size mismatch")

// Encode serializes cfg into a BlobSize-byte little-endian blob.
func Encode(cfg *sprinkler.Config) []byte {
	buf := make([]byte, BlobSize)
	cursor := 0

	binary.LittleEndian.PutUint32(buf[cursor:], uint32(cfg.Pumps))
	cursor += pumpsBytes
	for i := range cfg.Schedules {
		binary.LittleEndian.PutUint32(buf[cursor:], uint32(cfg.Schedules[i]))
		cursor += 4
	}
	for i := range cfg.ScheduleMinutes {
		copy(buf[cursor:], cfg.ScheduleMinutes[i][:])
		cursor += sprinkler.HoursPerDay
	}
	for i := range cfg.ScheduleQueues {
		binary.LittleEndian.PutUint32(buf[cursor:], cfg.ScheduleQueues[i])
		cursor += 4
	}
	for i := range cfg.Relays {
		binary.LittleEndian.PutUint16(buf[cursor:], uint16(cfg.Relays[i]))
		cursor += 2
	}
	for i := range cfg.RelayOverlapMS {
		binary.LittleEndian.PutUint32(buf[cursor:], cfg.RelayOverlapMS[i])
		cursor += 4
	}
	for i := range cfg.Months {
		buf[cursor] = uint8(cfg.Months[i])
		cursor++
	}
	binary.LittleEndian.PutUint32(buf[cursor:], cfg.PumpDelayMS)
	cursor += pumpDelayBytes
	for i := range cfg.QueueMembers {
		binary.LittleEndian.PutUint32(buf[cursor:], cfg.QueueMembers[i])
		cursor += 4
	}
	copy(buf[cursor:], cfg.QueueRepeat[:])
	cursor += queueRepeatBytes
	for q := range cfg.OverrideSec {
		for r := range cfg.OverrideSec[q] {
			binary.LittleEndian.PutUint16(buf[cursor:], cfg.OverrideSec[q][r])
			cursor += 2
		}
	}
	for i := range cfg.QueuePause {
		binary.LittleEndian.PutUint32(buf[cursor:], uint32(cfg.QueuePause[i]))
		cursor += 4
	}
	copy(buf[cursor:], cfg.RelayGPIO[:])

	return buf
}

// Decode parses a blob produced by Encode.
func Decode(buf []byte, cfg *sprinkler.Config) error {
	if len(buf) != BlobSize {
		return ErrBlobSize
	}
	cursor := 0

	cfg.Pumps = packed.PumpWord(binary.LittleEndian.Uint32(buf[cursor:]))
	cursor += pumpsBytes
	for i := range cfg.Schedules {
		cfg.Schedules[i] = packed.ScheduleWord(binary.LittleEndian.Uint32(buf[cursor:]))
		cursor += 4
	}
	for i := range cfg.ScheduleMinutes {
		copy(cfg.ScheduleMinutes[i][:], buf[cursor:cursor+sprinkler.HoursPerDay])
		cursor += sprinkler.HoursPerDay
	}
	for i := range cfg.ScheduleQueues {
		cfg.ScheduleQueues[i] = binary.LittleEndian.Uint32(buf[cursor:])
		cursor += 4
	}
	for i := range cfg.Relays {
		cfg.Relays[i] = packed.RelayWord(binary.LittleEndian.Uint16(buf[cursor:]))
		cursor += 2
	}
	for i := range cfg.RelayOverlapMS {
		cfg.RelayOverlapMS[i] = binary.LittleEndian.Uint32(buf[cursor:])
		cursor += 4
	}
	for i := range cfg.Months {
		cfg.Months[i] = packed.MonthByte(buf[cursor])
		cursor++
	}
	cfg.PumpDelayMS = binary.LittleEndian.Uint32(buf[cursor:])
	cursor += pumpDelayBytes
	for i := range cfg.QueueMembers {
		cfg.QueueMembers[i] = binary.LittleEndian.Uint32(buf[cursor:])
		cursor += 4
	}
	copy(cfg.QueueRepeat[:], buf[cursor:cursor+queueRepeatBytes])
	cursor += queueRepeatBytes
	for q := range cfg.OverrideSec {
		for r := range cfg.OverrideSec[q] {
			cfg.OverrideSec[q][r] = binary.LittleEndian.Uint16(buf[cursor:])
			cursor += 2
		}
	}
	for i := range cfg.QueuePause {
		cfg.QueuePause[i] = packed.PauseWord(binary.LittleEndian.Uint32(buf[cursor:]))
		cursor += 4
	}
	copy(cfg.RelayGPIO[:], buf[cursor:cursor+relayGPIOBytes])

	return nil
}
