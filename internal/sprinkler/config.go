package sprinkler

import "sprinkler/internal/packed"

// Config is the persisted portion of the controller state. The on-disk blob
// is this struct in field order, little-endian, with the packed words
// encoded as their underlying integers (see internal/store).
//
// All identifiers are 0-based: schedule slots, queues and relays in [0,32),
// pumps in [0,5), months in [0,12). Weekdays run 0=Monday .. 6=Sunday.
type Config struct {
	// Pumps packs the five pump enable bits and actuator relay ids.
	Pumps packed.PumpWord

	// Schedules holds the calendar slots: enable, hour set, weekday set.
	Schedules [NumSchedules]packed.ScheduleWord

	// ScheduleMinutes[s][h] is the minute within hour h at which slot s
	// fires. Meaningful only for hours present in the slot's hour set.
	ScheduleMinutes [NumSchedules][HoursPerDay]uint8

	// ScheduleQueues[s] is the bit-set of queues enqueued when slot s fires.
	ScheduleQueues [NumSchedules]uint32

	// Relays holds per-relay enable, pump id and default duration minutes.
	Relays [NumRelays]packed.RelayWord

	// RelayOverlapMS[r] keeps relay r and its successor open simultaneously
	// for the given milliseconds to avoid pressure drops. 0 disables.
	RelayOverlapMS [NumRelays]uint32

	// Months holds per-month enable, the two host-reserved flags and the
	// governing schedule slot.
	Months [NumMonths]packed.MonthByte

	// PumpDelayMS is the staging delay between commanding a pump's actuator
	// relay on and when downstream valves may begin.
	PumpDelayMS uint32

	// QueueMembers[q] is the bit-set of member relays, executed in ascending
	// relay-id order.
	QueueMembers [NumQueues]uint32

	// QueueRepeat[q] is the number of additional cycles after the first.
	QueueRepeat [NumQueues]uint8

	// OverrideSec[q][r] overrides relay r's duration, in seconds, when relay
	// r runs as a member of queue q; 0 means use the relay default. Row
	// PauseTableQueue is the per-relay pause table instead.
	OverrideSec [NumQueues][NumRelays]uint16

	// QueuePause[q] packs the queue's autoadvance bit and post-step pause
	// seconds.
	QueuePause [NumQueues]packed.PauseWord

	// RelayGPIO[r] is the host GPIO driving relay r.
	RelayGPIO [NumRelays]uint8
}
