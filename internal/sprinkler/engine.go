package sprinkler

import "fmt"

// The scheduling engine. One Tick is a single cooperative, non-blocking
// pass: sample the clock once, ingest the calendar, offer a persistence
// flush, fire deferred pump starts, then walk every running queue against
// the same sampled instant. Hardware failures inside the tick are logged
// and swallowed; stops are retried naturally on later ticks because the
// running bit-sets are only cleared once the stop succeeds.

// Wrap-safe deadline ordering on uint32 seconds.
func timeBefore(a, b uint32) bool  { return int32(a-b) < 0 }
func timeAfterEq(a, b uint32) bool { return int32(a-b) >= 0 }

// ceilSeconds converts milliseconds to whole seconds, rounding up.
func ceilSeconds(ms uint32) uint32 { return (ms + 999) / 1000 }

// Tick advances the controller by one step. It returns an error only when
// the clock cannot be read; runtime state is then left untouched so the next
// tick retries.
func (s *Sprinkler) Tick() error {
	t, err := s.clock.Now()
	if err != nil {
		return fmt.Errorf("%w: read clock: %w", ErrFailed, err)
	}
	now := uint32(t.Unix())

	// Phase A: calendar ingest.
	s.ingestCalendar(t)

	// Phase B: persistence flush.
	if s.dirty && timeAfterEq(now, s.lastPersist+PersistInterval) {
		if err := s.store.Save(&s.cfg); err != nil {
			s.logger.Warn("periodic persist failed", "error", err)
		} else {
			s.dirty = false
			s.lastPersist = now
		}
	}

	// Phase C: deferred pump starts whose staging delay has elapsed.
	for p := uint8(0); p < NumPumps; p++ {
		if s.pumpStart[p] != 0 && timeAfterEq(now, s.pumpStart[p]) {
			s.startPump(p)
		}
	}

	// Phase D: nothing scheduled — reset runtime state and release hardware.
	if s.queueRunning == 0 {
		s.resetIdle()
		return nil
	}

	// Phase E: walk every running queue against the same sampled instant.
	for q := uint8(0); q < NumQueues; q++ {
		if s.queueRunning&(1<<q) != 0 {
			s.walkQueue(q, now)
		}
	}
	return nil
}

// resetIdle zeroes all per-queue runtime state and stops anything the
// hardware still holds asserted.
func (s *Sprinkler) resetIdle() {
	s.currentIdx = [NumQueues]uint8{}
	s.pauseEnd = [NumQueues]uint32{}
	s.paused = [NumQueues]bool{}
	s.repeatCount = [NumQueues]uint8{}
	s.relayEnd = [NumQueues][NumRelays]uint32{}
	for p := uint8(0); p < NumPumps; p++ {
		if s.activePumps&(1<<p) != 0 {
			s.stopPump(p)
		}
	}
	for r := uint8(0); r < NumRelays; r++ {
		if s.relayRunning&(1<<r) != 0 {
			s.stopValve(r)
		}
	}
}

// walkQueue advances queue q by at most one step.
func (s *Sprinkler) walkQueue(q uint8, now uint32) {
	members := s.cfg.QueueMembers[q]
	if members == 0 {
		s.queueRunning &^= 1 << q
		s.repeatCount[q] = 0
		return
	}

	idx := nextMember(members, s.currentIdx[q])
	if idx >= NumRelays {
		s.endCycle(q)
		return
	}
	s.currentIdx[q] = idx
	r := idx

	// Pause gate. A timed pause holds the whole queue, including expiry
	// processing of a relay still running from before the pause.
	if s.pauseEnd[q] != 0 {
		if timeBefore(now, s.pauseEnd[q]) {
			return
		}
		s.pauseEnd[q] = 0
	}
	if s.paused[q] && !s.cfg.QueuePause[q].AutoAdvance() {
		return
	}

	rw := s.cfg.Relays[r]
	if !rw.Enabled() {
		s.currentIdx[q]++
		return
	}

	dur := s.durationFor(q, r)
	if dur == 0 {
		s.currentIdx[q]++
		return
	}

	// Activation.
	if s.relayEnd[q][r] == 0 {
		if !s.ensurePump(rw.Pump(), now) {
			return
		}
		s.relayEnd[q][r] = now + dur
		if s.relayRunning&(1<<r) == 0 {
			s.startValve(r)
		}
	}

	// Expiry.
	if timeAfterEq(now, s.relayEnd[q][r]) {
		s.expireMember(q, r, members, now)
	}

	// Overlap: near the end of r's window, pre-start the next member so both
	// are open across the transition. Does not advance the queue cursor.
	if s.relayRunning&(1<<r) != 0 && s.cfg.RelayOverlapMS[r] > 0 {
		s.overlapNext(q, r, members, now)
	}
}

// expireMember finishes queue q's activation of relay r: release the valve
// and pump if nothing else needs them, arm the post-step pause, and advance
// the cursor, closing out the cycle if r was the last member.
func (s *Sprinkler) expireMember(q, r uint8, members uint32, now uint32) {
	if !s.valveNeededElsewhere(q, r, now) {
		s.stopValve(r)
	}
	if p := s.cfg.Relays[r].Pump(); p < NumPumps {
		if !s.pumpNeeded(p) && s.activePumps&(1<<p) != 0 {
			s.stopPump(p)
		}
	}
	s.relayEnd[q][r] = 0

	pauseSec := uint32(s.cfg.OverrideSec[PauseTableQueue][r])
	if pauseSec == 0 {
		pauseSec = s.cfg.QueuePause[q].Seconds()
	}
	if pauseSec > 0 {
		s.pauseEnd[q] = now + pauseSec
	}
	if !s.cfg.QueuePause[q].AutoAdvance() {
		s.paused[q] = true
	}

	s.currentIdx[q]++
	if nextMember(members, s.currentIdx[q]) >= NumRelays {
		s.endCycle(q)
	}
}

// overlapNext pre-starts the member after r once now reaches the intended
// start (r's deadline minus the overlap).
func (s *Sprinkler) overlapNext(q, r uint8, members uint32, now uint32) {
	intended := s.relayEnd[q][r] - ceilSeconds(s.cfg.RelayOverlapMS[r])
	if !timeAfterEq(now, intended) {
		return
	}
	next := nextMember(members, r+1)
	if next >= NumRelays || !s.cfg.Relays[next].Enabled() {
		return
	}
	dur := s.durationFor(q, next)
	if dur == 0 {
		return
	}
	if !s.ensurePump(s.cfg.Relays[next].Pump(), now) {
		return
	}
	s.relayEnd[q][next] = intended + dur
	if s.relayRunning&(1<<next) == 0 {
		s.startValve(next)
	}
}

// endCycle handles a queue whose cursor ran past its last member. A
// configured repeat of k runs the members k+1 times in total; 0 means the
// single pass just completed was the only one.
func (s *Sprinkler) endCycle(q uint8) {
	repeat := s.cfg.QueueRepeat[q]
	if repeat == 0 || uint16(s.repeatCount[q])+1 > uint16(repeat) {
		s.queueRunning &^= 1 << q
		s.repeatCount[q] = 0
		s.logger.Info("queue finished", "queue", q)
	} else {
		s.repeatCount[q]++
	}
	s.currentIdx[q] = 0
}

// durationFor selects the activation duration in seconds for relay r running
// in queue q: the per-queue override if set, else the relay default. The
// reserved pause row never supplies member durations.
func (s *Sprinkler) durationFor(q, r uint8) uint32 {
	if q != PauseTableQueue {
		if o := s.cfg.OverrideSec[q][r]; o != 0 {
			return uint32(o)
		}
	}
	return uint32(s.cfg.Relays[r].Minutes()) * 60
}

// nextMember returns the first member id >= from, or NumRelays.
func nextMember(members uint32, from uint8) uint8 {
	idx := from
	for idx < NumRelays && members&(1<<idx) == 0 {
		idx++
	}
	return idx
}

// valveNeededElsewhere reports whether another running queue is positioned
// on relay r with an unexpired activation.
func (s *Sprinkler) valveNeededElsewhere(q, r uint8, now uint32) bool {
	for o := uint8(0); o < NumQueues; o++ {
		if o == q || s.queueRunning&(1<<o) == 0 {
			continue
		}
		if s.currentIdx[o] == r && s.relayEnd[o][r] != 0 && timeBefore(now, s.relayEnd[o][r]) {
			return true
		}
	}
	return false
}

// pumpNeeded reports whether any running valve relay still draws from pump
// p. Actuator relays are excluded: the pump's own actuator being asserted
// must not keep the pump alive.
func (s *Sprinkler) pumpNeeded(p uint8) bool {
	for r := uint8(0); r < NumRelays; r++ {
		if s.relayRunning&(1<<r) == 0 || s.isActuator(r) {
			continue
		}
		if s.cfg.Relays[r].Pump() == p {
			return true
		}
	}
	return false
}

// isActuator reports whether relay r actuates a currently active pump.
func (s *Sprinkler) isActuator(r uint8) bool {
	for p := uint8(0); p < NumPumps; p++ {
		if s.activePumps&(1<<p) != 0 && s.cfg.Pumps.Relay(p) == r {
			return true
		}
	}
	return false
}

// ensurePump prepares pump p for a valve that is about to open. It reports
// true when the valve may start now: no pump required, pump already on, or
// started within this call. When a staging delay applies it arms the
// deferred start and reports false; the valve waits until a later tick.
func (s *Sprinkler) ensurePump(p uint8, now uint32) bool {
	if p >= NumPumps || !s.cfg.Pumps.Enabled(p) {
		return true
	}
	if s.activePumps&(1<<p) != 0 {
		return true
	}
	if s.pumpStart[p] != 0 {
		if timeAfterEq(now, s.pumpStart[p]) {
			s.startPump(p)
			return true
		}
		return false
	}
	if s.cfg.PumpDelayMS == 0 {
		s.startPump(p)
		return true
	}
	s.pumpStart[p] = now + ceilSeconds(s.cfg.PumpDelayMS)
	s.logger.Info("pump staging", "pump", p, "start_at", s.pumpStart[p])
	return false
}

// startPump asserts pump p's actuator relay and marks the pump active.
func (s *Sprinkler) startPump(p uint8) {
	actuator := s.cfg.Pumps.Relay(p)
	if err := s.gw.StartRelay(s.cfg.RelayGPIO[actuator]); err != nil {
		s.logger.Warn("pump start failed", "pump", p, "gpio", s.cfg.RelayGPIO[actuator], "error", err)
	}
	s.activePumps |= 1 << p
	s.relayRunning |= 1 << actuator
	s.pumpStart[p] = 0
	s.logger.Info("pump on", "pump", p, "relay", actuator)
}

// stopPump deasserts pump p's actuator relay and marks the pump off. A
// failed stop leaves the pump marked active so a later tick retries it.
func (s *Sprinkler) stopPump(p uint8) {
	actuator := s.cfg.Pumps.Relay(p)
	if err := s.gw.StopRelay(s.cfg.RelayGPIO[actuator]); err != nil {
		s.logger.Warn("pump stop failed", "pump", p, "gpio", s.cfg.RelayGPIO[actuator], "error", err)
		return
	}
	s.activePumps &^= 1 << p
	s.relayRunning &^= 1 << actuator
	s.logger.Info("pump off", "pump", p, "relay", actuator)
}

// startValve asserts relay r's GPIO and marks it running.
func (s *Sprinkler) startValve(r uint8) {
	if err := s.gw.StartRelay(s.cfg.RelayGPIO[r]); err != nil {
		s.logger.Warn("relay start failed", "relay", r, "gpio", s.cfg.RelayGPIO[r], "error", err)
	}
	s.relayRunning |= 1 << r
	s.logger.Info("relay on", "relay", r)
}

// stopValve deasserts relay r's GPIO and marks it stopped. A failed stop
// leaves the relay marked running so a later tick retries it.
func (s *Sprinkler) stopValve(r uint8) {
	if err := s.gw.StopRelay(s.cfg.RelayGPIO[r]); err != nil {
		s.logger.Warn("relay stop failed", "relay", r, "gpio", s.cfg.RelayGPIO[r], "error", err)
		return
	}
	s.relayRunning &^= 1 << r
	s.logger.Info("relay off", "relay", r)
}
