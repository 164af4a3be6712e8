package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"sprinkler/internal/sprinkler"
)

// exportDoc is the document structure for config export/import. Only
// configured entries are emitted, keyed by their ids, so documents stay
// small and diffable. JSON is the default encoding; msgpack produces a
// compact binary backup.
type exportDoc struct {
	PumpDelayMS uint32             `json:"pump_delay_ms,omitempty" msgpack:"pump_delay_ms,omitempty"`
	Pumps       []pumpExport       `json:"pumps,omitempty" msgpack:"pumps,omitempty"`
	Relays      []relayExport      `json:"relays,omitempty" msgpack:"relays,omitempty"`
	Queues      []queueExport      `json:"queues,omitempty" msgpack:"queues,omitempty"`
	Schedules   []scheduleExport   `json:"schedules,omitempty" msgpack:"schedules,omitempty"`
	Months      []monthExport      `json:"months,omitempty" msgpack:"months,omitempty"`
	RelayPauses []relayPauseExport `json:"relay_pauses,omitempty" msgpack:"relay_pauses,omitempty"`
}

type pumpExport struct {
	ID      uint8 `json:"id" msgpack:"id"`
	Enabled bool  `json:"enabled" msgpack:"enabled"`
	Relay   uint8 `json:"relay" msgpack:"relay"`
}

type relayExport struct {
	ID        uint8  `json:"id" msgpack:"id"`
	Enabled   bool   `json:"enabled" msgpack:"enabled"`
	Pump      uint8  `json:"pump" msgpack:"pump"`
	Minutes   uint16 `json:"minutes" msgpack:"minutes"`
	GPIO      uint8  `json:"gpio" msgpack:"gpio"`
	OverlapMS uint32 `json:"overlap_ms,omitempty" msgpack:"overlap_ms,omitempty"`
}

type overrideExport struct {
	Relay   uint8  `json:"relay" msgpack:"relay"`
	Seconds uint16 `json:"seconds" msgpack:"seconds"`
}

type queueExport struct {
	ID           uint8            `json:"id" msgpack:"id"`
	Members      []uint8          `json:"members" msgpack:"members"`
	Repeat       uint8            `json:"repeat,omitempty" msgpack:"repeat,omitempty"`
	PauseSeconds uint32           `json:"pause_seconds,omitempty" msgpack:"pause_seconds,omitempty"`
	AutoAdvance  bool             `json:"autoadvance,omitempty" msgpack:"autoadvance,omitempty"`
	Overrides    []overrideExport `json:"overrides,omitempty" msgpack:"overrides,omitempty"`
}

type minuteExport struct {
	Hour   uint8 `json:"hour" msgpack:"hour"`
	Minute uint8 `json:"minute" msgpack:"minute"`
}

type scheduleExport struct {
	ID       uint8          `json:"id" msgpack:"id"`
	Enabled  bool           `json:"enabled" msgpack:"enabled"`
	Hours    []minuteExport `json:"hours,omitempty" msgpack:"hours,omitempty"`
	Weekdays []uint8        `json:"weekdays,omitempty" msgpack:"weekdays,omitempty"`
	Queues   []uint8        `json:"queues,omitempty" msgpack:"queues,omitempty"`
}

type monthExport struct {
	Month   uint8 `json:"month" msgpack:"month"`
	Enabled bool  `json:"enabled" msgpack:"enabled"`
	FlagA   bool  `json:"flag_a,omitempty" msgpack:"flag_a,omitempty"`
	FlagB   bool  `json:"flag_b,omitempty" msgpack:"flag_b,omitempty"`
	Slot    uint8 `json:"slot" msgpack:"slot"`
}

type relayPauseExport struct {
	Relay   uint8  `json:"relay" msgpack:"relay"`
	Seconds uint16 `json:"seconds" msgpack:"seconds"`
}

func buildExportDoc(cfg sprinkler.Config) exportDoc {
	doc := exportDoc{PumpDelayMS: cfg.PumpDelayMS}

	for p := uint8(0); p < sprinkler.NumPumps; p++ {
		if cfg.Pumps.Enabled(p) || cfg.Pumps.Relay(p) != 0 {
			doc.Pumps = append(doc.Pumps, pumpExport{
				ID: p, Enabled: cfg.Pumps.Enabled(p), Relay: cfg.Pumps.Relay(p),
			})
		}
	}
	for r := uint8(0); r < sprinkler.NumRelays; r++ {
		rw := cfg.Relays[r]
		if rw == 0 && cfg.RelayGPIO[r] == 0 && cfg.RelayOverlapMS[r] == 0 {
			continue
		}
		doc.Relays = append(doc.Relays, relayExport{
			ID: r, Enabled: rw.Enabled(), Pump: rw.Pump(), Minutes: rw.Minutes(),
			GPIO: cfg.RelayGPIO[r], OverlapMS: cfg.RelayOverlapMS[r],
		})
	}
	for q := uint8(0); q < sprinkler.NumQueues; q++ {
		qe := queueExport{
			ID:           q,
			Repeat:       cfg.QueueRepeat[q],
			PauseSeconds: cfg.QueuePause[q].Seconds(),
			AutoAdvance:  cfg.QueuePause[q].AutoAdvance(),
		}
		for r := uint8(0); r < sprinkler.NumRelays; r++ {
			if cfg.QueueMembers[q]&(1<<r) != 0 {
				qe.Members = append(qe.Members, r)
			}
			if q != sprinkler.PauseTableQueue && cfg.OverrideSec[q][r] != 0 {
				qe.Overrides = append(qe.Overrides, overrideExport{Relay: r, Seconds: cfg.OverrideSec[q][r]})
			}
		}
		if qe.Members != nil || qe.Overrides != nil || qe.Repeat != 0 || qe.PauseSeconds != 0 || qe.AutoAdvance {
			doc.Queues = append(doc.Queues, qe)
		}
	}
	for id := uint8(0); id < sprinkler.NumSchedules; id++ {
		sw := cfg.Schedules[id]
		if sw == 0 {
			continue
		}
		se := scheduleExport{ID: id, Enabled: sw.Enabled()}
		for h := uint8(0); h < sprinkler.HoursPerDay; h++ {
			if sw.Hour(h) {
				se.Hours = append(se.Hours, minuteExport{Hour: h, Minute: cfg.ScheduleMinutes[id][h]})
			}
		}
		for d := uint8(0); d < 7; d++ {
			if sw.Weekday(d) {
				se.Weekdays = append(se.Weekdays, d)
			}
		}
		for q := uint8(0); q < sprinkler.NumQueues; q++ {
			if cfg.ScheduleQueues[id]&(1<<q) != 0 {
				se.Queues = append(se.Queues, q)
			}
		}
		doc.Schedules = append(doc.Schedules, se)
	}
	for m := uint8(0); m < sprinkler.NumMonths; m++ {
		mb := cfg.Months[m]
		if mb == 0 {
			continue
		}
		doc.Months = append(doc.Months, monthExport{
			Month: m, Enabled: mb.Enabled(), FlagA: mb.FlagA(), FlagB: mb.FlagB(), Slot: mb.Slot(),
		})
	}
	for r := uint8(0); r < sprinkler.NumRelays; r++ {
		if sec := cfg.OverrideSec[sprinkler.PauseTableQueue][r]; sec != 0 {
			doc.RelayPauses = append(doc.RelayPauses, relayPauseExport{Relay: r, Seconds: sec})
		}
	}
	return doc
}

// applyExportDoc replays a document through the validated setters, so a
// hand-edited file with out-of-range values fails cleanly instead of
// producing a corrupt blob.
func applyExportDoc(s *sprinkler.Sprinkler, doc exportDoc) error {
	if err := s.SetPumpDelayMS(doc.PumpDelayMS); err != nil {
		return err
	}
	for _, r := range doc.Relays {
		if err := s.SetRelayEnabled(r.ID, r.Enabled); err != nil {
			return fmt.Errorf("relay %d: %w", r.ID, err)
		}
		if err := s.SetRelayPump(r.ID, r.Pump); err != nil {
			return fmt.Errorf("relay %d pump: %w", r.ID, err)
		}
		if err := s.SetRelayMinutes(r.ID, r.Minutes); err != nil {
			return fmt.Errorf("relay %d minutes: %w", r.ID, err)
		}
		if err := s.SetRelayGPIO(r.ID, r.GPIO); err != nil {
			return fmt.Errorf("relay %d gpio: %w", r.ID, err)
		}
		if err := s.SetRelayOverlapMS(r.ID, r.OverlapMS); err != nil {
			return fmt.Errorf("relay %d overlap: %w", r.ID, err)
		}
	}
	for _, q := range doc.Queues {
		for _, r := range q.Members {
			if err := s.SetQueueMember(q.ID, r, true); err != nil {
				return fmt.Errorf("queue %d member %d: %w", q.ID, r, err)
			}
		}
		if err := s.SetQueueRepeat(q.ID, q.Repeat); err != nil {
			return fmt.Errorf("queue %d repeat: %w", q.ID, err)
		}
		if err := s.SetQueuePauseSeconds(q.ID, q.PauseSeconds); err != nil {
			return fmt.Errorf("queue %d pause: %w", q.ID, err)
		}
		if err := s.SetQueueAutoAdvance(q.ID, q.AutoAdvance); err != nil {
			return fmt.Errorf("queue %d autoadvance: %w", q.ID, err)
		}
		for _, o := range q.Overrides {
			if err := s.SetQueueOverrideSec(q.ID, o.Relay, o.Seconds); err != nil {
				return fmt.Errorf("queue %d override %d: %w", q.ID, o.Relay, err)
			}
		}
	}
	// Pumps after queues: actuator validation needs the membership in place.
	for _, p := range doc.Pumps {
		if err := s.SetPumpRelay(p.ID, p.Relay); err != nil {
			return fmt.Errorf("pump %d relay: %w", p.ID, err)
		}
		if err := s.SetPumpEnabled(p.ID, p.Enabled); err != nil {
			return fmt.Errorf("pump %d: %w", p.ID, err)
		}
	}
	for _, sc := range doc.Schedules {
		if err := s.SetScheduleEnabled(sc.ID, sc.Enabled); err != nil {
			return fmt.Errorf("schedule %d: %w", sc.ID, err)
		}
		for _, h := range sc.Hours {
			if err := s.SetScheduleHour(sc.ID, h.Hour, true); err != nil {
				return fmt.Errorf("schedule %d hour %d: %w", sc.ID, h.Hour, err)
			}
			if err := s.SetScheduleMinute(sc.ID, h.Hour, h.Minute); err != nil {
				return fmt.Errorf("schedule %d minute: %w", sc.ID, err)
			}
		}
		for _, d := range sc.Weekdays {
			if err := s.SetScheduleWeekday(sc.ID, d, true); err != nil {
				return fmt.Errorf("schedule %d weekday %d: %w", sc.ID, d, err)
			}
		}
		for _, q := range sc.Queues {
			if err := s.SetScheduleQueue(sc.ID, q, true); err != nil {
				return fmt.Errorf("schedule %d queue %d: %w", sc.ID, q, err)
			}
		}
	}
	for _, m := range doc.Months {
		if err := s.SetMonthEnabled(m.Month, m.Enabled); err != nil {
			return fmt.Errorf("month %d: %w", m.Month, err)
		}
		if err := s.SetMonthFlagA(m.Month, m.FlagA); err != nil {
			return fmt.Errorf("month %d flag a: %w", m.Month, err)
		}
		if err := s.SetMonthFlagB(m.Month, m.FlagB); err != nil {
			return fmt.Errorf("month %d flag b: %w", m.Month, err)
		}
		if err := s.SetMonthSlot(m.Month, m.Slot); err != nil {
			return fmt.Errorf("month %d slot: %w", m.Month, err)
		}
	}
	for _, rp := range doc.RelayPauses {
		if err := s.SetRelayPause(rp.Relay, uint32(rp.Seconds)); err != nil {
			return fmt.Errorf("relay %d pause: %w", rp.Relay, err)
		}
	}
	return nil
}

func newExportCmd(logger func() *slog.Logger, blobPath *string) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the configuration as a document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(logger(), *blobPath, func(s *sprinkler.Sprinkler) error {
				doc := buildExportDoc(s.Snapshot())

				var (
					data []byte
					err  error
				)
				switch format {
				case "json":
					data, err = json.MarshalIndent(doc, "", "  ")
					data = append(data, '\n')
				case "msgpack":
					data, err = msgpack.Marshal(doc)
				default:
					return fmt.Errorf("unknown format %q", format)
				}
				if err != nil {
					return fmt.Errorf("encode export: %w", err)
				}

				if output == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				return os.WriteFile(output, data, 0o644)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "export format: json or msgpack")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}

func newImportCmd(logger func() *slog.Logger, blobPath *string) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the configuration from an exported document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var doc exportDoc
			switch format {
			case "json":
				err = json.Unmarshal(data, &doc)
			case "msgpack":
				err = msgpack.Unmarshal(data, &doc)
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			if err != nil {
				return fmt.Errorf("decode import: %w", err)
			}

			// The import is a full replacement: wipe whatever the blob held
			// before replaying the document, then let Close write it back.
			return withController(logger(), *blobPath, func(s *sprinkler.Sprinkler) error {
				s.ResetConfig()
				return applyExportDoc(s, doc)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "import format: json or msgpack")
	return cmd
}
