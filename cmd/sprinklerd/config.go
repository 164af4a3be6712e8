package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	hwmem "sprinkler/internal/hardware/memory"
	"sprinkler/internal/logging"
	"sprinkler/internal/sprinkler"
	storefile "sprinkler/internal/store/file"
)

// withController opens the blob, hands a controller to fn and flushes the
// result. A missing blob starts from a zeroed configuration, so the first
// set command also creates the file.
func withController(logger *slog.Logger, blobPath string, fn func(*sprinkler.Sprinkler) error) error {
	st := storefile.New(blobPath)
	ctrl := sprinkler.New(hwmem.New(logging.Discard()), st, nil, logger)
	if err := fn(ctrl); err != nil {
		return err
	}
	return ctrl.Close()
}

func parseID(arg string, limit uint64) (uint8, error) {
	v, err := strconv.ParseUint(arg, 10, 8)
	if err != nil || v >= limit {
		return 0, fmt.Errorf("invalid identifier %q (0..%d)", arg, limit-1)
	}
	return uint8(v), nil
}

func newConfigCmd(logger func() *slog.Logger, blobPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the configuration blob",
	}
	cmd.AddCommand(
		newShowCmd(logger, blobPath),
		newSetRelayCmd(logger, blobPath),
		newSetQueueCmd(logger, blobPath),
		newSetScheduleCmd(logger, blobPath),
		newSetMonthCmd(logger, blobPath),
		newSetPumpCmd(logger, blobPath),
		newSetPumpDelayCmd(logger, blobPath),
		newSetRelayPauseCmd(logger, blobPath),
		newExportCmd(logger, blobPath),
		newImportCmd(logger, blobPath),
	)
	return cmd
}

func newSetRelayCmd(logger func() *slog.Logger, blobPath *string) *cobra.Command {
	var (
		enabled   bool
		minutes   uint16
		pump      string
		gpio      uint8
		overlapMS uint32
	)
	cmd := &cobra.Command{
		Use:   "set-relay <relay>",
		Short: "Configure a valve relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseID(args[0], sprinkler.NumRelays)
			if err != nil {
				return err
			}
			return withController(logger(), *blobPath, func(s *sprinkler.Sprinkler) error {
				if cmd.Flags().Changed("enabled") {
					if err := s.SetRelayEnabled(r, enabled); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("minutes") {
					if err := s.SetRelayMinutes(r, minutes); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("pump") {
					p := uint8(sprinkler.NoPump)
					if pump != "none" {
						if p, err = parseID(pump, sprinkler.NumPumps); err != nil {
							return err
						}
					}
					if err := s.SetRelayPump(r, p); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("gpio") {
					if err := s.SetRelayGPIO(r, gpio); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("overlap-ms") {
					if err := s.SetRelayOverlapMS(r, overlapMS); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&enabled, "enabled", false, "enable or disable the relay")
	cmd.Flags().Uint16Var(&minutes, "minutes", 0, "default duration in minutes (0..4095)")
	cmd.Flags().StringVar(&pump, "pump", "none", "supply pump (0..4) or none")
	cmd.Flags().Uint8Var(&gpio, "gpio", 0, "host GPIO pin")
	cmd.Flags().Uint32Var(&overlapMS, "overlap-ms", 0, "transition overlap in milliseconds")
	return cmd
}

func newSetQueueCmd(logger func() *slog.Logger, blobPath *string) *cobra.Command {
	var (
		addMembers    []string
		removeMembers []string
		repeat        uint8
		pauseSeconds  uint32
		autoadvance   bool
		overrides     []string
	)
	cmd := &cobra.Command{
		Use:   "set-queue <queue>",
		Short: "Configure a relay queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseID(args[0], sprinkler.NumQueues)
			if err != nil {
				return err
			}
			return withController(logger(), *blobPath, func(s *sprinkler.Sprinkler) error {
				for _, arg := range addMembers {
					r, err := parseID(arg, sprinkler.NumRelays)
					if err != nil {
						return err
					}
					if err := s.SetQueueMember(q, r, true); err != nil {
						return fmt.Errorf("add member %d: %w", r, err)
					}
				}
				for _, arg := range removeMembers {
					r, err := parseID(arg, sprinkler.NumRelays)
					if err != nil {
						return err
					}
					if err := s.SetQueueMember(q, r, false); err != nil {
						return fmt.Errorf("remove member %d: %w", r, err)
					}
				}
				if cmd.Flags().Changed("repeat") {
					if err := s.SetQueueRepeat(q, repeat); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("pause-seconds") {
					if err := s.SetQueuePauseSeconds(q, pauseSeconds); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("autoadvance") {
					if err := s.SetQueueAutoAdvance(q, autoadvance); err != nil {
						return err
					}
				}
				for _, ov := range overrides {
					relayArg, secArg, ok := strings.Cut(ov, "=")
					if !ok {
						return fmt.Errorf("invalid override %q, want relay=seconds", ov)
					}
					r, err := parseID(relayArg, sprinkler.NumRelays)
					if err != nil {
						return err
					}
					sec, err := strconv.ParseUint(secArg, 10, 16)
					if err != nil {
						return fmt.Errorf("invalid override seconds %q", secArg)
					}
					if err := s.SetQueueOverrideSec(q, r, uint16(sec)); err != nil {
						return fmt.Errorf("override relay %d: %w", r, err)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&addMembers, "add-member", nil, "relay id to add")
	cmd.Flags().StringSliceVar(&removeMembers, "remove-member", nil, "relay id to remove")
	cmd.Flags().Uint8Var(&repeat, "repeat", 0, "additional cycles after the first")
	cmd.Flags().Uint32Var(&pauseSeconds, "pause-seconds", 0, "pause between members in seconds")
	cmd.Flags().BoolVar(&autoadvance, "autoadvance", false, "continue automatically after each member")
	cmd.Flags().StringSliceVar(&overrides, "override", nil, "per-member duration override relay=seconds")
	return cmd
}

func newSetScheduleCmd(logger func() *slog.Logger, blobPath *string) *cobra.Command {
	var (
		enabled     bool
		hoursOn     []string
		hoursOff    []string
		weekdaysOn  []string
		weekdaysOff []string
		minutes     []string
		queuesOn    []string
		queuesOff   []string
	)
	cmd := &cobra.Command{
		Use:   "set-schedule <slot>",
		Short: "Configure a calendar schedule slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], sprinkler.NumSchedules)
			if err != nil {
				return err
			}
			return withController(logger(), *blobPath, func(s *sprinkler.Sprinkler) error {
				if cmd.Flags().Changed("enabled") {
					if err := s.SetScheduleEnabled(id, enabled); err != nil {
						return err
					}
				}
				for _, group := range []struct {
					args  []string
					limit uint64
					apply func(uint8) error
				}{
					{hoursOn, sprinkler.HoursPerDay, func(h uint8) error { return s.SetScheduleHour(id, h, true) }},
					{hoursOff, sprinkler.HoursPerDay, func(h uint8) error { return s.SetScheduleHour(id, h, false) }},
					{weekdaysOn, 7, func(d uint8) error { return s.SetScheduleWeekday(id, d, true) }},
					{weekdaysOff, 7, func(d uint8) error { return s.SetScheduleWeekday(id, d, false) }},
					{queuesOn, sprinkler.NumQueues, func(q uint8) error { return s.SetScheduleQueue(id, q, true) }},
					{queuesOff, sprinkler.NumQueues, func(q uint8) error { return s.SetScheduleQueue(id, q, false) }},
				} {
					for _, arg := range group.args {
						v, err := parseID(arg, group.limit)
						if err != nil {
							return err
						}
						if err := group.apply(v); err != nil {
							return err
						}
					}
				}
				for _, mn := range minutes {
					hourArg, minArg, ok := strings.Cut(mn, "=")
					if !ok {
						return fmt.Errorf("invalid minute %q, want hour=minute", mn)
					}
					h, err := parseID(hourArg, sprinkler.HoursPerDay)
					if err != nil {
						return err
					}
					m, err := parseID(minArg, 60)
					if err != nil {
						return err
					}
					if err := s.SetScheduleMinute(id, h, m); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&enabled, "enabled", false, "enable or disable the slot")
	cmd.Flags().StringSliceVar(&hoursOn, "add-hour", nil, "hour (0..23) to add")
	cmd.Flags().StringSliceVar(&hoursOff, "remove-hour", nil, "hour to remove")
	cmd.Flags().StringSliceVar(&weekdaysOn, "add-weekday", nil, "weekday (0=Mon..6=Sun) to add")
	cmd.Flags().StringSliceVar(&weekdaysOff, "remove-weekday", nil, "weekday to remove")
	cmd.Flags().StringSliceVar(&minutes, "minute", nil, "firing minute hour=minute")
	cmd.Flags().StringSliceVar(&queuesOn, "add-queue", nil, "queue to enqueue on trigger")
	cmd.Flags().StringSliceVar(&queuesOff, "remove-queue", nil, "queue to stop enqueueing")
	return cmd
}

func newSetMonthCmd(logger func() *slog.Logger, blobPath *string) *cobra.Command {
	var (
		enabled bool
		flagA   bool
		flagB   bool
		slot    uint8
	)
	cmd := &cobra.Command{
		Use:   "set-month <month>",
		Short: "Configure a month (0=Jan..11=Dec)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseID(args[0], sprinkler.NumMonths)
			if err != nil {
				return err
			}
			return withController(logger(), *blobPath, func(s *sprinkler.Sprinkler) error {
				if cmd.Flags().Changed("enabled") {
					if err := s.SetMonthEnabled(m, enabled); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("flag-a") {
					if err := s.SetMonthFlagA(m, flagA); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("flag-b") {
					if err := s.SetMonthFlagB(m, flagB); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("slot") {
					if err := s.SetMonthSlot(m, slot); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&enabled, "enabled", false, "enable or disable the month")
	cmd.Flags().BoolVar(&flagA, "flag-a", false, "host-reserved flag A")
	cmd.Flags().BoolVar(&flagB, "flag-b", false, "host-reserved flag B")
	cmd.Flags().Uint8Var(&slot, "slot", 0, "governing schedule slot (0..31)")
	return cmd
}

func newSetPumpCmd(logger func() *slog.Logger, blobPath *string) *cobra.Command {
	var (
		enabled bool
		relay   uint8
	)
	cmd := &cobra.Command{
		Use:   "set-pump <pump>",
		Short: "Configure a supply pump (0..4)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseID(args[0], sprinkler.NumPumps)
			if err != nil {
				return err
			}
			return withController(logger(), *blobPath, func(s *sprinkler.Sprinkler) error {
				if cmd.Flags().Changed("relay") {
					if err := s.SetPumpRelay(p, relay); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("enabled") {
					if err := s.SetPumpEnabled(p, enabled); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&enabled, "enabled", false, "enable or disable the pump")
	cmd.Flags().Uint8Var(&relay, "relay", 0, "actuator relay id")
	return cmd
}

func newSetPumpDelayCmd(logger func() *slog.Logger, blobPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set-pump-delay <ms>",
		Short: "Set the global pump staging delay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ms, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid delay %q", args[0])
			}
			return withController(logger(), *blobPath, func(s *sprinkler.Sprinkler) error {
				return s.SetPumpDelayMS(uint32(ms))
			})
		},
	}
}

func newSetRelayPauseCmd(logger func() *slog.Logger, blobPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set-relay-pause <relay> <seconds>",
		Short: "Set a per-relay pause applied after the relay in any queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseID(args[0], sprinkler.NumRelays)
			if err != nil {
				return err
			}
			sec, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid seconds %q", args[1])
			}
			return withController(logger(), *blobPath, func(s *sprinkler.Sprinkler) error {
				return s.SetRelayPause(r, uint32(sec))
			})
		},
	}
}

func newShowCmd(logger func() *slog.Logger, blobPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the configured relays, queues, pumps and schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withController(logger(), *blobPath, func(s *sprinkler.Sprinkler) error {
				cfg := s.Snapshot()
				out := cmd.OutOrStdout()

				fmt.Fprintf(out, "pump delay: %d ms\n", cfg.PumpDelayMS)
				for p := uint8(0); p < sprinkler.NumPumps; p++ {
					if cfg.Pumps.Enabled(p) {
						fmt.Fprintf(out, "pump %d: relay %d\n", p, cfg.Pumps.Relay(p))
					}
				}
				for r := 0; r < sprinkler.NumRelays; r++ {
					rw := cfg.Relays[r]
					if rw == 0 && cfg.RelayGPIO[r] == 0 && cfg.RelayOverlapMS[r] == 0 {
						continue
					}
					fmt.Fprintf(out, "relay %d: enabled=%v pump=%d minutes=%d gpio=%d overlap=%dms\n",
						r, rw.Enabled(), rw.Pump(), rw.Minutes(), cfg.RelayGPIO[r], cfg.RelayOverlapMS[r])
				}
				for q := 0; q < sprinkler.NumQueues; q++ {
					if cfg.QueueMembers[q] == 0 {
						continue
					}
					fmt.Fprintf(out, "queue %d: members=%#x repeat=%d pause=%ds autoadvance=%v\n",
						q, cfg.QueueMembers[q], cfg.QueueRepeat[q],
						cfg.QueuePause[q].Seconds(), cfg.QueuePause[q].AutoAdvance())
				}
				for id := 0; id < sprinkler.NumSchedules; id++ {
					sw := cfg.Schedules[id]
					if sw == 0 {
						continue
					}
					fmt.Fprintf(out, "schedule %d: enabled=%v hours=%#x weekdays=%#07b queues=%#x\n",
						id, sw.Enabled(), sw.Hours(), sw.Weekdays(), cfg.ScheduleQueues[id])
				}
				for m := 0; m < sprinkler.NumMonths; m++ {
					mb := cfg.Months[m]
					if mb == 0 {
						continue
					}
					fmt.Fprintf(out, "month %d: enabled=%v slot=%d a=%v b=%v\n",
						m, mb.Enabled(), mb.Slot(), mb.FlagA(), mb.FlagB())
				}
				return nil
			})
		},
	}
}
