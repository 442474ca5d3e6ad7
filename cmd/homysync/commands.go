package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/homytech-sync/internal/activity"
	"github.com/nerrad567/homytech-sync/internal/control"
	"github.com/nerrad567/homytech-sync/internal/device"
)

// --- state ---

func newStateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print the current device state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			_, store, closeFn, err := loadState(cmd.Context(), cfg, cliLogger(cfg))
			if err != nil {
				return err
			}
			defer closeFn()

			state, _ := store.State()
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), state)
			}
			return printState(cmd.OutOrStdout(), state)
		},
	}
}

func printState(out io.Writer, state device.State) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tSTATE\tUSER\tACTION\tTIME\tSOURCE")
	fmt.Fprintln(w, "------\t-----\t----\t------\t----\t------")

	for i := range device.LightCount {
		printDeviceRow(w, "Light "+strconv.Itoa(i+1), onOff(state.Lights[i], "on", "off"), state.LightUpdates[i])
	}
	printDeviceRow(w, "Door", onOff(state.Door, "open", "closed"), state.DoorUpdate)

	line := onOff(state.Clothesline.Extended, "extended", "retracted")
	line += " (" + onOff(state.Clothesline.ManualMode, "manual", "auto") + ")"
	printDeviceRow(w, "Clothesline", line, state.ClotheslineUpdate)

	return w.Flush()
}

func printDeviceRow(w io.Writer, name, status string, u device.Update) {
	ts := "-"
	if !u.Timestamp.IsZero() {
		ts = u.Timestamp.Local().Format(time.DateTime)
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", name, status, dash(u.User), dash(u.Action), ts, dash(u.Source))
}

// --- logs ---

type logsFlags struct {
	page    int
	user    string
	action  string
	source  string
	lightID int
	from    string
	to      string
}

func newLogsCmd(opts *options) *cobra.Command {
	f := &logsFlags{}
	cmd := &cobra.Command{
		Use:       "logs <light|door|clothesline>",
		Short:     "Print one page of a device log",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(device.CategoryLight), string(device.CategoryDoor), string(device.CategoryClothesline)},
		RunE: func(cmd *cobra.Command, args []string) error {
			category := device.Category(args[0])
			if f.page < 1 {
				return fmt.Errorf("%w: --page starts at 1", errUsage)
			}
			filter, err := f.filter()
			if err != nil {
				return err
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			be, err := connectBackend(cmd.Context(), cfg, cliLogger(cfg))
			if err != nil {
				return err
			}

			browser := activity.NewBrowser(be.client)
			page, err := browser.FetchFiltered(cmd.Context(), category, f.page-1, filter)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), page)
			}
			return printPage(cmd.OutOrStdout(), page)
		},
	}

	cmd.Flags().IntVar(&f.page, "page", 1, "Page number, starting at 1")
	cmd.Flags().StringVar(&f.user, "user", "", "Only entries by this user")
	cmd.Flags().StringVar(&f.action, "action", "", "Only entries with this action")
	cmd.Flags().StringVar(&f.source, "source", "", "Only entries from this source")
	cmd.Flags().IntVar(&f.lightID, "light", 0, "Only entries for this light (1-3)")
	cmd.Flags().StringVar(&f.from, "from", "", "Earliest timestamp (RFC 3339)")
	cmd.Flags().StringVar(&f.to, "to", "", "Latest timestamp (RFC 3339)")
	return cmd
}

func (f *logsFlags) filter() (activity.Filter, error) {
	filter := activity.Filter{User: f.user, Action: f.action, Source: f.source}
	if f.lightID != 0 {
		if f.lightID < 1 || f.lightID > device.LightCount {
			return filter, fmt.Errorf("%w: --light must be between 1 and %d", errUsage, device.LightCount)
		}
		filter.LightID = f.lightID
	}
	var err error
	if f.from != "" {
		if filter.From, err = device.ParseTimestamp(f.from); err != nil {
			return filter, fmt.Errorf("%w: --from: %w", errUsage, err)
		}
	}
	if f.to != "" {
		if filter.To, err = device.ParseTimestamp(f.to); err != nil {
			return filter, fmt.Errorf("%w: --to: %w", errUsage, err)
		}
	}
	return filter, nil
}

func printPage(out io.Writer, page activity.Page) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	if page.Category == device.CategoryLight {
		fmt.Fprintln(w, "TIME\tLIGHT\tUSER\tACTION")
		fmt.Fprintln(w, "----\t-----\t----\t------")
		for _, e := range page.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format(time.DateTime), dash(e.Light), e.User, e.Action)
		}
	} else {
		fmt.Fprintln(w, "TIME\tUSER\tACTION\tSOURCE")
		fmt.Fprintln(w, "----\t----\t------\t------")
		for _, e := range page.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format(time.DateTime), e.User, e.Action, dash(e.Source))
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\nPage %d of %d (%d entries)\n", page.Index+1, page.TotalPages, page.Total)
	return err
}

// --- usage ---

func newUsageCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Print minutes each light was on, per hour",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			be, err := connectBackend(cmd.Context(), cfg, cliLogger(cfg))
			if err != nil {
				return err
			}

			series, err := activity.NewBrowser(be.client).HourlyUsage(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), series)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "HOUR\tLIGHT 1\tLIGHT 2\tLIGHT 3")
			fmt.Fprintln(w, "----\t-------\t-------\t-------")
			for _, b := range series {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", b.Hour, b.Light1, b.Light2, b.Light3)
			}
			return w.Flush()
		},
	}
}

// --- toggle ---

func newToggleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <light N|door|clothesline|mode>",
		Short: "Flip a device to its opposite state",
		Long: `Sends the opposite of the device's current state to the backend.
The current state is loaded first; the new state arrives through the
push channel, so this command only reports that the backend accepted it.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, index, err := parseToggleArgs(args)
			if err != nil {
				return err
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log := cliLogger(cfg)
			be, store, closeFn, err := loadState(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeFn()

			commander := control.NewCommander(be.client, store, be.session)
			commander.SetLogger(log)
			ack, err := commander.Toggle(cmd.Context(), target, index)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"target": target, "message": ack.Message})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), dash(ack.Message))
			return err
		},
	}
}

// parseToggleArgs maps "light 2", "door", "clothesline" or "mode" to a
// command target and 0-based light index.
func parseToggleArgs(args []string) (target string, index int, err error) {
	if len(args) == 0 {
		return "", 0, fmt.Errorf("%w: missing target", errUsage)
	}
	target = strings.ToLower(args[0])
	switch target {
	case control.TargetLight:
		if len(args) != 2 {
			return "", 0, fmt.Errorf("%w: toggle light needs a light number 1-%d", errUsage, device.LightCount)
		}
		id, convErr := strconv.Atoi(args[1])
		if convErr != nil || id < 1 || id > device.LightCount {
			return "", 0, fmt.Errorf("%w: light must be 1-%d, got %q", errUsage, device.LightCount, args[1])
		}
		return target, id - 1, nil
	case control.TargetDoor, control.TargetClothesline, control.TargetClotheslineMode:
		if len(args) != 1 {
			return "", 0, fmt.Errorf("%w: %s takes no further arguments", errUsage, target)
		}
		return target, 0, nil
	default:
		return "", 0, fmt.Errorf("%w: unknown target %q", errUsage, args[0])
	}
}

// --- output helpers ---

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func onOff(on bool, yes, no string) string {
	if on {
		return yes
	}
	return no
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
