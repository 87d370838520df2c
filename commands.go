package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"cpinfo/controlpoint"
	"cpinfo/store"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

type app struct {
	cfg     Config
	logger  *slog.Logger
	store   *store.Store
	metrics bool
}

// execute runs the command line in args. The store is closed and metrics are
// written even when the command fails.
func execute(args []string, stdout, stderr io.Writer) error {
	root, a := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if ferr := a.finish(stderr); ferr != nil {
		fmt.Fprintln(stderr, "Error:", ferr)
		err = errors.Join(err, ferr)
	}
	return err
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	var configPath, dbPath string

	root := &cobra.Command{
		Use:          "cpinfo",
		Short:        "Inspect and edit beatmap control point timelines",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			if dbPath != "" {
				cfg.Database = dbPath
			}
			a.cfg = cfg
			a.logger = cfg.Logger()
			a.store, err = store.Open(cmd.Context(), cfg.Database, a.logger)
			return err
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "cpinfo.yaml", "path to the YAML config file")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "sqlite database path (overrides config)")
	root.PersistentFlags().BoolVar(&a.metrics, "metrics", false, "print control point counters to stderr when done")

	root.AddCommand(
		a.newCmd(),
		a.listCmd(),
		a.deleteCmd(),
		a.showCmd(),
		a.atCmd(),
		a.statsCmd(),
		a.addCmd(),
		a.removeCmd(),
		a.removeGroupCmd(),
		a.clearCmd(),
		a.snapCmd(),
		a.sliderCmd(),
	)
	return root, a
}

// finish releases what PersistentPreRunE opened. It is safe to call when setup
// never ran.
func (a *app) finish(w io.Writer) error {
	var errs []error
	if a.metrics {
		errs = append(errs, writeMetrics(w))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
		a.store = nil
	}
	return errors.Join(errs...)
}

// ---------- timeline management ----------

func (a *app) newCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <name>",
		Short: "Create an empty timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.store.Create(cmd.Context(), args[0], controlpoint.New())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", args[0], id)
			return nil
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored timelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			timelines, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range timelines {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d points\t%s\n", t.Name, t.Points, t.ID)
			}
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.store.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.store.Delete(cmd.Context(), id)
		},
	}
}

// ---------- queries ----------

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print every group and its control points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tl, err := a.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, g := range tl.Groups() {
				fmt.Fprintf(out, "%.2f\n", g.Time())
				for _, p := range g.Points() {
					fmt.Fprintf(out, "\t%s\n", formatPoint(p))
				}
			}
			return nil
		},
	}
}

func (a *app) atCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "at <name> <time>",
		Short: "Print the control points in effect at a time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTime(args[1])
			if err != nil {
				return err
			}
			_, tl, err := a.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			writeEffective(cmd.OutOrStdout(), tl, t)
			return nil
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <name>",
		Short: "Print BPM range, mode and point counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, tl, err := a.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "bpm min %.2f max %.2f mode %.2f\n", tl.BPMMinimum(), tl.BPMMaximum(), tl.BPMMode())
			fmt.Fprintf(out, "groups %d timing %d difficulty %d sample %d effect %d\n",
				len(tl.Groups()),
				len(tl.TimingPoints()),
				len(tl.DifficultyPoints()),
				len(tl.SamplePoints()),
				len(tl.EffectPoints()),
			)
			return nil
		},
	}
}

func (a *app) snapCmd() *cobra.Command {
	var divisor int
	cmd := &cobra.Command{
		Use:   "snap <name> <time>",
		Short: "Snap a time to the beat grid",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTime(args[1])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("divisor") {
				divisor = a.cfg.SnapDivisor
			}
			if divisor < 1 {
				return fmt.Errorf("divisor must be at least 1, got %d", divisor)
			}
			_, tl, err := a.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapped 1/%d %.3f\nclosest divisor 1/%d\n",
				divisor, tl.ClosestSnappedTime(t, divisor), tl.ClosestBeatDivisor(t))
			return nil
		},
	}
	cmd.Flags().IntVar(&divisor, "divisor", 0, "beat divisor (defaults to snap_divisor from config)")
	return cmd
}

func (a *app) sliderCmd() *cobra.Command {
	var (
		length float64
		slides int
		diff   SliderDifficulty
	)
	cmd := &cobra.Command{
		Use:   "slider <name> <time>",
		Short: "Compute slider duration and ticks from the active control points",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTime(args[1])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("multiplier") {
				diff.SliderMultiplier = a.cfg.SliderMultiplier
			}
			if !cmd.Flags().Changed("tick-rate") {
				diff.SliderTickRate = a.cfg.SliderTickRate
			}
			if diff.SliderMultiplier <= 0 || diff.SliderTickRate <= 0 {
				return fmt.Errorf("multiplier and tick rate must be positive")
			}
			_, tl, err := a.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			st := SliderTimingAt(tl, t, length, slides, diff)
			fmt.Fprintf(cmd.OutOrStdout(),
				"beat %.2fms sv %.2fx\nspan %.2fms x %d\nticks %d per span every %.2fms\nends %.2f\n",
				st.BeatLength, st.SliderVelocity,
				st.SpanDuration, st.Spans,
				st.TicksPerSpan, st.TickInterval,
				st.EndTime)
			return nil
		},
	}
	cmd.Flags().Float64Var(&length, "length", 100, "visual length in osu!pixels")
	cmd.Flags().IntVar(&slides, "slides", 1, "number of spans")
	cmd.Flags().Float64Var(&diff.SliderMultiplier, "multiplier", 0, "slider multiplier (defaults to config)")
	cmd.Flags().Float64Var(&diff.SliderTickRate, "tick-rate", 0, "slider tick rate (defaults to config)")
	return cmd
}

// ---------- edits ----------

func (a *app) addCmd() *cobra.Command {
	var (
		force  bool
		timing controlpoint.Timing
		diff   controlpoint.Difficulty
		sample controlpoint.Sample
		kiai   bool
		omit   bool
	)
	cmd := &cobra.Command{
		Use:   "add <name> <kind> <time>",
		Short: "Add a control point (timing, difficulty, sample or effect)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := controlpoint.ParseKind(args[1])
			if err != nil {
				return err
			}
			t, err := parseTime(args[2])
			if err != nil {
				return err
			}

			var p controlpoint.Point
			switch kind {
			case controlpoint.KindTiming:
				if timing.BeatLength <= 0 {
					return fmt.Errorf("timing points need a positive --beat-length")
				}
				p = &controlpoint.Timing{BeatLength: timing.BeatLength, Meter: timing.Meter}
			case controlpoint.KindDifficulty:
				p = &controlpoint.Difficulty{SliderVelocity: diff.SliderVelocity}
			case controlpoint.KindSample:
				p = &controlpoint.Sample{SampleSet: sample.SampleSet, Volume: sample.Volume, CustomIndex: sample.CustomIndex}
			case controlpoint.KindEffect:
				var flags controlpoint.EffectFlags
				if kiai {
					flags |= controlpoint.EffectKiai
				}
				if omit {
					flags |= controlpoint.EffectOmitFirstBarLine
				}
				p = &controlpoint.Effect{Flags: flags}
			}

			id, tl, err := a.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			changed := true
			if force {
				tl.ForceAdd(t, p)
			} else {
				changed = tl.Add(t, p)
			}
			if !changed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s point at %.2f is redundant, timeline unchanged\n", kind, t)
				return nil
			}
			if err := a.store.Save(cmd.Context(), id, tl); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", formatPoint(p))
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&force, "force", false, "add even if equivalent to the point already in effect")
	f.Float64Var(&timing.BeatLength, "beat-length", 0, "timing: milliseconds per beat")
	f.IntVar(&timing.Meter, "meter", controlpoint.DEFAULT_METER, "timing: beats per bar")
	f.Float64Var(&diff.SliderVelocity, "velocity", controlpoint.DEFAULT_SLIDER_VELOCITY, "difficulty: slider velocity multiplier")
	f.StringVar(&sample.SampleSet, "sample-set", controlpoint.DEFAULT_SAMPLE_SET, "sample: bank name (normal, soft, drum)")
	f.IntVar(&sample.Volume, "volume", controlpoint.DEFAULT_SAMPLE_VOLUME, "sample: volume 0-100")
	f.IntVar(&sample.CustomIndex, "custom-index", 0, "sample: custom sample index")
	f.BoolVar(&kiai, "kiai", false, "effect: kiai time")
	f.BoolVar(&omit, "omit-first-bar-line", false, "effect: omit the first bar line")
	return cmd
}

func (a *app) removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name> <kind> <time>",
		Short: "Remove the point of one kind from the group at a time",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := controlpoint.ParseKind(args[1])
			if err != nil {
				return err
			}
			t, err := parseTime(args[2])
			if err != nil {
				return err
			}
			id, tl, err := a.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			g := tl.GroupAt(t, false)
			if g == nil || g.Get(kind) == nil {
				return fmt.Errorf("no %s point at %.2f", kind, t)
			}
			tl.Remove(g.Get(kind))
			return a.store.Save(cmd.Context(), id, tl)
		},
	}
}

func (a *app) removeGroupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-group <name> <time>",
		Short: "Remove every control point at a time",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseTime(args[1])
			if err != nil {
				return err
			}
			id, tl, err := a.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !tl.RemoveGroup(tl.GroupAt(t, false)) {
				return fmt.Errorf("no group at %.2f", t)
			}
			return a.store.Save(cmd.Context(), id, tl)
		},
	}
}

func (a *app) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <name>",
		Short: "Remove every control point from a timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, tl, err := a.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tl.Clear()
			return a.store.Save(cmd.Context(), id, tl)
		},
	}
}

// ---------- helpers ----------

func (a *app) load(ctx context.Context, name string) (uuid.UUID, *controlpoint.Timeline, error) {
	id, err := a.store.Lookup(ctx, name)
	if err != nil {
		return uuid.Nil, nil, err
	}
	tl, err := a.store.Load(ctx, id, controlpoint.WithLogger(a.logger))
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, tl, nil
}

func parseTime(s string) (float64, error) {
	t, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, fmt.Errorf("invalid time %q: must be finite", s)
	}
	return t, nil
}

func writeEffective(w io.Writer, tl *controlpoint.Timeline, t float64) {
	fmt.Fprintf(w, "%s\n", formatPoint(tl.TimingPointAt(t)))
	fmt.Fprintf(w, "%s\n", formatPoint(tl.DifficultyPointAt(t)))
	fmt.Fprintf(w, "%s\n", formatPoint(tl.SamplePointAt(t)))
	fmt.Fprintf(w, "%s\n", formatPoint(tl.EffectPointAt(t)))
}

// writeMetrics dumps the controlpoint_* families of the default registry in
// the Prometheus text format.
func writeMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "controlpoint_") {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func formatPoint(p controlpoint.Point) string {
	switch p := p.(type) {
	case *controlpoint.Timing:
		return fmt.Sprintf("timing     @%.2f %.2fms (%.2f bpm) %d/4", p.Time(), p.BeatLength, p.BPM(), p.Meter)
	case *controlpoint.Difficulty:
		return fmt.Sprintf("difficulty @%.2f %.2fx", p.Time(), p.SliderVelocity)
	case *controlpoint.Sample:
		return fmt.Sprintf("sample     @%.2f %s %d%% custom %d", p.Time(), p.SampleSet, p.Volume, p.CustomIndex)
	case *controlpoint.Effect:
		return fmt.Sprintf("effect     @%.2f kiai=%t omit_first_bar_line=%t", p.Time(), p.Kiai(), p.OmitFirstBarLine())
	}
	return fmt.Sprintf("%v", p)
}
