package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/rs/zerolog"
	"github.com/san-kum/viscosim/internal/config"
	"github.com/san-kum/viscosim/internal/experiment"
	"github.com/san-kum/viscosim/internal/export"
	"github.com/san-kum/viscosim/internal/optim"
	"github.com/san-kum/viscosim/internal/scene"
	"github.com/san-kum/viscosim/internal/storage"
	"github.com/san-kum/viscosim/internal/telemetry"
	"github.com/san-kum/viscosim/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
	preset     string
	dt         float64
	duration   float64
	horizon    float64
	viscosity  float64
	friction   float64
	cohesion   float64
	maxFrames  int
	noSave     bool
	logLevel   string
	logFormat  string
	metricsAt  string
	metric     string
	format     string
	outPath    string
	plane      string
	sweepArgs  []string
	workers    int
	objective  string
	theme      string
)

// main registers the commands and runs the root command. With no
// subcommand the interactive preset browser starts.
func main() {
	rootCmd := &cobra.Command{
		Use:           "viscosim",
		Short:         "viscoplastic particle simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunInteractive()
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".viscosim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (console, json)")

	runCmd := &cobra.Command{
		Use:   "run [variant]",
		Short: "run a scene and store its diagnostics",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runScene,
	}
	sceneFlags(runCmd)
	runCmd.Flags().IntVar(&maxFrames, "frames", 0, "stop after this many frames")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().StringVar(&metricsAt, "metrics-addr", "", "serve Prometheus metrics on this address")

	liveCmd := &cobra.Command{
		Use:   "live [variant]",
		Short: "run a scene with live terminal visualization",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	sceneFlags(liveCmd)
	liveCmd.Flags().StringVar(&theme, "theme", "ocean", "colour theme (ocean, lava, sand, mud, mono)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot diagnostics of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&metric, "metric", "", "plot a single diagnostic")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as JSON or an SVG snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&format, "format", "json", "json or svg")
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (stdout when empty)")
	exportCmd.Flags().StringVar(&plane, "plane", "xy", "projection plane for svg (xy, xz, zy)")

	presetsCmd := &cobra.Command{
		Use:   "presets [variant]",
		Short: "list scene presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variants := experiment.NewRegistry().ListVariants()
			if len(args) == 1 {
				variants = args
			}
			for _, v := range variants {
				names := config.ListPresets(v)
				if names == nil {
					return fmt.Errorf("unknown variant: %s (available: %v)", v, experiment.NewRegistry().ListVariants())
				}
				fmt.Printf("%s: %s\n", v, strings.Join(names, ", "))
			}
			return nil
		},
	}

	wiringCmd := &cobra.Command{
		Use:   "wiring [variant]",
		Short: "print the field connections and step pipeline of a body",
		Args:  cobra.MaximumNArgs(1),
		RunE:  printWiring,
	}
	sceneFlags(wiringCmd)

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write the resolved scene configuration as YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  writeConfig,
	}
	sceneFlags(configCmd)

	sweepCmd := &cobra.Command{
		Use:   "sweep [variant]",
		Short: "run a parameter grid and rank it by a diagnostic",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSweep,
	}
	sceneFlags(sweepCmd)
	sweepCmd.Flags().StringArrayVar(&sweepArgs, "param", nil, "grid axis as name=v1,v2,... (repeatable)")
	sweepCmd.Flags().StringVar(&objective, "metric", "kinetic_energy", "diagnostic to minimize")
	sweepCmd.Flags().IntVar(&maxFrames, "frames", 0, "frames per run")
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "concurrent runs")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCmd, presetsCmd, wiringCmd, configCmd, sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func sceneFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "scene config file (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "start from a named preset")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "step length")
	cmd.Flags().Float64Var(&duration, "time", config.DefaultTotalTime, "simulated duration")
	cmd.Flags().Float64Var(&horizon, "horizon", config.DefaultHorizon, "interaction radius")
	cmd.Flags().Float64Var(&viscosity, "viscosity", config.DefaultViscosity, "viscosity coefficient")
	cmd.Flags().Float64Var(&friction, "friction", 0, "friction angle in degrees")
	cmd.Flags().Float64Var(&cohesion, "cohesion", 0, "cohesion")
}

// resolveConfig layers preset, config file and explicitly set flags, in
// that order.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, string, error) {
	variant := config.VariantViscoplastic
	if len(args) == 1 {
		variant = args[0]
	}

	cfg := config.DefaultConfig()
	cfg.Variant = variant
	if preset != "" {
		cfg = config.GetPreset(variant, preset)
		if cfg == nil {
			return nil, "", fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(variant))
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		if len(args) == 1 {
			cfg.Variant = variant
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Scene.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Scene.TotalTime = duration
	}
	if flags.Changed("horizon") {
		cfg.Body.Horizon = horizon
	}
	if flags.Changed("viscosity") {
		cfg.Body.Viscosity = viscosity
	}
	if flags.Changed("friction") {
		cfg.Body.FrictionAngle = friction
	}
	if flags.Changed("cohesion") {
		cfg.Body.Cohesion = cohesion
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if metricsAt != "" {
		cfg.Metrics.Enabled, cfg.Metrics.Address = true, metricsAt
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, preset, nil
}

func runScene(cmd *cobra.Command, args []string) error {
	cfg, presetName, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	log, err := telemetry.NewLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := []experiment.Option{experiment.WithLogger(telemetry.Component(log, "scene"))}
	if cfg.Metrics.Enabled {
		m := telemetry.NewMetrics()
		opts = append(opts, experiment.WithStageObserver(m), experiment.WithObserver(m))
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Address); err != nil {
				log.Error().Err(err).Str("addr", cfg.Metrics.Address).Msg("metrics endpoint failed")
			}
		}()
		log.Info().Str("addr", cfg.Metrics.Address).Msg("serving metrics")
	}

	exp, err := experiment.New(cfg, opts...)
	if err != nil {
		return err
	}

	fmt.Printf("running %s scene with %d particles...\n", cfg.Variant, exp.Body().Len())
	start := time.Now()
	result, runErr := exp.Run(ctx, maxFrames)
	elapsed := time.Since(start)
	if result == nil {
		return runErr
	}

	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(storage.Run{Config: cfg, Preset: presetName, WallTime: elapsed}, result)
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	fmt.Printf("completed in %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("frames: %d\n", result.FramesTaken)
	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-16s %.6g\n", name, result.Metrics[name])
	}
	return runErr
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, presetName, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	// the terminal belongs to the view; keep only warnings and worse
	cfg.Logging.Level = "warn"
	log, err := telemetry.NewLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	exp, err := experiment.New(cfg, experiment.WithLogger(log))
	if err != nil {
		return err
	}
	viz.SetTheme(theme)
	title := cfg.Variant
	if presetName != "" {
		title += " / " + presetName
	}
	return viz.RunLive(exp, title)
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVARIANT\tPRESET\tTIME\tPARTICLES\tFRAMES\tSIM TIME\tWALL")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%.2fs\t%.2fs\n",
			run.ID,
			run.Variant,
			run.Preset,
			run.Timestamp.Local().Format("2006-01-02 15:04:05"),
			run.Particles,
			run.Frames,
			run.SimTime,
			run.WallTime,
		)
	}
	return w.Flush()
}

// diagnosticColumns returns the csv column names of DiagnosticRow in order,
// skipping the frame index and time.
func diagnosticColumns() []string {
	t := reflect.TypeOf(storage.DiagnosticRow{})
	cols := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("csv"); tag != "frame" && tag != "time" {
			cols = append(cols, tag)
		}
	}
	return cols
}

func diagnosticSeries(rows []*storage.DiagnosticRow, column string) ([]float64, bool) {
	t := reflect.TypeOf(storage.DiagnosticRow{})
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("csv") != column {
			continue
		}
		out := make([]float64, len(rows))
		for j, r := range rows {
			out[j] = reflect.ValueOf(*r).Field(i).Float()
		}
		return out, true
	}
	return nil, false
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	rows, err := st.LoadDiagnostics(runID)
	if err != nil {
		return err
	}
	if len(rows) < 2 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("variant: %s\n", meta.Variant)
	fmt.Printf("frames: %d\n\n", len(rows))

	columns := diagnosticColumns()
	if metric != "" {
		columns = []string{metric}
	}
	for _, col := range columns {
		data, ok := diagnosticSeries(rows, col)
		if !ok {
			return fmt.Errorf("unknown diagnostic: %s (available: %v)", col, diagnosticColumns())
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(col+" vs frame"),
		))
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	st := storage.New(dataDir)

	out := os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	switch format {
	case "json":
		return st.ExportJSON(out, runID)
	case "svg":
		p, err := export.ParsePlane(plane)
		if err != nil {
			return err
		}
		pts, err := st.LoadSnapshot(runID)
		if err != nil {
			return err
		}
		svg, err := export.ParticlesToSVG(export.Snapshot{
			Positions: pts,
			Color:     scene.DefaultSurfaceColor,
			Plane:     p,
			Width:     800,
			Height:    800,
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, svg)
		return err
	}
	return fmt.Errorf("unknown format: %s (json, svg)", format)
}

func printWiring(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	exp, err := experiment.New(cfg, experiment.WithLogger(zerolog.Nop()))
	if err != nil {
		return err
	}
	body := exp.Body()
	fmt.Printf("%s (%s)\n\nconnections:\n", body.Name(), cfg.Variant)
	for _, e := range body.Edges() {
		fmt.Printf("  %s\n", e)
	}
	fmt.Println("\nstep pipeline:")
	for i, s := range body.Stages() {
		fmt.Printf("  %d. %s\n", i+1, s)
	}
	return nil
}

func writeConfig(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd, nil)
	if err != nil {
		return err
	}
	if err := config.Save(args[0], cfg); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}

func parseAxes(specs []string) ([]string, [][]float64, error) {
	names := make([]string, 0, len(specs))
	ranges := make([][]float64, 0, len(specs))
	for _, arg := range specs {
		name, list, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, nil, fmt.Errorf("bad --param %q, want name=v1,v2", arg)
		}
		values := make([]float64, 0)
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, nil, fmt.Errorf("bad value in --param %q: %w", arg, err)
			}
			values = append(values, v)
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, values)
	}
	return names, ranges, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	base, _, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}
	names, ranges, err := parseAxes(sweepArgs)
	if err != nil {
		return err
	}
	grid, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}
	grid.Workers, grid.MaxFrames = workers, maxFrames

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	build := func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := *base
		for name, v := range params {
			if err := cfg.SetParam(name, v); err != nil {
				return nil, err
			}
		}
		return experiment.New(&cfg)
	}

	fmt.Printf("sweeping %d configurations...\n", len(grid.Points()))
	out, err := grid.Search(ctx, build, objective)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t"))+"\t"+strings.ToUpper(objective))
	for _, t := range out.Trials {
		row := make([]string, 0, len(names)+1)
		for _, n := range names {
			row = append(row, strconv.FormatFloat(t.Params[n], 'g', 6, 64))
		}
		if t.Err != nil {
			row = append(row, "error: "+t.Err.Error())
		} else {
			row = append(row, strconv.FormatFloat(t.Value, 'g', 6, 64))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if out.Best == nil {
		return fmt.Errorf("no configuration completed")
	}
	fmt.Printf("\nbest: %v (%s %.6g)\n", out.Best.Params, objective, out.Best.Value)
	return nil
}
