package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/integrii/flaggy"
	"github.com/logrusorgru/aurora"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"toruslife/src/config"
	"toruslife/src/simulation"
	"toruslife/src/telemetry"
	"toruslife/src/view"
)

type EnvOptions struct {
	interactive   bool
	printField    bool
	listTemplates bool
	configPath    string
}

//flag values, only the flags given on the command line override the configuration
type overrides struct {
	set       map[string]bool //long names of the given flags
	width     uint32
	height    uint32
	interval  time.Duration
	maxSteps  int
	seedMode  string
	template  string
	density   float64
	threshold float64
	noiseSeed int64
	csv       string
	log       string
}

func main() {
	eo, cfg, err := initOptions()
	if err != nil {
		flaggy.ShowHelpAndExit(err.Error())
	}
	if err := run(eo, cfg); err != nil {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}
}

func initOptions() (eo *EnvOptions, cfg *config.Config, err error) {
	eo = &EnvOptions{}
	ov := overrides{}
	flaggy.SetName("toruslife")
	flaggy.SetDescription("\"The Life\" game simulation on a toroidal field")
	flaggy.DefaultParser.ShowHelpOnUnexpected = true
	flaggy.String(&eo.configPath, "c", "config", "YAML configuration file")
	flaggy.UInt32(&ov.width, "x", "width", "Width of a simulation field")
	flaggy.UInt32(&ov.height, "y", "height", "Height of a simulation field")
	flaggy.Duration(&ov.interval, "i", "interval", "Simulation speed (interval between the steps) in format the number with 'ms' suffix, for example 150ms")
	flaggy.Int(&ov.maxSteps, "s", "maxSteps", "Limit the simulation to maxSteps")
	flaggy.String(&ov.seedMode, "m", "seed", "Settle mode ["+strings.Join([]string{config.SeedTemplate, config.SeedRandom, config.SeedNoise, config.SeedNone}, "|")+"]")
	flaggy.String(&ov.template, "t", "template", "Template to settle with")
	flaggy.Float64(&ov.density, "d", "density", "Density of the random settle mode")
	flaggy.Float64(&ov.threshold, "", "threshold", "Noise threshold of the noise settle mode")
	flaggy.Int64(&ov.noiseSeed, "", "randomSeed", "Seed of the random and noise settle modes")
	flaggy.String(&ov.csv, "", "csv", "Write the per-generation telemetry to the CSV file")
	flaggy.String(&ov.log, "", "log", "Write the log to the file")
	flaggy.Bool(&eo.interactive, "n", "interactive", "Start interactive mode")
	flaggy.Bool(&eo.printField, "p", "print", "Print the final field")
	flaggy.Bool(&eo.listTemplates, "l", "list", "List the known templates and exit")

	flaggy.Parse()
	ov.set = parsedFlags(flaggy.DefaultParser)

	cfg = config.Default()
	if eo.configPath != "" {
		if cfg, err = config.Load(eo.configPath); err != nil {
			return nil, nil, err
		}
	}
	ov.apply(cfg)
	if err = cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return eo, cfg, nil
}

//parsedFlags returns the long names of the flags found on the command line
func parsedFlags(p *flaggy.Parser) map[string]bool {
	long := make(map[string]string, len(p.Flags))
	for _, f := range p.Flags {
		if f.ShortName != "" && f.LongName != "" {
			long[f.ShortName] = f.LongName
		}
	}
	set := make(map[string]bool)
	for _, pv := range p.ParsedValues {
		if pv.IsPositional {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimLeft(pv.Key, "-"), "=")
		if l, ok := long[name]; ok {
			name = l
		}
		set[name] = true
	}
	return set
}

func (ov overrides) apply(cfg *config.Config) {
	if ov.set["width"] {
		cfg.Width = ov.width
	}
	if ov.set["height"] {
		cfg.Height = ov.height
	}
	if ov.set["interval"] {
		cfg.Interval = ov.interval
	}
	if ov.set["maxSteps"] {
		cfg.MaxSteps = ov.maxSteps
	}
	if ov.set["seed"] {
		cfg.Seed.Mode = ov.seedMode
	}
	if ov.set["template"] {
		cfg.Seed.Template = ov.template
	}
	if ov.set["density"] {
		cfg.Seed.Density = ov.density
	}
	if ov.set["threshold"] {
		cfg.Seed.Threshold = ov.threshold
	}
	if ov.set["randomSeed"] {
		cfg.Seed.NoiseSeed = ov.noiseSeed
	}
	if ov.set["csv"] {
		cfg.Telemetry.CSV = ov.csv
	}
	if ov.set["log"] {
		cfg.Telemetry.Log = ov.log
	}
}

//newSimulation creates the simulation described by cfg with its templates and recorder
func newSimulation(cfg *config.Config, stateCh chan simulation.Status, telemetryOut io.Writer) (*simulation.Simulation, *telemetry.Recorder) {
	s := simulation.New(&simulation.Options{
		Width:    cfg.Width,
		Height:   cfg.Height,
		Interval: cfg.Interval,
		MaxSteps: cfg.MaxSteps,
		Seed:     cfg.Seed.NoiseSeed,
	}, stateCh)
	for _, tmpl := range cfg.UniverseTemplates() {
		s.AddTemplate(tmpl)
	}
	rec := telemetry.NewRecorder(telemetryOut)
	s.SetRecorder(rec)
	return s, rec
}

//settle populates the universe as the configuration says
func settle(s *simulation.Simulation, cfg *config.Config) {
	switch cfg.Seed.Mode {
	case config.SeedTemplate:
		s.SettleTemplate(cfg.Seed.Template)
	case config.SeedRandom:
		s.SettleRandom(cfg.Seed.Density)
	case config.SeedNoise:
		s.SettleNoise(cfg.Seed.Threshold)
	}
}

func run(eo *EnvOptions, cfg *config.Config) (err error) {
	if eo.listTemplates {
		s, _ := newSimulation(cfg, nil, nil)
		for _, name := range s.Templates() {
			fmt.Println(name)
		}
		return nil
	}

	closeLog, err := initLogging(eo, cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	var telemetryOut io.Writer
	if cfg.Telemetry.CSV != "" {
		f, err := os.Create(cfg.Telemetry.CSV)
		if err != nil {
			return errors.Wrap(err, "creating telemetry file")
		}
		defer f.Close()
		telemetryOut = f
	}

	var stateCh chan simulation.Status
	if !eo.interactive {
		stateCh = make(chan simulation.Status, 10) //the buffered channel to getting the simulation status
	}
	s, rec := newSimulation(cfg, stateCh, telemetryOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		viewer simulation.Viewer
		ui     *view.ConsoleUI
	)
	if eo.interactive {
		ui, err = view.NewViewTerminal(view.SettleOptions{
			Template:  cfg.Seed.Template,
			Density:   cfg.Seed.Density,
			Threshold: cfg.Seed.Threshold,
		})
		if err != nil {
			return err
		}
		viewer = ui
	} else {
		viewer = view.NewConsoleOut(os.Stdout, 10, eo.printField)
	}
	s.RegisterViewer(viewer)
	settle(s, cfg)
	slog.Info("simulation settled", "width", cfg.Width, "height", cfg.Height, "seed", cfg.Seed.Mode)

	g.Go(func() error {
		return s.Serve(ctx)
	})
	if eo.interactive {
		g.Go(func() error {
			defer cancel()
			return viewer.Start()
		})
		//the signals stop the ui too
		g.Go(func() error {
			<-ctx.Done()
			ui.Quit()
			return nil
		})
	} else {
		if err := viewer.Start(); err != nil {
			return err
		}
		s.Run()
		g.Go(func() error {
			defer cancel()
			return waitFinished(ctx, stateCh)
		})
	}

	if err = g.Wait(); err != nil {
		return err
	}
	if err = rec.Flush(); err != nil {
		return err
	}
	sum := telemetry.Summarize(rec.Records())
	slog.Info("run summary", "summary", sum)
	if !eo.interactive {
		printSummary(os.Stdout, sum)
	}
	return nil
}

//waitFinished reads the status updates until the simulation is finished
func waitFinished(ctx context.Context, stateCh chan simulation.Status) error {
	for {
		select {
		case <-ctx.Done():
			slog.Warn("simulation interrupted")
			return nil
		case st := <-stateCh:
			if st.RunningMode == simulation.RunningStateFinished {
				return nil
			}
		}
	}
}

//initLogging sets the default logger, the terminal belongs to the ui in the interactive mode
func initLogging(eo *EnvOptions, cfg *config.Config) (func(), error) {
	var w io.Writer = os.Stderr
	closeLog := func() {}
	if cfg.Telemetry.Log != "" {
		f, err := os.OpenFile(cfg.Telemetry.Log, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, errors.Wrap(err, "opening log file")
		}
		w = f
		closeLog = func() { f.Close() }
	} else if eo.interactive {
		w = io.Discard
	}
	slog.SetDefault(newLogger(w))
	return closeLog, nil
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}

func printSummary(w io.Writer, s telemetry.Summary) {
	if s.Generations == 0 {
		return
	}
	fmt.Fprintln(w, aurora.Green("Summary:"))
	fmt.Fprintf(w, "  Generations: %v\n", s.Generations)
	fmt.Fprintf(w, "  Live cells: mean %.1f, stddev %.1f, min %v, max %v\n", s.MeanLive, s.StdDevLive, s.MinLive, s.MaxLive)
	fmt.Fprintf(w, "  Mean tick time: %v\n", s.MeanTick.Round(time.Microsecond))
}
