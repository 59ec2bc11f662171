// Command nearp solves instance files in batch: for every instance it writes
// a statistics document and a solution file. With no instance arguments it
// reads instance names from stdin, one per line, until an empty line.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"nearp/internal/buildinfo"
	"nearp/internal/config"
	"nearp/internal/instance"
	"nearp/internal/logging"
	"nearp/internal/opt"
	"nearp/internal/report"
	"nearp/internal/stats"
)

type options struct {
	instances  string
	solutions  string
	statistics string
	solver     opt.Config
}

func main() {
	configPath := flag.String("config", os.Getenv("NEARP_CONFIG"), "YAML config file (optional)")
	dir := flag.String("dir", "", "directory holding instance files")
	out := flag.String("out", "", "directory for solution files")
	statsDir := flag.String("stats", "", "directory for statistics files")
	seed := flag.Int64("seed", 0, "solver seed (0 draws one from the clock)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *version {
		fmt.Println(buildinfo.String())
		return
	}

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("dotenv: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	o := options{
		instances:  firstNonEmpty(*dir, cfg.Files.Instances),
		solutions:  firstNonEmpty(*out, cfg.Files.Solutions),
		statistics: firstNonEmpty(*statsDir, cfg.Files.Statistics),
		solver:     cfg.Solver,
	}
	if *seed != 0 {
		o.solver.Seed = *seed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	names := flag.Args()
	if len(names) == 0 {
		names = promptNames(os.Stdin, os.Stdout)
	}
	failed := 0
	for _, name := range names {
		if ctx.Err() != nil {
			break
		}
		if err := solveInstance(ctx, o, name, logger); err != nil {
			logger.Error("instance failed", zap.String("instance", name), zap.Error(err))
			failed++
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// promptNames reads instance names until an empty line or EOF.
func promptNames(in io.Reader, out io.Writer) []string {
	var names []string
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "instance (empty to finish): ")
		if !sc.Scan() {
			break
		}
		name := strings.TrimSpace(sc.Text())
		if name == "" {
			break
		}
		names = append(names, name)
	}
	return names
}

// solveInstance parses one instance, writes its statistics, solves it and
// writes the solution file sol-<base name> into the solutions directory.
func solveInstance(ctx context.Context, o options, name string, logger *zap.Logger) error {
	log := logger.With(zap.String("instance", name))
	net, err := instance.ParseFile(filepath.Join(o.instances, name))
	if err != nil {
		return err
	}
	if net.Name == "" {
		net.Name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	p, err := opt.NewProblem(net)
	if err != nil {
		return err
	}

	st := stats.Compute(net, p.Paths)
	if err := writeFile(filepath.Join(o.statistics, "stats-"+net.Name+".json"), func(w io.Writer) error {
		return report.WriteStatistics(w, net, st)
	}); err != nil {
		return err
	}

	sol, met, err := opt.Solve(ctx, p, o.solver, opt.WithLogger(log))
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(o.solutions, "sol-"+filepath.Base(name)), func(w io.Writer) error {
		return report.WriteSolution(w, sol, net.Depot, 1, met.Elapsed.Microseconds(), met.BestFoundAfter.Microseconds())
	}); err != nil {
		return err
	}

	fields := []zap.Field{
		zap.Float64("cost", sol.Cost),
		zap.Int("routes", len(sol.Routes)),
		zap.Int("iterations", met.Iterations),
		zap.String("stop", string(met.StopReason)),
		zap.Int64("seed", met.Seed),
		zap.Duration("elapsed", met.Elapsed),
	}
	if net.OptimalValue > 0 {
		gap := (sol.Cost - float64(net.OptimalValue)) / float64(net.OptimalValue) * 100
		fields = append(fields, zap.Int("optimal", net.OptimalValue), zap.Float64("gap_pct", gap))
	}
	log.Info("instance solved", fields...)
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
