package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/hipsterbrown/acquisition-probe/bench"
	"github.com/hipsterbrown/acquisition-probe/internal/config"
	"github.com/hipsterbrown/acquisition-probe/internal/util"
	"github.com/hipsterbrown/acquisition-probe/probe"
	"github.com/hipsterbrown/acquisition-probe/transports"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so that deferred cleanup runs before exit.
func run(args []string) int {
	flags := flag.NewFlagSet("acqbench", flag.ContinueOnError)
	configPath := flags.String("config", "", "Path to YAML config file")
	port := flags.String("port", "", "Serial port (e.g., /dev/ttyACM0, COM10)")
	baud := flags.Int("baud", 0, "Baud rate")
	trials := flags.Int("trials", 0, "Number of measured trials")
	warmup := flags.Int("warmup", 0, "Number of warm-up trials")
	delay := flags.Duration("delay", 0, "Pause after each measured trial")
	export := flags.Bool("export", false, "Write JSON and CSV results to the export directory")
	exportDir := flags.String("export-dir", "", "Export directory")
	list := flags.Bool("list", false, "List serial ports and exit")
	verbose := flags.Bool("v", false, "Log trial failures")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if *list {
		if err := listPorts(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		return 0
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
	}

	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Endpoint = *port
		case "baud":
			cfg.BaudRate = *baud
		case "trials":
			cfg.Trials = *trials
		case "warmup":
			cfg.Warmup = *warmup
		case "delay":
			cfg.Delay = config.Duration(*delay)
		case "export-dir":
			cfg.ExportDir = *exportDir
		case "v":
			if *verbose {
				cfg.LogLevel = "debug"
			}
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	level, err := util.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	logger := util.NewLogger(os.Stderr, level)

	pc := cfg.Probe()
	pc.Logger = logger
	p, err := probe.New(pc)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if probe.IsChannelOpen(err) {
			fmt.Fprintln(os.Stderr, "hint: run with -list to see available ports")
		}
		return 1
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bc := cfg.Bench()
	bc.Logger = logger

	fmt.Printf("Benchmarking %s at %d baud: %d warm-up, %d trials\n", p.Endpoint(), p.BaudRate(), bc.Warmup, bc.Trials)
	report, err := bench.Run(ctx, p, bc)
	if report == nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	if errors.Is(err, context.Canceled) {
		fmt.Println("Interrupted, partial results:")
	}
	report.Summary(os.Stdout)

	if *export {
		paths, err := report.ExportFiles(cfg.ExportDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			return 1
		}
		for _, path := range paths {
			logger.Info("results exported", "path", path)
		}
	}
	return 0
}

func listPorts() error {
	ports, err := transports.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	fmt.Printf("%d port(s) found:\n", len(ports))
	for _, port := range ports {
		fmt.Printf("  %s\n", port)
	}
	return nil
}
