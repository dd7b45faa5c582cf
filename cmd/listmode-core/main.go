// Command listmode-core runs the list-mode event decoding and framing
// core against a live TCP packet stream, logging status until
// interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/doismellburning/samoyed-listmode/internal/acquisition"
	"github.com/doismellburning/samoyed-listmode/internal/buildinfo"
	"github.com/doismellburning/samoyed-listmode/internal/reader"
	"github.com/doismellburning/samoyed-listmode/internal/sink"
	"github.com/doismellburning/samoyed-listmode/pkg/config"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "Path to listmode.yaml (searches default locations if unset).")
		listenAddr = pflag.StringP("listen", "l", "", "Override the config file's listen_addr.")
		archiveDir = pflag.StringP("archive", "a", "", "Override the config file's archive_dir.")
		logLevel   = pflag.String("log-level", "info", "Log level: debug, info, warn, error.")
		help       = pflag.Bool("help", false, "Display help text.")
		version    = pflag.Bool("version", false, "Print version information and exit.")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - list-mode event decoding and framing core\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nUsage: %s [OPTIONS]\n\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *version {
		fmt.Println(buildinfo.String("listmode-core"))
		os.Exit(0)
	}

	logger := log.New(os.Stderr)
	if level, err := log.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warn("unrecognised log level, defaulting to info", "level", *logLevel)
	}

	var cfg *config.Acquisition
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFrom([]string{*configPath})
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		logger.Fatal("loading configuration", "err", err)
	}

	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *archiveDir != "" {
		cfg.ArchiveDir = *archiveDir
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8192"
	}

	var s sink.Sink
	if cfg.ArchiveDir != "" {
		fileSink, err := sink.NewFile(cfg.ArchiveDir)
		if err != nil {
			logger.Fatal("creating archive sink", "err", err)
		}
		s = fileSink
	} else {
		s = sink.NewMemory()
	}

	controller := acquisition.New(s, logger)
	if err := controller.Configure(cfg.Channels, cfg.FrameSize, cfg.TimeFrames); err != nil {
		logger.Fatal("applying bootstrap configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go logStatusPeriodically(ctx, logger, controller)

	tcpReader := &reader.TCP{Addr: cfg.ListenAddr}
	logger.Info("listening", "addr", cfg.ListenAddr)
	if err := tcpReader.Run(ctx, controller.OnPacketReceived); err != nil {
		logger.Fatal("packet reader stopped", "err", err)
	}
}

func logStatusPeriodically(ctx context.Context, logger *log.Logger, controller *acquisition.Controller) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := controller.Status()
			logger.Info("status",
				"state", status.State,
				"packets_received", status.PacketsReceived,
				"packets_dropped", status.PacketsDropped,
				"acquisition_complete", status.AcquisitionComplete)
		}
	}
}
