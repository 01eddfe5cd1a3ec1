package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"vnflow/auth"
	"vnflow/config"
	"vnflow/logger"
	"vnflow/reader/dnse"
	"vnflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	credsPath := flag.String("creds", "config/creds.yml", "Path to credentials file")
	topicsFlag := flag.String("topics", "", "Comma-separated topic filters overriding the configured ones")
	sinkPath := flag.String("sink", "", "CSV output path overriding the configured one")

	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if *topicsFlag != "" {
		topics := make([]string, 0)
		for _, t := range strings.Split(*topicsFlag, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
		if len(topics) > 0 {
			cfg.Feed.Topics = topics
		}
	}
	if *sinkPath != "" {
		cfg.Sink.Path = *sinkPath
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Vnflow.Name,
		"version": cfg.Vnflow.Version,
	}).Info("starting vnflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.InitCloudWatch("", cfg.Logging.MetricsNamespace)
		logger.StartReport(ctx, log, 30*time.Second)
	}

	creds, err := config.LoadCredentials(*credsPath)
	if err != nil {
		log.WithError(err).Error("Failed to load credentials")
		os.Exit(1)
	}

	session, err := auth.NewClient(auth.DefaultBaseURL).Login(ctx, creds)
	if err != nil {
		log.WithError(err).Error("authentication failed")
		os.Exit(1)
	}
	log.WithComponent("main").WithFields(logger.Fields{
		"investor_id": session.InvestorID,
	}).Info("authenticated against trading service")

	csvSink, err := writer.NewCSVSink(cfg.Sink.Path)
	if err != nil {
		log.WithError(err).Error("failed to open csv sink")
		os.Exit(1)
	}

	var archive *writer.ArchiveWriter
	sink := writer.Sink(csvSink)
	if cfg.Archive.Enabled {
		archive, err = writer.NewArchiveWriter(cfg)
		if err != nil {
			log.WithError(err).Error("failed to create archive writer")
			os.Exit(1)
		}
		archive.Start(ctx)
		sink = writer.NewMultiSink(csvSink, archive)
	} else {
		log.WithComponent("main").Info("archive storage disabled; writing csv only")
	}

	client := dnse.NewClient(cfg, session, sink)
	if err := client.Connect(); err != nil {
		log.WithError(err).Error("initial broker connection failed")
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	running := true
	for running {
		select {
		case sig := <-sigChan:
			log.WithFields(logger.Fields{"signal": sig.String()}).Info("received shutdown signal")
			running = false
		case <-ticker.C:
			if client.ExitRequested() {
				log.WithComponent("main").Error("stream client gave up reconnecting, shutting down")
				running = false
			}
		}
	}

	client.Disconnect()
	cancel()

	if archive != nil {
		if err := archive.Close(); err != nil {
			log.WithError(err).Warn("archive writer shutdown failed")
		}
	}
	if err := csvSink.Close(); err != nil {
		log.WithError(err).Warn("csv sink shutdown failed")
	}

	log.WithFields(logger.Fields{
		"state":          client.State().String(),
		"ticks_accepted": logger.TicksAccepted(),
		"ticks_dropped":  logger.TicksDropped(),
	}).Info("vnflow stopped")
}
