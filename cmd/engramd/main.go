// Command engramd is the long-running daemon: it watches configured optical
// drives, rips inserted discs, identifies their content, matches TV episodes
// against subtitle corpora, and organizes finished titles into a media
// library.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"engram/internal/analyst"
	"engram/internal/analyst/tmdb"
	"engram/internal/config"
	"engram/internal/daemon"
	"engram/internal/drivemonitor"
	"engram/internal/events"
	"engram/internal/jobs"
	"engram/internal/logging"
	"engram/internal/matcher"
	"engram/internal/organizer"
	"engram/internal/ripcoord"
	"engram/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "engramd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.toml (default: ~/.config/engram/config.toml)")
	flag.Parse()

	cfg, resolvedPath, _, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	logHub := logging.NewStreamHub(512)
	logger = logging.AttachStream(logger, logHub)
	archive, err := logging.NewEventArchive(filepath.Join(cfg.LogDir, "events.jsonl"))
	if err != nil {
		logger.Warn("log event archive unavailable", logging.Error(err))
	} else if archive != nil {
		logHub.AddSink(archive)
		defer archive.Close()
	}
	logging.CleanupOldLogs(logger, 30, logging.RetentionTarget{
		Dir:     cfg.LogDir,
		Pattern: "*.log",
		Exclude: []string{filepath.Join(cfg.LogDir, "engram.log")},
	})
	logger.Info("starting engram daemon", logging.String("config_path", resolvedPath))

	st, err := store.Open(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	bus := events.New()

	tmdbClient, err := tmdb.New(cfg.TMDBAPIKey, cfg.TMDBBaseURL, cfg.TMDBLanguage)
	if err != nil {
		return fmt.Errorf("build tmdb client: %w", err)
	}

	ripper := ripcoord.New(cfg.RipToolPath, ripcoord.Options{
		FilePollInterval: cfg.RipFilePollInterval(),
		FileReadyTimeout: cfg.RipFileReadyTimeout(),
	}, logging.NewComponentLogger(logger, "ripcoord")).
		WithScanTimeout(cfg.RipScanTimeout())
	simulator := ripcoord.NewSimulator()
	router := ripcoord.NewRouter(ripper, simulator)

	analystThresholds := analyst.Thresholds{
		MovieMinDuration:   cfg.AnalystMovieMinDurationSeconds,
		TVMinDuration:      cfg.AnalystTVMinDurationSeconds,
		TVMaxDuration:      cfg.AnalystTVMaxDurationSeconds,
		TVDurationVariance: cfg.AnalystTVDurationVarianceSeconds,
		TVMinClusterSize:   cfg.AnalystTVMinClusterSize,
		MovieDominance:     cfg.AnalystMovieDominance,
	}
	corroborator := analyst.NewCorroborator(tmdbClient)
	analystHandler := analyst.NewHandler(router, corroborator, analystThresholds, st, bus, logging.NewComponentLogger(logger, "analyst"))

	ripHandler := ripcoord.NewHandler(router, cfg.StagingDir, st, bus, logging.NewComponentLogger(logger, "ripcoord"))

	var providers []matcher.SubtitleProvider
	if cfg.SubtitlesEnabled {
		providers = append(providers, matcher.NewOpenSubtitlesProvider(
			cfg.OpenSubtitlesAPIKey,
			cfg.OpenSubtitlesUserAgent,
			cfg.OpenSubtitlesUserToken,
			cfg.OpenSubtitlesLanguages,
			filepath.Join(cfg.SubtitleCacheDir, "opensubtitles"),
		))
	}
	chunkConfig := matcher.DefaultChunkConfig()
	chunkConfig.ChunkSeconds = cfg.MatcherChunkSeconds
	matcherOpts := matcher.Options{
		CacheDir:       cfg.SubtitleCacheDir,
		WorkDir:        filepath.Join(cfg.StagingDir, "matching"),
		ChunkConfig:    chunkConfig,
		MinConfidence:  cfg.MatcherMinConfidence,
		MinScoreMargin: cfg.MatcherMinScoreMargin,
		MaxConcurrent:  cfg.MatcherMaxConcurrent,
	}
	matcherHandler := matcher.NewHandler(
		st, bus,
		matcher.NewTMDBEpisodeCounter(tmdbClient),
		providers,
		matcher.NewExecTranscriber(""),
		matcher.DefaultCommandRunner,
		matcherOpts,
		logging.NewComponentLogger(logger, "matcher"),
	)

	organizerHandler := organizer.NewHandler(st, bus, logging.NewComponentLogger(logger, "organizer"),
		cfg.MoviesLibraryDir, cfg.TVLibraryDir, cfg.ConflictResolutionDefault)

	mgr := jobs.NewManager(st, bus, logging.NewComponentLogger(logger, "jobs"))
	mgr.ConfigureStages(jobs.StageSet{
		Analyst:   analystHandler,
		RipCoord:  ripHandler,
		Matcher:   matcherHandler,
		Organizer: organizerHandler,
	})

	monitor := drivemonitor.New(
		cfg.OpticalDrives,
		drivemonitor.CheckDriveStatus,
		drivemonitor.DefaultLabelReader,
		drivemonitor.NewEjector(),
		drivemonitor.Options{
			PollInterval: cfg.MonitorPollInterval(),
			LabelTimeout: cfg.MonitorLabelTimeout(),
		},
		logging.NewComponentLogger(logger, "drivemonitor"),
	)

	d, err := daemon.New(cfg, st, logger, bus, mgr, monitor, organizerHandler, simulator)
	if err != nil {
		return fmt.Errorf("build daemon: %w", err)
	}
	d.AttachLogStream(logHub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")
	d.Stop(context.Background())
	return nil
}
