package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/richard-senior/nbaml/internal/logger"
	"github.com/richard-senior/nbaml/pkg/server"
	"github.com/richard-senior/nbaml/pkg/util/nbaml"
)

const usage = `usage: nbaml <command> [flags] [args]

commands:
  pipeline                 fetch, build features and train over the configured seasons
  fetch <season>           download a season's game log into the raw cache
  strength <season>        rank teams by mean trailing point differential
  train                    train from the saved training table
  predict <season>         score a season with the saved model
  champions <url|file>     scrape champion labels from an HTML page
  serve [addr]             serve stored tables and predictions over HTTP

flags (all commands):
  -config <file>           YAML configuration overlay
  -log <level>             debug, info, warn, error
  -refresh                 ignore the raw game log cache
`

// options shared by every subcommand
type options struct {
	config  string
	level   string
	refresh bool
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	var opts options
	fs.StringVar(&opts.config, "config", "", "YAML configuration overlay")
	fs.StringVar(&opts.level, "log", "", "log level")
	fs.BoolVar(&opts.refresh, "refresh", false, "ignore the raw game log cache")
	fs.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	if err := configure(opts); err != nil {
		logger.Fatal("Configuration failed:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Debug("Running command", cmd, strings.Join(fs.Args(), " "))
	if err := run(ctx, cmd, fs.Args(), opts); err != nil {
		logger.Error(cmd+" failed:", err)
		os.Exit(1)
	}
}

func configure(opts options) error {
	if opts.config != "" {
		cfg, err := nbaml.LoadConfig(opts.config)
		if err != nil {
			return err
		}
		nbaml.UpdateConfig(cfg)
	}
	if err := nbaml.ValidateConfig(nbaml.Config); err != nil {
		return err
	}

	level := nbaml.Config.LogLevel
	if opts.level != "" {
		level = opts.level
	}
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLevel(lvl)
	logger.SetShowDateTime(true)
	logger.SetLogFile(nbaml.Config.LogFile)
	if err := logger.SetLogOutput('b'); err != nil {
		logger.Warn("Logging to console only:", err)
	}
	return nbaml.Config.EnsureDirs()
}

func source(opts options) nbaml.GameLogSource {
	src := nbaml.NewCachingSource()
	src.Refresh = opts.refresh
	return src
}

func openStore() (*nbaml.Store, error) {
	store := nbaml.NewStore(nbaml.Config.DbPath)
	if err := store.CreateTables(); err != nil {
		return nil, err
	}
	return store, nil
}

func seasonArg(args []string) (string, error) {
	if len(args) == 0 {
		return nbaml.ParseSeason(nbaml.Config.CurrentSeason)
	}
	return nbaml.ParseSeason(args[0])
}

func run(ctx context.Context, cmd string, args []string, opts options) error {
	switch cmd {
	case "pipeline":
		return runPipeline(ctx, opts)
	case "fetch":
		return runFetch(ctx, args, opts)
	case "strength":
		return runStrength(ctx, args, opts)
	case "train":
		return runTrain()
	case "predict":
		return runPredict(ctx, args, opts)
	case "champions":
		return runChampions(ctx, args)
	case "serve":
		return runServe(ctx, args, opts)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func runPipeline(ctx context.Context, opts options) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := nbaml.NewPipeline(source(opts), store).Run(ctx)
	if err != nil {
		return err
	}
	for season, err := range result.Skipped {
		logger.Warn("Skipped", season, err)
	}
	logger.Highlight("Model saved to", result.ArtifactPath, result.Artifact.Metrics.String())
	return nil
}

func runFetch(ctx context.Context, args []string, opts options) error {
	season, err := seasonArg(args)
	if err != nil {
		return err
	}
	rows, err := source(opts).FetchSeason(ctx, season)
	if err != nil {
		return err
	}
	logger.Highlight("Fetched", len(rows), "rows for", season, "into", nbaml.Config.RawGamesPath(season))
	return nil
}

func runStrength(ctx context.Context, args []string, opts options) error {
	season, err := seasonArg(args)
	if err != nil {
		return err
	}

	// prefer a features table written by an earlier run
	var ranking []nbaml.StrengthRow
	path := nbaml.Config.FeaturePath("features", season)
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		rows, err := nbaml.ReadFeatureTable(path, f)
		if err != nil {
			return err
		}
		ranking = nbaml.RankStrength(rows)
	} else {
		_, ranking, err = nbaml.SeasonFeatures(ctx, source(opts), season)
		if err != nil {
			return err
		}
	}

	if err := nbaml.WriteStrength(nbaml.Config.FeaturePath("team_strength", season), ranking); err != nil {
		return err
	}
	logger.Highlight("Top teams by strength_score", season)
	for _, line := range nbaml.FormatStrength(ranking, nbaml.Config.TopN) {
		fmt.Println(line)
	}
	return nil
}

func runTrain() error {
	path := nbaml.Config.TrainingTablePath()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &nbaml.NotFoundError{What: "training table", Path: path}
		}
		return err
	}
	defer f.Close()

	rows, err := nbaml.ReadTeamSeasons(path, f)
	if err != nil {
		return err
	}
	training, err := nbaml.BuildTrainingTable([][]nbaml.TeamSeasonRow{rows})
	if err != nil {
		return err
	}
	artifact, err := nbaml.NewTrainer().Train(training)
	if err != nil {
		return err
	}
	if err := nbaml.SaveArtifact(nbaml.Config.ModelPath(), artifact); err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(nbaml.NewModelRun(artifact, nbaml.Config.ModelPath(), ""))
}

func runPredict(ctx context.Context, args []string, opts options) error {
	season, err := seasonArg(args)
	if err != nil {
		return err
	}
	artifact, err := nbaml.LoadArtifact(nbaml.Config.ModelPath())
	if err != nil {
		return err
	}
	odds, err := nbaml.NewPredictor(source(opts), artifact).PredictSeason(ctx, season)
	if err != nil {
		return err
	}

	if err := nbaml.WriteChampionOdds(nbaml.Config.FeaturePath("champion_odds", season), odds); err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.SaveChampionOdds(odds); err != nil {
		return err
	}

	report, err := nbaml.RenderOddsMarkdown(season, odds, artifact, nbaml.Config.TopN)
	if err != nil {
		return err
	}
	reportPath := filepath.Join(nbaml.Config.ArtifactsDir, fmt.Sprintf("champion_odds_%s.md", nbaml.SeasonKey(season)))
	if err := nbaml.WriteOddsReport(reportPath, report); err != nil {
		return err
	}
	fmt.Println(report)
	return nil
}

func runChampions(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("champions needs a URL or HTML file")
	}
	var labels []nbaml.ChampionLabel
	var err error
	if strings.HasPrefix(args[0], "http://") || strings.HasPrefix(args[0], "https://") {
		labels, err = nbaml.FetchChampions(ctx, args[0])
	} else {
		var f *os.File
		if f, err = os.Open(args[0]); err != nil {
			return err
		}
		defer f.Close()
		labels, err = nbaml.ParseChampionsHTML(f)
	}
	if err != nil {
		return err
	}

	if err := nbaml.WriteChampions(nbaml.Config.ChampionsFile, labels); err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.SaveChampions(labels); err != nil {
		return err
	}
	logger.Highlight("Wrote", len(labels), "champion labels to", nbaml.Config.ChampionsFile)
	return nil
}

func runServe(ctx context.Context, args []string, opts options) error {
	addr := ":8080"
	if len(args) > 0 {
		addr = args[0]
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return server.New(store, source(opts), nbaml.Config.ModelPath()).Start(ctx, addr)
}
