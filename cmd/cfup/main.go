package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"cfup/config"
	"cfup/ddns"
	"cfup/log"
	"cfup/logfile"
	"cfup/sources"
	"cfup/updater"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.StringP("config", "c", "", "path to config file (.toml/.yaml/.json)")
	envFile    = flag.String("env-file", "", "path to .env file supplying API_KEY and ZONE_ID")
	debug      = flag.Bool("debug", false, "enable debug output")
	once       = flag.Bool("once", false, "run a single update and exit")
	help       = flag.BoolP("help", "h", false, "Print help message")
)

var buildDate string

// Exit codes, distinguishable by the scheduler. Configuration errors exit
// through Fatalw (code 1).
const (
	exitConfig   = 1
	exitResolve  = 2
	exitProvider = 3
)

func init() {
	flag.Parse()
	if *help {
		fmt.Println(flag.CommandLine.FlagUsages())
		os.Exit(0)
	}
}

func getInitLogger() context.Context {
	var err error
	var logger *zap.Logger

	if *debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}

	if err != nil {
		fmt.Printf("Failed creating logger: %v\n", err)
		os.Exit(exitConfig)
	}

	return log.WithLogger(context.Background(), logger)
}

func getLogger(ctx context.Context, conf *config.Config) (context.Context, func() error) {
	level := zapcore.InfoLevel
	if conf.Log.Level != nil {
		level = *conf.Log.Level
	}
	if *debug {
		level = zapcore.DebugLevel
	}

	logger, closeLog, err := log.NewRotating(conf.Log.Path(), conf.Log.MaxSizeMB, level)
	if err != nil {
		// Unwritable log file never aborts the run; stderr remains.
		log.S(ctx).Warnw("cannot open log file, logging to stderr only", zap.Error(err))
		return ctx, func() error { return nil }
	}

	if conf.Service.Name != "" {
		logger = logger.With(zap.String("node", conf.Service.Name))
	}

	return log.WithLogger(context.Background(), logger), closeLog
}

func main() {
	ctx := getInitLogger()

	if buildDate != "" {
		log.S(ctx).Infow("cfup starting", "variant", "release", "build_date", buildDate)
	} else {
		log.S(ctx).Infow("cfup starting", "variant", "debug")
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			log.S(ctx).Fatalw("failed loading env file", "path", *envFile, zap.Error(err))
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.S(ctx).Warnw("failed loading .env", zap.Error(err))
	}

	conf := config.Default()
	if *configPath != "" {
		if err := conf.LoadFile(*configPath); err != nil {
			log.S(ctx).Fatalw("failed loading config", zap.Error(err))
		}
	}

	if err := conf.LoadEnv(); err != nil {
		log.S(ctx).Fatalw("failed loading environment", zap.Error(err))
	}

	if err := conf.Validate(); err != nil {
		log.S(ctx).Fatalw("invalid configuration", zap.Error(err))
	}

	ctx, closeLog := getLogger(ctx, &conf)

	resolver, err := sources.NewResolver(ctx, conf.Resolver, sources.NewFailureCache())
	if err != nil {
		log.S(ctx).Fatalw("cannot init resolver", zap.Error(err))
	}

	provider, err := ddns.Providers["cloudflare"](ctx, conf.Provider)
	if err != nil {
		log.S(ctx).Fatalw("cannot init provider", zap.Error(err))
	}

	up := updater.New(resolver, provider)

	var ticker *time.Ticker
	if !*once && conf.Service.RefreshRate > 0 {
		ticker = time.NewTicker(conf.Service.RefreshRate.Std())
	}

	for {
		code := runOnce(ctx, up)

		logfile.Sweep(ctx, conf.Log.Dir, conf.Log.File, conf.Log.Retention)

		if ticker == nil {
			_ = log.L(ctx).Sync()
			_ = closeLog()
			os.Exit(code)
		}

		<-ticker.C
	}
}

func runOnce(ctx context.Context, up *updater.Updater) int {
	elapsed := log.Elapsed("elapsed")

	result, err := up.Run(ctx)
	if err != nil {
		var resErr *sources.ResolutionError
		if errors.As(err, &resErr) {
			log.S(ctx).Errorw("could not resolve public ip, no update attempted",
				zap.Error(err), elapsed)
			return exitResolve
		}

		log.S(ctx).Errorw("update run failed", zap.Error(err), elapsed)
		return exitProvider
	}

	if result.Changed() {
		log.S(ctx).Infow("run finished, records updated",
			log.IP(result.IP), "source", result.Source,
			"checked", result.Checked, "updated", result.Updated, elapsed)
	} else {
		log.S(ctx).Infow("run finished, everything up to date",
			log.IP(result.IP), "source", result.Source, "checked", result.Checked, elapsed)
	}

	return 0
}
