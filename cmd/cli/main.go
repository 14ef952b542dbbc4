// Command tk is the Timekeeper command line client. It keeps working when the server is
// unreachable: every command reads and writes through a local cache and backup snapshots.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/timekeeper/internal/backup"
	"github.com/and161185/timekeeper/internal/cache"
	"github.com/and161185/timekeeper/internal/config"
	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/reconcile"
	"github.com/and161185/timekeeper/internal/remote"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// app is one CLI invocation: configuration plus an engine wired to every tier.
type app struct {
	cfg     *config.Client
	log     *zap.Logger
	out     io.Writer
	eng     *reconcile.Engine
	backups backup.Store
	closers []func() error
}

func newLogger(verbose bool, w io.Writer) *zap.Logger {
	lvl := zapcore.WarnLevel
	if verbose {
		lvl = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(zapcore.AddSync(w)), lvl)
	return zap.New(core)
}

// open wires the engine and loads state from the best available tier.
func open(ctx context.Context, cfg *config.Client, offline bool, log *zap.Logger, out io.Writer) (*app, error) {
	a := &app{cfg: cfg, log: log, out: out}

	c, err := cache.Open(ctx, cfg.DataDir, log)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	a.closers = append(a.closers, c.Close)

	switch cfg.Backup.Backend {
	case "redis":
		opt, err := redis.ParseURL(cfg.Backup.RedisURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("backup redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		a.closers = append(a.closers, rdb.Close)
		a.backups = backup.NewRedisStore(rdb, backup.DefaultRedisPrefix, cfg.Backup.Keep)
	default:
		fs, err := backup.NewFileStore(filepath.Join(cfg.DataDir, "backups"), cfg.Backup.Keep)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("backup dir: %w", err)
		}
		a.backups = fs
	}

	var rem reconcile.Remote
	if !offline && cfg.ServerAddr != "" {
		rc, err := remote.Dial(cfg.ServerAddr, remote.TLSOptions{
			Plaintext: cfg.TLS.Plaintext,
			CACert:    cfg.TLS.CACert,
			Insecure:  cfg.TLS.Insecure,
		}, remote.WithToken(cfg.Token), remote.WithTimeout(cfg.RequestTimeout))
		if err != nil {
			log.Warn("remote disabled", zap.Error(err))
		} else {
			rem = rc
			a.closers = append(a.closers, rc.Close)
		}
	}

	a.eng = reconcile.New(rem,
		reconcile.WithCache(c),
		reconcile.WithBackups(a.backups),
		reconcile.WithLogger(log),
		reconcile.WithPollInterval(cfg.PollInterval),
		reconcile.WithBackupInterval(cfg.BackupInterval),
	)
	rep := a.eng.Bootstrap(ctx)
	log.Debug("loaded",
		zap.String("projects", rep.ProjectsFrom),
		zap.String("sessions", rep.SessionsFrom),
		zap.Bool("online", rep.Online))
	return a, nil
}

// shutdown flushes the engine and releases every resource.
func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.eng.Close(ctx)
	a.close()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close", zap.Error(err))
		}
	}
	a.closers = nil
}

func usage(w io.Writer) {
	fmt.Fprint(w, `tk - track time against projects, online or off
Usage:
  tk [-config file] [-addr HOST:PORT] [-offline] [-v] <cmd> [args]

Commands:
  version
  config    show | set <key> <value>
  project   list | add -name N [-color C] [-desc D] [-goal H] | edit <ref> [...] | rm <ref> | select <ref>|-none
  timer     start [-countdown 25m] [-detach] | stop | status | attach
  session   list [-project ref] | edit <id> -duration 30m | rm <id>
  settings  [get <key> | set <key> <value>]
  stats
  sync      (poll the server for sessions started elsewhere)
  backup    now | list
  recover   [-at RFC3339]
`)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("tk", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "config file (default $XDG_CONFIG_HOME/timekeeper/timekeeper.yml)")
	addr := fs.String("addr", "", "server address (overrides config)")
	offline := fs.Bool("offline", false, "do not contact the server")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		usage(stderr)
		return 2
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	if cmd == "version" {
		fmt.Fprintf(stdout, "tk %s (%s)\n", version, buildDate)
		return 0
	}

	log := newLogger(*verbose, stderr)
	defer func() { _ = log.Sync() }()

	cfg, err := config.LoadClient(*cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *addr != "" {
		cfg.ServerAddr = *addr
	}

	if cmd == "config" {
		return report(stderr, cmdConfig(cfg, rest, stdout))
	}

	ctx := context.Background()
	a, err := open(ctx, cfg, *offline, log, stdout)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer a.shutdown()

	var cmdErr error
	switch cmd {
	case "project":
		cmdErr = a.cmdProject(ctx, rest)
	case "timer":
		cmdErr = a.cmdTimer(ctx, rest)
	case "session":
		cmdErr = a.cmdSession(ctx, rest)
	case "settings":
		cmdErr = a.cmdSettings(ctx, rest)
	case "stats":
		cmdErr = a.cmdStats()
	case "sync":
		cmdErr = a.cmdSync(ctx)
	case "backup":
		cmdErr = a.cmdBackup(ctx, rest)
	case "recover":
		cmdErr = a.cmdRecover(ctx, rest)
	default:
		usage(stderr)
		return 2
	}
	if !*offline && !a.eng.Online() {
		fmt.Fprintln(stderr, "server unreachable; changes kept locally")
	}
	return report(stderr, cmdErr)
}

// report prints err and maps its kind to an exit code.
func report(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(w, "error:", err)
	var usageErr errUsage
	switch {
	case errors.As(err, &usageErr):
		return 2
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrNotFound):
		return 3
	default:
		return 1
	}
}

// errUsage marks bad command lines.
type errUsage string

func (e errUsage) Error() string { return string(e) }
