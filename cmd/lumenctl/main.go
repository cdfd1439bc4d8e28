// Command lumenctl inspects the bot's row store: presence, dialog meta and
// what the notification throttler would decide for a message right now.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/lumen/internal/app"
	"github.com/and161185/lumen/internal/config"
	"github.com/and161185/lumen/internal/migrate"
	"github.com/and161185/lumen/internal/repository"
	"github.com/and161185/lumen/internal/repository/tables"
	"github.com/and161185/lumen/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var errUsage = errors.New("usage")

// opener returns the row store selected by cfg and a release func.
type opener func(ctx context.Context, cfg config.StoreConfig) (repository.RowStore, func(), error)

func openStore(ctx context.Context, cfg config.StoreConfig) (repository.RowStore, func(), error) {
	s, err := app.OpenStore(ctx, cfg, zap.NewNop())
	if err != nil {
		return nil, nil, err
	}
	return s, s.Close, nil
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `lumenctl
Usage:
  lumenctl [-store memory|postgres|sheets] [-dsn DSN] [-spreadsheet ID] <cmd> [args]

Store settings also come from DATABASE_DSN, SPREADSHEET_ID,
GOOGLE_SERVICE_ACCOUNT_FILE and GOOGLE_SERVICE_ACCOUNT_B64.

Commands:
  version
  presence  -user <id>
  meta      -dialog <id>
  dialogs   -user <id>
  explain   -dialog <id> -from <sender id> [-active-window d] [-notify-cooldown d] [-presence-freshness d]
  migrate                                       (postgres only)
`)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stdout, os.Stderr, openStore))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer, open opener) int {
	err := dispatch(ctx, args, getenv, stdout, stderr, open)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		usage(stderr)
		return 2
	default:
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
}

func dispatch(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer, open opener) error {
	cfg := config.Default().Store
	cfg.ApplyEnv(getenv)

	global := flag.NewFlagSet("lumenctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() {}
	global.StringVar(&cfg.Backend, "store", cfg.Backend, "row store: memory|postgres|sheets")
	global.StringVar(&cfg.DSN, "dsn", cfg.DSN, "postgres DSN")
	global.StringVar(&cfg.SpreadsheetID, "spreadsheet", cfg.SpreadsheetID, "Google spreadsheet id")
	if err := global.Parse(args); err != nil {
		return err
	}
	if global.NArg() < 1 {
		return errUsage
	}
	cmd, rest := global.Arg(0), global.Args()[1:]

	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "lumenctl %s (%s)\n", version, buildDate)
		return nil
	case "migrate":
		if cfg.DSN == "" {
			return errors.New("migrate needs a postgres DSN")
		}
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			return err
		}
		v, err := migrate.Version(ctx, cfg.DSN)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "schema version %d\n", v)
		return nil
	case "presence", "meta", "dialogs", "explain":
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	// Never migrate from an inspection tool.
	cfg.Migrate = false
	if err := cfg.Validate(); err != nil {
		return err
	}
	store, release, err := open(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	switch cmd {
	case "presence":
		return presenceCmd(ctx, store, rest, stdout, stderr)
	case "meta":
		return metaCmd(ctx, store, rest, stdout, stderr)
	case "dialogs":
		return dialogsCmd(ctx, store, rest, stdout, stderr)
	default:
		return explainCmd(ctx, store, rest, stdout, stderr)
	}
}

func subFlags(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func presenceCmd(ctx context.Context, store repository.RowStore, args []string, stdout, stderr io.Writer) error {
	fs := subFlags("presence", stderr)
	uid := fs.Int64("user", 0, "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *uid == 0 {
		return fmt.Errorf("%w: -user is required", errUsage)
	}
	p, err := tables.NewPresenceRepo(store).Get(ctx, *uid)
	if err != nil {
		return err
	}
	printJSON(stdout, presenceView(p))
	return nil
}

func metaCmd(ctx context.Context, store repository.RowStore, args []string, stdout, stderr io.Writer) error {
	fs := subFlags("meta", stderr)
	did := fs.String("dialog", "", "dialog id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *did == "" {
		return fmt.Errorf("%w: -dialog is required", errUsage)
	}
	m, err := tables.NewDialogMetaRepo(store).Get(ctx, *did)
	if err != nil {
		return err
	}
	printJSON(stdout, metaView(m))
	return nil
}

func dialogsCmd(ctx context.Context, store repository.RowStore, args []string, stdout, stderr io.Writer) error {
	fs := subFlags("dialogs", stderr)
	uid := fs.Int64("user", 0, "user id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *uid == 0 {
		return fmt.Errorf("%w: -user is required", errUsage)
	}
	ds, err := tables.NewDialogRepo(store).ListByUser(ctx, *uid)
	if err != nil {
		return err
	}
	out := make([]dialogJSON, 0, len(ds))
	for _, d := range ds {
		out = append(out, dialogJSON{ID: d.ID, U1: d.U1, U2: d.U2, Status: string(d.Status), CreatedAt: stamp(d.CreatedAt)})
	}
	printJSON(stdout, out)
	return nil
}

func explainCmd(ctx context.Context, store repository.RowStore, args []string, stdout, stderr io.Writer) error {
	defaults := config.Default().Throttle
	fs := subFlags("explain", stderr)
	did := fs.String("dialog", "", "dialog id")
	from := fs.Int64("from", 0, "sender user id")
	active := fs.Duration("active-window", defaults.ActiveWindow, "active window")
	cooldown := fs.Duration("notify-cooldown", defaults.NotifyCooldown, "notify cooldown")
	fresh := fs.Duration("presence-freshness", defaults.PresenceFreshness, "presence freshness")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *did == "" || *from == 0 {
		return fmt.Errorf("%w: -dialog and -from are required", errUsage)
	}

	th := service.NewThrottler(
		tables.NewDialogRepo(store),
		tables.NewDialogMetaRepo(store),
		tables.NewPresenceRepo(store),
		tables.NewUserRepo(store),
		nil, nil, nil,
		service.ThrottleConfig{ActiveWindow: *active, NotifyCooldown: *cooldown, PresenceFreshness: *fresh},
		nil,
	)
	a, err := th.Evaluate(ctx, *did, *from)
	if err != nil {
		return err
	}
	out := explainJSON{Decision: a.Decision.String(), At: stamp(a.At)}
	if a.Decision != service.DecisionUnresolved {
		m := metaView(a.Meta)
		out.TargetID, out.TargetSlot, out.Meta = a.TargetID, a.TargetSlot, &m
	}
	if a.Decision == service.DecisionRefresh || a.Decision == service.DecisionNotify {
		p := presenceView(a.Presence)
		out.Presence = &p
	}
	printJSON(stdout, out)
	return nil
}
