package main

import (
	"context"
	"flag"
	"io"
	"os"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/pkg/errors"

	"github.com/vulcan-frame/vtime/config"
	"github.com/vulcan-frame/vtime/countdown"
	"github.com/vulcan-frame/vtime/history"
	"github.com/vulcan-frame/vtime/notify"
	"github.com/vulcan-frame/vtime/term"
	"github.com/vulcan-frame/vtime/watch"
	"github.com/vulcan-frame/vtime/xtime"
)

const (
	defaultTimer  = "00:00:10"
	defaultAlarm  = "12:00:00"
	flushTimeout  = 2 * time.Second
	recordTimeout = 3 * time.Second
)

type app struct {
	stdin  *os.File
	stdout io.Writer
	stderr io.Writer

	clock       xtime.Clock
	newNotifier func(enabled bool) notify.Notifier

	cfg         *config.Config
	showVersion *bool
	printer     *term.Printer
	notify      *notify.Dispatcher
}

func newApp(stdin *os.File, stdout, stderr io.Writer) *app {
	return &app{
		stdin:       stdin,
		stdout:      stdout,
		stderr:      stderr,
		clock:       xtime.SystemClock,
		newNotifier: notify.New,
	}
}

// execute parses args, installs logging and notifications from the resulting
// config, then runs the selected command.
func (a *app) execute(ctx context.Context, args []string) error {
	root := a.buildCLI()
	if err := root.Parse(args); err != nil {
		return err
	}
	if err := a.setup(); err != nil {
		return err
	}
	return root.Run(ctx)
}

func (a *app) setup() error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	colored := a.cfg.Color
	if f, ok := a.stdout.(*os.File); !ok || !term.IsTerminal(f) {
		colored = false
	}
	a.printer = term.NewPrinter(a.stdout, colored)

	logger := log.NewStdLogger(a.printer.Diagnostics(a.stderr))
	log.SetLogger(log.NewFilter(logger, log.FilterLevel(a.cfg.Level())))

	a.notify = notify.NewDispatcher(a.newNotifier(a.cfg.Notify))
	return nil
}

func (a *app) buildCLI() *ffcli.Command {
	rootFlagSet := a.flagSet("vtime")
	a.cfg = config.Register(rootFlagSet)
	a.showVersion = rootFlagSet.Bool("version", false, "print version and exit")

	timeCmd := &ffcli.Command{
		Name:       "time",
		ShortUsage: "vtime time",
		ShortHelp:  "Print the current time",
		Exec:       a.noArgs(func() error { return a.printer.Print(xtime.TimeString(a.clock.Now())) }),
	}

	dateCmd := &ffcli.Command{
		Name:       "date",
		ShortUsage: "vtime date",
		ShortHelp:  "Print the current date",
		Exec:       a.noArgs(func() error { return a.printer.Print(xtime.DateString(a.clock.Now())) }),
	}

	nowCmd := &ffcli.Command{
		Name:       "now",
		ShortUsage: "vtime now",
		ShortHelp:  "Print the current time and date",
		Exec:       a.noArgs(a.execNow),
	}

	clockCmd := &ffcli.Command{
		Name:       "clock",
		ShortUsage: "vtime clock",
		ShortHelp:  "Continuously print the current time and date",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) > 0 {
				return errors.Errorf("unexpected arguments %q", args)
			}
			return watch.Clock(ctx, a.clock, a.printer)
		},
	}

	stopwatchCmd := &ffcli.Command{
		Name:       "stopwatch",
		ShortUsage: "vtime stopwatch",
		ShortHelp:  "Start a stopwatch",
		LongHelp:   "Keys:\n  p, space     pause or resume\n  l, enter     record a lap\n  q, esc       stop",
		Exec:       a.execStopwatch,
	}

	timerCmd := &ffcli.Command{
		Name:       "timer",
		ShortUsage: "vtime timer [HH:MM:SS]",
		ShortHelp:  "Set a timer for a given duration",
		LongHelp: "The duration is [[HH:]MM:]SS and defaults to " + defaultTimer + ".\n\n" +
			"Keys:\n  p, space     pause or resume\n  right, a     forward 5 seconds\n  left, d      back 5 seconds\n  q, esc       cancel",
		Exec: a.execTimer,
	}

	alarmCmd := &ffcli.Command{
		Name:       "alarm",
		ShortUsage: "vtime alarm [HH:MM[:SS]]",
		ShortHelp:  "Set an alarm at a given time",
		LongHelp:   "The time defaults to " + defaultAlarm + ". A time already passed today rings tomorrow.\n\nKeys:\n  q, esc       cancel",
		Exec:       a.execAlarm,
	}

	historyFlagSet := a.flagSet("vtime history")
	historyN := historyFlagSet.Int64("n", 10, "number of sessions to list")

	historyCmd := &ffcli.Command{
		Name:       "history",
		ShortUsage: "vtime [-history redis|mongo] history [-n N]",
		ShortHelp:  "List recently finished timers and alarms",
		FlagSet:    historyFlagSet,
		Exec: func(ctx context.Context, _ []string) error {
			return a.execHistory(ctx, *historyN)
		},
	}

	return &ffcli.Command{
		ShortUsage: "vtime [flags] <subcommand>",
		ShortHelp:  "Terminal time utilities: clock, stopwatch, timer and alarm",
		FlagSet:    rootFlagSet,
		Options: []ff.Option{
			ff.WithEnvVarPrefix(config.EnvPrefix),
			ff.WithConfigFileFlag("config"),
			ff.WithConfigFileParser(config.ParseYAML),
			ff.WithAllowMissingConfigFile(true),
		},
		Subcommands: []*ffcli.Command{timeCmd, dateCmd, nowCmd, clockCmd, stopwatchCmd, timerCmd, alarmCmd, historyCmd},
		Exec: func(_ context.Context, args []string) error {
			if *a.showVersion {
				return a.printer.Print("vtime " + version)
			}
			if len(args) > 0 {
				return errors.Errorf("unknown command %q", args[0])
			}
			return a.execNow()
		},
	}
}

func (a *app) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) noArgs(fn func() error) func(context.Context, []string) error {
	return func(_ context.Context, args []string) error {
		if len(args) > 0 {
			return errors.Errorf("unexpected arguments %q", args)
		}
		return fn()
	}
}

func (a *app) execNow() error {
	return a.printer.Print(xtime.NowString(a.clock.Now()))
}

func optionalArg(args []string, def string) (string, error) {
	switch len(args) {
	case 0:
		return def, nil
	case 1:
		return args[0], nil
	default:
		return "", errors.Errorf("unexpected arguments %q", args[1:])
	}
}

func (a *app) execTimer(ctx context.Context, args []string) error {
	arg, err := optionalArg(args, defaultTimer)
	if err != nil {
		return err
	}
	d, err := xtime.ParseDuration(arg)
	if err != nil {
		return errors.Wrap(err, "incorrect timer duration")
	}

	return a.session(ctx, "timer", xtime.FormatDuration(d), func(env countdown.Env) (countdown.Result, error) {
		return countdown.NewTimer(d, env).Run(ctx)
	})
}

func (a *app) execAlarm(ctx context.Context, args []string) error {
	arg, err := optionalArg(args, defaultAlarm)
	if err != nil {
		return err
	}
	target, err := xtime.ParseTimeOfDay(arg, a.clock.Now())
	if err != nil {
		return errors.Wrap(err, "incorrect alarm time")
	}

	return a.session(ctx, "alarm", xtime.DateTimeString(target), func(env countdown.Env) (countdown.Result, error) {
		return countdown.NewAlarm(target, env).Run(ctx)
	})
}

// session runs a countdown against the keyboard, waits for pending
// notifications and records the outcome when history is enabled.
func (a *app) session(ctx context.Context, kind, target string, run func(countdown.Env) (countdown.Result, error)) error {
	kb, err := term.OpenKeyboard(a.stdin)
	if err != nil {
		return err
	}
	defer a.closeKeyboard(kb)

	res, err := run(countdown.Env{
		Clock:   a.clock,
		Printer: a.printer,
		Keys:    kb,
		Notify:  a.notify,
		Bell:    a.cfg.Bell,
	})
	a.notify.Flush(flushTimeout)

	if res.Outcome != countdown.Running {
		a.record(kind, target, res)
	}
	return err
}

func (a *app) closeKeyboard(kb *term.Keyboard) {
	if err := kb.Close(); err != nil {
		log.Warnf("restore terminal failed. %+v", err)
	}
}

func (a *app) historyEnabled() bool {
	return a.cfg.History != "" && a.cfg.History != history.BackendNone
}

func (a *app) record(kind, target string, res countdown.Result) {
	if !a.historyEnabled() {
		return
	}

	rec, cleanup, err := history.Open(a.cfg.HistoryOptions())
	if err != nil {
		log.Warnf("history unavailable, session not recorded. %+v", err)
		return
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	r := &history.Record{
		Kind:      kind,
		Target:    target,
		Outcome:   res.Outcome.String(),
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
	}
	if err = rec.Append(ctx, r); err != nil {
		log.Warnf("session not recorded. %+v", err)
		return
	}
	log.Debugf("session recorded. id=%s", r.ID)
}

func (a *app) execStopwatch(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return errors.Errorf("unexpected arguments %q", args)
	}

	var keys term.KeySource
	if term.IsTerminal(a.stdin) {
		kb, err := term.OpenKeyboard(a.stdin)
		if err != nil {
			return err
		}
		defer a.closeKeyboard(kb)
		keys = kb
	}

	_, err := watch.NewStopwatch(a.clock, a.printer, keys).Run(ctx)
	return err
}

func (a *app) execHistory(ctx context.Context, n int64) error {
	if !a.historyEnabled() {
		return errors.New("history is disabled, select a backend with -history redis|mongo")
	}
	if n <= 0 {
		return errors.Errorf("-n must be positive. got=%d", n)
	}

	rec, cleanup, err := history.Open(a.cfg.HistoryOptions())
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := rec.Recent(ctx, n)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return a.printer.Print("no sessions recorded")
	}
	for _, r := range records {
		if err = a.printer.Print(r.String()); err != nil {
			return err
		}
	}
	return nil
}
