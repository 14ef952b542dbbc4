package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	u "github.com/gofrs/uuid/v5"

	"github.com/and161185/timekeeper/internal/config"
	"github.com/and161185/timekeeper/internal/errs"
	"github.com/and161185/timekeeper/internal/model"
	"github.com/and161185/timekeeper/internal/reconcile"
	"github.com/and161185/timekeeper/internal/state"
)

// ------- parsers -------

// parseColor accepts a palette entry with or without the "-500" suffix.
func parseColor(s string) (model.Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasSuffix(s, "-500") {
		s += "-500"
	}
	c := model.Color(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown color %q", errs.ErrValidation, s)
	}
	return c, nil
}

// parseSeconds accepts a Go duration ("25m", "1h30m") or a plain number of seconds.
func parseSeconds(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("%w: negative duration", errs.ErrValidation)
		}
		return n, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: bad duration %q", errs.ErrValidation, s)
	}
	return int64(d / time.Second), nil
}

// clock renders seconds as H:MM:SS.
func clock(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", sec/3600, sec/60%60, sec%60)
}

// findProject resolves a full id, an id prefix of at least 4 characters, or a name.
func findProject(ps []model.Project, ref string) (model.Project, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Project{}, errUsage("project reference required")
	}
	if id, err := u.FromString(ref); err == nil {
		for _, p := range ps {
			if p.ID == id {
				return p, nil
			}
		}
		return model.Project{}, fmt.Errorf("%w: project %s", errs.ErrNotFound, ref)
	}
	var hits []model.Project
	for _, p := range ps {
		if strings.EqualFold(p.Name, ref) {
			return p, nil
		}
		if len(ref) >= 4 && strings.HasPrefix(p.ID.String(), strings.ToLower(ref)) {
			hits = append(hits, p)
		}
	}
	switch len(hits) {
	case 0:
		return model.Project{}, fmt.Errorf("%w: project %q", errs.ErrNotFound, ref)
	case 1:
		return hits[0], nil
	default:
		return model.Project{}, fmt.Errorf("%w: %q matches %d projects", errs.ErrValidation, ref, len(hits))
	}
}

func findSession(st state.State, ref string) (model.Session, error) {
	id, err := u.FromString(strings.TrimSpace(ref))
	if err != nil {
		return model.Session{}, errUsage("session id must be a uuid")
	}
	for _, s := range st.CompletedSessions {
		if s.ID == id {
			return s, nil
		}
	}
	for _, s := range st.ActiveSessions {
		if s.ID == id {
			return s, nil
		}
	}
	return model.Session{}, fmt.Errorf("%w: session %s", errs.ErrNotFound, ref)
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return errUsage(fs.Name() + ": " + err.Error())
	}
	return nil
}

// ------- output -------

func newTable(w io.Writer) *tabwriter.Writer { return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0) }

func short(id u.UUID) string { return id.String()[:8] }

func (a *app) printProjects(ps []model.Project, active *u.UUID) {
	tw := newTable(a.out)
	fmt.Fprintln(tw, "\tID\tNAME\tCOLOR\tTOTAL\tGOAL")
	for _, p := range ps {
		mark := ""
		if active != nil && *active == p.ID {
			mark = "*"
		}
		goal := "-"
		if pr, ok := p.GoalProgress(); ok {
			goal = fmt.Sprintf("%.0f%% of %gh", pr*100, *p.GoalHours)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", mark, short(p.ID), p.Name, p.Color, clock(p.TotalTimeSpent), goal)
	}
	_ = tw.Flush()
}

func (a *app) printSessions(ss []model.Session, names map[u.UUID]string) {
	tw := newTable(a.out)
	fmt.Fprintln(tw, "ID\tPROJECT\tSTART\tDURATION\tTYPE\tSTATUS")
	for _, s := range ss {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, names[s.ProjectID],
			s.StartTime.Local().Format("2006-01-02 15:04"), clock(s.Duration), s.Type, s.Status())
	}
	_ = tw.Flush()
}

func projectNames(ps []model.Project) map[u.UUID]string {
	out := make(map[u.UUID]string, len(ps))
	for _, p := range ps {
		out[p.ID] = p.Name
	}
	return out
}

// ------- commands -------

func cmdConfig(cfg *config.Client, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "show" {
		fmt.Fprintf(out, "file: %s\nserver_addr: %s\ndevice_id: %s\ndata_dir: %s\nbackup.backend: %s\ntoken set: %t\n",
			cfg.Path(), cfg.ServerAddr, cfg.DeviceID, cfg.DataDir, cfg.Backup.Backend, cfg.Token != "")
		return nil
	}
	if args[0] != "set" || len(args) != 3 {
		return errUsage("usage: tk config set <key> <value>")
	}
	return cfg.Set(args[1], args[2])
}

func (a *app) cmdProject(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	st := a.eng.State()
	switch args[0] {
	case "list", "ls":
		a.printProjects(st.Projects, st.ActiveProject)
		return nil

	case "add":
		fs := flag.NewFlagSet("project add", flag.ContinueOnError)
		name := fs.String("name", "", "project name")
		color := fs.String("color", "blue", "palette color")
		desc := fs.String("desc", "", "description")
		goal := fs.Float64("goal", 0, "goal in hours (0 for none)")
		sel := fs.Bool("select", false, "make it the active project")
		if err := parseFlags(fs, args[1:]); err != nil {
			return err
		}
		c, err := parseColor(*color)
		if err != nil {
			return err
		}
		p := model.Project{Name: *name, Description: *desc, Color: c}
		if *goal > 0 {
			p.GoalHours = goal
		}
		p, err = a.eng.AddProject(ctx, p)
		if err != nil {
			return err
		}
		if *sel {
			if err := a.eng.SelectProject(&p.ID); err != nil {
				return err
			}
		}
		fmt.Fprintf(a.out, "created %s %s\n", p.ID, p.Name)
		return nil

	case "edit":
		if len(args) < 2 {
			return errUsage("usage: tk project edit <ref> [-name N] [-color C] [-desc D] [-goal H]")
		}
		p, err := findProject(st.Projects, args[1])
		if err != nil {
			return err
		}
		fs := flag.NewFlagSet("project edit", flag.ContinueOnError)
		name := fs.String("name", p.Name, "project name")
		color := fs.String("color", string(p.Color), "palette color")
		desc := fs.String("desc", p.Description, "description")
		goal := fs.Float64("goal", -1, "goal in hours (0 clears)")
		if err := parseFlags(fs, args[2:]); err != nil {
			return err
		}
		c, err := parseColor(*color)
		if err != nil {
			return err
		}
		p.Name, p.Color, p.Description = *name, c, *desc
		switch {
		case *goal == 0:
			p.GoalHours = nil
		case *goal > 0:
			p.GoalHours = goal
		}
		p, err = a.eng.UpdateProject(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "updated %s %s\n", p.ID, p.Name)
		return nil

	case "rm", "delete":
		if len(args) < 2 {
			return errUsage("usage: tk project rm <ref>")
		}
		p, err := findProject(st.Projects, args[1])
		if err != nil {
			return err
		}
		if err := a.eng.DeleteProject(ctx, p.ID); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted %s %s\n", p.ID, p.Name)
		return nil

	case "select":
		if len(args) < 2 {
			return errUsage("usage: tk project select <ref>|-none")
		}
		if args[1] == "-none" {
			return a.eng.SelectProject(nil)
		}
		p, err := findProject(st.Projects, args[1])
		if err != nil {
			return err
		}
		if err := a.eng.SelectProject(&p.ID); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "active project: %s\n", p.Name)
		return nil
	}
	return errUsage("unknown project command " + args[0])
}

// attachable picks the active session to take over: the active project's first, else any.
func attachable(st state.State) (model.Session, bool) {
	if len(st.ActiveSessions) == 0 {
		return model.Session{}, false
	}
	if st.ActiveProject != nil {
		for _, s := range st.ActiveSessions {
			if s.ProjectID == *st.ActiveProject {
				return s, true
			}
		}
	}
	return st.ActiveSessions[0], true
}

func (a *app) cmdTimer(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"status"}
	}
	switch args[0] {
	case "status":
		return a.timerStatus()

	case "start":
		fs := flag.NewFlagSet("timer start", flag.ContinueOnError)
		countdown := fs.String("countdown", "", "countdown length (e.g. 25m); stopwatch when empty")
		detach := fs.Bool("detach", false, "start and return; the session keeps running")
		if err := parseFlags(fs, args[1:]); err != nil {
			return err
		}
		typ, initial := model.Stopwatch, int64(0)
		if *countdown != "" {
			n, err := parseSeconds(*countdown)
			if err != nil {
				return err
			}
			typ, initial = model.Countdown, n
		}
		if running, ok := attachable(a.eng.State()); ok {
			return fmt.Errorf("%w: session %s is still running; use 'tk timer stop' or 'tk timer attach'",
				errs.ErrValidation, running.ID)
		}
		s, err := a.eng.StartTimer(ctx, typ, initial)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "started %s session %s\n", s.Type, s.ID)
		if *detach {
			return nil
		}
		return a.foreground(ctx)

	case "attach":
		s, ok := attachable(a.eng.State())
		if !ok {
			return fmt.Errorf("%w: no active session", errs.ErrNotFound)
		}
		if _, err := a.eng.AttachTimer(ctx, s.ID); err != nil {
			return err
		}
		return a.foreground(ctx)

	case "stop":
		s, ok := attachable(a.eng.State())
		if !ok {
			return fmt.Errorf("%w: no active session", errs.ErrNotFound)
		}
		view, err := a.eng.AttachTimer(ctx, s.ID)
		if err != nil {
			return err
		}
		if view.State == reconcile.TimerCompleted {
			fmt.Fprintf(a.out, "countdown already finished: %s\n", clock(view.Elapsed))
			return nil
		}
		done, err := a.eng.StopTimer(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "stopped %s after %s\n", done.ID, clock(done.Duration))
		return nil
	}
	return errUsage("unknown timer command " + args[0])
}

func (a *app) timerStatus() error {
	st := a.eng.State()
	if len(st.ActiveSessions) == 0 {
		fmt.Fprintln(a.out, "no timer running")
		return nil
	}
	names := projectNames(st.Projects)
	now := time.Now()
	for _, s := range st.ActiveSessions {
		elapsed := max(int64(now.Sub(s.StartTime)/time.Second), s.Duration)
		line := fmt.Sprintf("%s  %s  %s  elapsed %s", s.ID, names[s.ProjectID], s.Type, clock(elapsed))
		if s.Type == model.Countdown && s.InitialDuration != nil {
			line += "  remaining " + clock(*s.InitialDuration-elapsed)
		}
		fmt.Fprintln(a.out, line)
	}
	return nil
}

// foreground ticks the running timer until it completes or the user interrupts, which pauses it.
func (a *app) foreground(ctx context.Context) error {
	sig, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.eng.Start()

	tick := time.NewTicker(time.Second)
	defer tick.Stop()
	for {
		select {
		case <-sig.Done():
			done, err := a.eng.PauseTimer(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "\npaused; session %s recorded %s\n", done.ID, clock(done.Duration))
			return nil
		case <-tick.C:
			v := a.eng.Timer()
			switch v.State {
			case reconcile.TimerRunning:
				if v.Type == model.Countdown {
					fmt.Fprintf(a.out, "\r%s remaining ", clock(v.Remaining))
				} else {
					fmt.Fprintf(a.out, "\r%s ", clock(v.Elapsed))
				}
			case reconcile.TimerCompleted:
				fmt.Fprintf(a.out, "\ncountdown finished after %s\n", clock(v.Elapsed))
				return nil
			default:
				return nil
			}
		}
	}
}

func (a *app) cmdSession(ctx context.Context, args []string) error {
	if len(args) == 0 {
		args = []string{"list"}
	}
	st := a.eng.State()
	switch args[0] {
	case "list", "ls":
		fs := flag.NewFlagSet("session list", flag.ContinueOnError)
		ref := fs.String("project", "", "only this project")
		if err := parseFlags(fs, args[1:]); err != nil {
			return err
		}
		ss := append(append([]model.Session{}, st.ActiveSessions...), st.CompletedSessions...)
		if *ref != "" {
			p, err := findProject(st.Projects, *ref)
			if err != nil {
				return err
			}
			kept := ss[:0]
			for _, s := range ss {
				if s.ProjectID == p.ID {
					kept = append(kept, s)
				}
			}
			ss = kept
		}
		sort.SliceStable(ss, func(i, j int) bool { return ss[i].StartTime.After(ss[j].StartTime) })
		a.printSessions(ss, projectNames(st.Projects))
		return nil

	case "edit":
		if len(args) < 2 {
			return errUsage("usage: tk session edit <id> [-duration D] [-project ref]")
		}
		s, err := findSession(st, args[1])
		if err != nil {
			return err
		}
		fs := flag.NewFlagSet("session edit", flag.ContinueOnError)
		dur := fs.String("duration", "", "new duration")
		ref := fs.String("project", "", "move to project")
		if err := parseFlags(fs, args[2:]); err != nil {
			return err
		}
		if *dur != "" {
			if s.Duration, err = parseSeconds(*dur); err != nil {
				return err
			}
			if s.EndTime != nil {
				end := s.StartTime.Add(time.Duration(s.Duration) * time.Second)
				s.EndTime = &end
			}
		}
		if *ref != "" {
			p, err := findProject(st.Projects, *ref)
			if err != nil {
				return err
			}
			s.ProjectID = p.ID
		}
		s, err = a.eng.UpdateSession(ctx, s)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "updated %s: %s\n", s.ID, clock(s.Duration))
		return nil

	case "rm", "delete":
		if len(args) < 2 {
			return errUsage("usage: tk session rm <id>")
		}
		s, err := findSession(st, args[1])
		if err != nil {
			return err
		}
		if err := a.eng.DeleteSession(ctx, s.ID); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted %s\n", s.ID)
		return nil
	}
	return errUsage("unknown session command " + args[0])
}

func (a *app) cmdSettings(ctx context.Context, args []string) error {
	switch {
	case len(args) == 0:
		all, err := a.eng.Settings(ctx)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, string(k))
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(a.out, "%s: %s\n", k, all[model.SettingKey(k)])
		}
		return nil
	case args[0] == "get" && len(args) == 2:
		all, err := a.eng.Settings(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, all.Get(model.SettingKey(args[1])))
		return nil
	case args[0] == "set" && len(args) == 3:
		return a.eng.SetSetting(ctx, model.SettingKey(args[1]), args[2])
	}
	return errUsage("usage: tk settings [get <key> | set <key> <value>]")
}

func (a *app) cmdStats() error {
	st := a.eng.State()
	fmt.Fprintf(a.out, "today: %s\n", clock(a.eng.TodayTotal(time.Local)))
	tw := newTable(a.out)
	fmt.Fprintln(tw, "PROJECT\tSESSIONS\tTOTAL\tGOAL")
	for _, ps := range reconcile.ProjectStats(st) {
		goal := "-"
		if ps.HasGoal {
			goal = fmt.Sprintf("%.0f%%", ps.Progress*100)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", ps.Project.Name, ps.Sessions, clock(ps.Total), goal)
	}
	return tw.Flush()
}

func (a *app) cmdSync(ctx context.Context) error {
	added, err := a.eng.Poll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d new active session(s)\n", len(added))
	return nil
}

func (a *app) cmdBackup(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "now" {
		a.eng.Flush(ctx)
		fmt.Fprintln(a.out, "snapshot saved")
		return nil
	}
	if args[0] != "list" {
		return errUsage("usage: tk backup now | list")
	}
	ts, err := a.backups.History(ctx)
	if err != nil {
		return err
	}
	for _, t := range ts {
		fmt.Fprintln(a.out, t.UTC().Format(time.RFC3339Nano))
	}
	return nil
}

func (a *app) cmdRecover(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("recover", flag.ContinueOnError)
	at := fs.String("at", "", "timestamp from 'tk backup list' (latest when empty)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	var when *time.Time
	if *at != "" {
		t, err := time.Parse(time.RFC3339Nano, *at)
		if err != nil {
			return errUsage("recover: -at must be RFC 3339")
		}
		when = &t
	}
	if _, err := a.eng.Recover(ctx, when); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("no snapshot found: %w", err)
		}
		return err
	}
	st := a.eng.State()
	fmt.Fprintf(a.out, "recovered %d project(s), %d session(s)\n", len(st.Projects), len(st.CompletedSessions))
	return nil
}
