package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strawberryjas/gramjaljeevan/internal/command"
	"github.com/strawberryjas/gramjaljeevan/internal/protocol"
	"github.com/strawberryjas/gramjaljeevan/internal/redisbridge"
)

// overrides collects repeated -override key=value flags.
type overrides map[string]float64

func (o overrides) String() string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%g", k, o[k]))
	}
	return strings.Join(parts, ",")
}

func (o overrides) Set(v string) error {
	key, val, ok := strings.Cut(v, "=")
	if !ok || key == "" {
		return fmt.Errorf("override %q: want key=value", v)
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("override %q: %w", v, err)
	}
	o[key] = f
	return nil
}

type sendOptions struct {
	pipeline   int
	open       bool
	status     string
	minutes    float64
	stopIn     time.Duration
	startPump  bool
	reason     string
	alert      string
	component  string
	state      string
	overrides  overrides
	target     string
	technician string
	notes      string
}

func (o *sendOptions) register(fs *flag.FlagSet) {
	fs.IntVar(&o.pipeline, "pipeline", 0, "pipeline id for valve commands")
	fs.BoolVar(&o.open, "open", false, "desired valve state for set_* commands")
	fs.StringVar(&o.status, "status", "", "pump status for set_pump (ON, OFF)")
	fs.Float64Var(&o.minutes, "minutes", 0, "timer length for set_pump_timer")
	fs.DurationVar(&o.stopIn, "stop-in", 0, "stop the pump this long from now (schedule_pump_stop)")
	fs.BoolVar(&o.startPump, "start-pump", false, "start an idle pump when arming a timer or schedule")
	fs.StringVar(&o.reason, "reason", "", "reason for cancel_pump_schedule")
	fs.StringVar(&o.alert, "alert", "", "alert id for ack_alert")
	fs.StringVar(&o.component, "component", "", "component for force (tank, pump, pipeline-N)")
	fs.StringVar(&o.state, "state", "", "state for force")
	o.overrides = overrides{}
	fs.Var(o.overrides, "override", "force override key=value (repeatable)")
	fs.StringVar(&o.target, "target", "", "maintenance target (tank, pump, pipeline-N)")
	fs.StringVar(&o.technician, "technician", "", "technician name for complete_maintenance")
	fs.StringVar(&o.notes, "notes", "", "maintenance notes")
}

// request builds the payload for name. Pointer fields are only filled when
// their flag appears in set.
func (o *sendOptions) request(name string, set map[string]bool, now time.Time) protocol.CommandRequestPayload {
	req := protocol.CommandRequestPayload{
		Command:    name,
		Status:     o.status,
		StartPump:  o.startPump,
		Reason:     o.reason,
		AlertID:    o.alert,
		Component:  o.component,
		State:      o.state,
		Target:     o.target,
		Technician: o.technician,
		Notes:      o.notes,
	}
	if set["pipeline"] {
		p := o.pipeline
		req.Pipeline = &p
	}
	if set["open"] {
		open := o.open
		req.Open = &open
	}
	if set["minutes"] {
		m := o.minutes
		req.Minutes = &m
	}
	if set["stop-in"] {
		at := now.Add(o.stopIn)
		req.StopAt = &at
	}
	if len(o.overrides) > 0 {
		req.Overrides = o.overrides
	}
	return req
}

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	addr := fs.String("redis", redisAddr(), "Redis address")
	instance := fs.String("instance", "village-001", "twin instance to command")
	timeout := fs.Duration("timeout", 5*time.Second, "how long to wait for the reply")
	jsonOut := fs.Bool("json", false, "print the raw reply payload")
	var opts sendOptions
	opts.register(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: jaltwin-ctl send [flags] <command>\n\ncommands: %s\n\n", strings.Join(command.Names(), ", "))
		fs.PrintDefaults()
	}
	fs.Parse(args)

	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}
	name := fs.Arg(0)
	if !slices.Contains(command.Names(), name) {
		return fmt.Errorf("unknown command %q", name)
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	req := opts.request(name, set, time.Now())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: *addr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cannot connect to Redis at %s: %w", *addr, err)
	}

	client := redisbridge.NewClient(rdb, protocol.Source{
		Service:  "jaltwin-ctl",
		Instance: fmt.Sprintf("ctl-%d", os.Getpid()),
		Version:  ctlVersion,
	})
	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go client.Listen(listenCtx)

	resp, err := client.Send(ctx, *instance, req, *timeout)
	if err != nil {
		return err
	}
	if *jsonOut {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		fmt.Println(FormatResponse(resp))
	}
	if !resp.Success {
		return fmt.Errorf("%s was not executed", name)
	}
	return nil
}

func runCommands() {
	for _, name := range command.Names() {
		fmt.Println(name)
	}
}
