package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/strawberryjas/gramjaljeevan/internal/api"
	"github.com/strawberryjas/gramjaljeevan/internal/config"
	"github.com/strawberryjas/gramjaljeevan/internal/dashboard"
	"github.com/strawberryjas/gramjaljeevan/internal/engine"
	"github.com/strawberryjas/gramjaljeevan/internal/linkhealth"
	"github.com/strawberryjas/gramjaljeevan/internal/metrics"
	"github.com/strawberryjas/gramjaljeevan/internal/model"
	"github.com/strawberryjas/gramjaljeevan/internal/protocol"
	"github.com/strawberryjas/gramjaljeevan/internal/redisbridge"
	"github.com/strawberryjas/gramjaljeevan/internal/report"
	"github.com/strawberryjas/gramjaljeevan/internal/scenario"
	"github.com/strawberryjas/gramjaljeevan/internal/store"
	"github.com/strawberryjas/gramjaljeevan/internal/telemetry"
)

const serviceVersion = "1.0.0"

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	listen := flag.String("listen", "", "HTTP listen address, overrides server.listen")
	scenarioPath := flag.String("scenario", "", "scenario file to play, overrides server.scenario")
	requireOperator := flag.Bool("require-operator", false, "reject commands without an X-Operator header")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *scenarioPath != "" {
		cfg.Server.Scenario = *scenarioPath
	}

	source := protocol.Source{
		Service:  "jaltwin",
		Instance: cfg.Server.Instance,
		Version:  serviceVersion,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.New(cfg.Server.Journal)
	if err != nil {
		log.Fatalf("Failed to open journal at %s: %v", cfg.Server.Journal, err)
	}
	defer db.Close()
	log.Printf("Opened journal at %s", cfg.Server.Journal)

	journal := store.NewJournal(db, store.DefaultJournalBuffer)
	twin := engine.New(cfg.Config, engine.WithAuditor(journal))

	wsHub := api.NewHub(api.WithGreeting(func() any {
		return twin.GetLiveState()
	}))
	m := metrics.New()

	var (
		links     []api.LinkChecker
		monitors  []*linkhealth.Monitor
		snapshots []func(model.State)
	)
	linkEvent := func(name, status string) func() {
		return func() {
			log.Printf("%s link %s", name, status)
			wsHub.BroadcastEvent("link_health", map[string]string{"link": name, "status": status})
		}
	}
	watchLink := func(name string, ping linkhealth.PingFunc) {
		mon := linkhealth.New(name, ping,
			linkhealth.WithInterval(cfg.Server.HealthInterval),
			linkhealth.WithOnDown(linkEvent(name, "disconnected")),
			linkhealth.WithOnUp(linkEvent(name, "connected")),
		)
		monitors = append(monitors, mon)
		links = append(links, mon)
	}

	var (
		bridge    *redisbridge.Bridge
		publisher *redisbridge.Publisher
	)
	if cfg.Server.Redis != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Server.Redis})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("Redis at %s not reachable yet: %v", cfg.Server.Redis, err)
		} else {
			log.Printf("Connected to Redis at %s", cfg.Server.Redis)
		}
		bridge = redisbridge.New(rdb, twin, source)
		publisher = redisbridge.NewPublisher(rdb, source, twin.IsRunning,
			redisbridge.WithHeartbeatInterval(cfg.Server.HealthInterval),
			redisbridge.WithSnapshotInterval(cfg.Server.SnapshotInterval))
		snapshots = append(snapshots, publisher.Offer)
		watchLink("redis", linkhealth.RedisPing(rdb))
	}

	var sinks []telemetry.Sink
	if cfg.Server.MQTT != "" {
		sink, err := telemetry.DialMQTT(cfg.Server.MQTT, source.Service+"-"+source.Instance, cfg.Server.MQTTNode)
		if err != nil {
			log.Printf("MQTT at %s unavailable, readings not published there: %v", cfg.Server.MQTT, err)
		}
		if sink != nil {
			sinks = append(sinks, sink)
			watchLink("mqtt", sink.Ping)
		}
	}
	if len(cfg.Server.Kafka) > 0 {
		sinks = append(sinks, telemetry.NewKafkaSink(cfg.Server.Kafka, cfg.Server.KafkaTopic))
		log.Printf("Publishing readings to Kafka topic %s", cfg.Server.KafkaTopic)
	}
	var readings *telemetry.Publisher
	if len(sinks) > 0 {
		readings = telemetry.NewPublisher(cfg.Server.TelemetryInterval, sinks...)
		snapshots = append(snapshots, readings.Offer)
	}

	unsubscribe := twin.Subscribe(func(s model.State) {
		m.Observe(s)
		wsHub.BroadcastEvent(api.EventSnapshot, s)
		for _, fn := range snapshots {
			fn(s)
		}
	})
	defer unsubscribe()

	handler := &api.Handler{
		Twin:            twin,
		Journal:         db,
		Hub:             wsHub,
		Metrics:         m,
		Links:           links,
		RequireOperator: *requireOperator,
	}

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /{$}", dashboard.Handler())
	mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"service":"jaltwin","instance":"` + source.Instance + `","version":"` + serviceVersion + `"}`))
	})

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           api.Wrap(mux, os.Stdout),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	spawn := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	spawn(func() { journal.Run(ctx) })
	spawn(func() { wsHub.Run(ctx) })
	for _, mon := range monitors {
		spawn(func() { mon.Run(ctx) })
	}
	if bridge != nil {
		spawn(func() { bridge.Serve(ctx) })
		spawn(func() { publisher.Run(ctx) })
	}
	if readings != nil {
		spawn(func() { readings.Run(ctx) })
	}
	spawn(func() {
		log.Printf("HTTP server listening on %s", cfg.Server.Listen)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	})

	twin.Start(nil)

	if cfg.Server.Scenario != "" {
		runner := scenario.NewRunner(twin)
		spawn(func() {
			if err := runner.PlayAndWatch(ctx, cfg.Server.Scenario); err != nil {
				log.Printf("scenario: %v", err)
			}
		})
	}

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(shutdownCtx)

	twin.Stop()
	if cfg.Server.ReportDir != "" {
		if path, err := report.Archive(cfg.Server.ReportDir, twin.GetLiveState(), db); err != nil {
			log.Printf("report: %v", err)
		} else {
			log.Printf("Wrote plant report %s", path)
		}
	}

	wg.Wait()
	log.Printf("Shutdown complete (journal wrote %d, dropped %d)", journal.Written(), journal.Dropped())
}
