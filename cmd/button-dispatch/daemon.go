package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sweeney/button-dispatch/internal/action"
	"github.com/sweeney/button-dispatch/internal/config"
	"github.com/sweeney/button-dispatch/internal/debounce"
	"github.com/sweeney/button-dispatch/internal/dispatch"
	"github.com/sweeney/button-dispatch/internal/event"
	"github.com/sweeney/button-dispatch/internal/gpio"
	"github.com/sweeney/button-dispatch/internal/isr"
	"github.com/sweeney/button-dispatch/internal/logging"
	"github.com/sweeney/button-dispatch/internal/mqtt"
	"github.com/sweeney/button-dispatch/internal/queue"
	"github.com/sweeney/button-dispatch/internal/status"
	"github.com/sweeney/button-dispatch/internal/web"
)

type daemonDeps struct {
	Watcher    gpio.Watcher
	Outputs    gpio.Outputs
	Publisher  mqtt.Publisher
	MQTTStatus mqtt.ConnectionStatus
	Logger     *slog.Logger
	Now        func() time.Time
}

// daemon ties the pipeline together: GPIO edges feed the queue through
// per-source producers, the dispatcher drains it and a monitor samples
// state for the status page and heartbeats.
type daemon struct {
	cfg        config.Config
	queue      *queue.Queue
	dispatcher *dispatch.Dispatcher
	tracker    *status.Tracker
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	server     *web.Server
	logger     *slog.Logger
	now        func() time.Time

	lastDrops     uint64
	lastHeartbeat time.Time
}

func newDaemon(cfg config.Config, deps daemonDeps) (*daemon, error) {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	q, err := queue.New(cfg.QueueCapacity)
	if err != nil {
		return nil, err
	}

	start := deps.Now()
	tracker := status.NewTracker(start, status.Config{
		QueueCapacity: cfg.QueueCapacity,
		DebounceMs:    cfg.Debounce.Milliseconds(),
		TimeoutMs:     timeoutMs(cfg.Timeout),
		PollMs:        cfg.Poll.Milliseconds(),
		HeartbeatMs:   cfg.Heartbeat.Milliseconds(),
		Broker:        cfg.Broker,
		HTTPAddr:      cfg.HTTPAddr,
	})

	filter := debounce.New(cfg.Debounce, int(cfg.MaxSourceID())+1)
	routes := make(map[event.SourceID]dispatch.Handler, len(cfg.Sources))
	actionDeps := action.Deps{
		Outputs:   deps.Outputs,
		Publisher: deps.Publisher,
		Logger:    deps.Logger,
		Now:       deps.Now,
	}

	for _, src := range cfg.Sources {
		if src.Debounce > 0 {
			if err := filter.SetInterval(src.ID, src.Debounce); err != nil {
				return nil, fmt.Errorf("source %d: %w", src.ID, err)
			}
		}
		h, _, err := action.Build(src, actionDeps)
		if err != nil {
			return nil, err
		}
		routes[src.ID] = h

		line := gpio.Line{Offset: src.Pin, ActiveLow: src.ActiveLow}
		if err := deps.Watcher.Watch(line, isr.New(q, src.ID)); err != nil {
			return nil, fmt.Errorf("watch source %d pin %d: %w", src.ID, src.Pin, err)
		}

		deps.Logger.Debug("source configured",
			"source", src.ID,
			"name", src.Name,
			"pin", src.Pin,
			"debounce", filter.Interval(src.ID))
		tracker.AddSource(status.Source{
			ID:     uint8(src.ID),
			Name:   src.Name,
			Pin:    src.Pin,
			Action: actionList(src.Actions),
		})
	}

	logger := deps.Logger
	d := &daemon{
		cfg:        cfg,
		queue:      q,
		tracker:    tracker,
		publisher:  deps.Publisher,
		mqttStatus: deps.MQTTStatus,
		logger:     logger,
		now:        deps.Now,
	}
	d.dispatcher = dispatch.New(dispatch.Config{
		Timeout: cfg.Timeout,
		Logger:  logger,
	}, q, filter, routes)
	return d, nil
}

func timeoutMs(d time.Duration) int64 {
	if d <= 0 {
		return -1
	}
	return d.Milliseconds()
}

// run publishes STARTUP, runs the dispatcher, monitor and HTTP server until
// a signal arrives or one of them fails, then publishes SHUTDOWN.
func (d *daemon) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	d.lastHeartbeat = d.now()
	d.publishSystem("STARTUP", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.dispatcher.Run(gctx)
	})
	g.Go(func() error {
		return d.monitor(gctx, tick)
	})
	if d.server != nil {
		g.Go(func() error {
			d.logger.Info("http server listening", "addr", d.cfg.HTTPAddr)
			if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return d.server.Shutdown(shutdownCtx)
		})
	}

	reason := ""
	select {
	case s := <-sig:
		reason = signalName(s)
		d.logger.Info("shutting down", "signal", reason)
	case <-gctx.Done():
		d.logger.Error("pipeline stopped unexpectedly")
	}

	cancel()
	d.queue.Close()
	err := g.Wait()

	d.sample()
	d.publishSystem("SHUTDOWN", reason)
	return err
}

// monitor samples the queue and dispatcher on every tick and publishes a
// heartbeat once per interval.
func (d *daemon) monitor(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			d.sample()
			d.checkHeartbeat()
		}
	}
}

func (d *daemon) sample() {
	depth, spaces, drops := d.queue.Len(), d.queue.Spaces(), d.queue.Drops()
	capacity := d.queue.Cap()
	d.tracker.UpdateQueue(depth, capacity, drops)
	d.tracker.UpdateDispatch(d.dispatcher.Stats())
	d.refreshMQTT()
	d.logger.Debug("queue sampled", "waiting", depth, "spaces", spaces)

	if drops > d.lastDrops {
		d.logger.Warn("event queue saturated", "dropped", drops-d.lastDrops, "total", drops, "capacity", capacity)
		d.lastDrops = drops
	}
}

func (d *daemon) checkHeartbeat() {
	if d.cfg.Heartbeat <= 0 {
		return
	}
	now := d.now()
	if now.Sub(d.lastHeartbeat) < d.cfg.Heartbeat {
		return
	}
	d.lastHeartbeat = now

	st := d.dispatcher.Stats()
	d.logger.Info("heartbeat",
		"received", st.Received,
		"dispatched", st.Dispatched,
		"debounced", st.Debounced,
		"drops", d.queue.Drops())
	d.publishSystem("HEARTBEAT", "")
}

func (d *daemon) refreshMQTT() {
	if d.mqttStatus == nil {
		return
	}
	d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
	d.tracker.SetMQTTBuffered(d.mqttStatus.Buffered())
}

func (d *daemon) publishSystem(name, reason string) {
	d.refreshMQTT()
	snap := d.tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      name,
		Reason:     reason,
		RawPayload: status.FormatStatusEvent(snap, name, reason),
		Retained:   name != "HEARTBEAT",
	}
	if err := d.publisher.PublishSystem(ev); err != nil {
		d.logger.Error("system event publish failed", "event", name, "error", err)
		return
	}
	d.logger.Debug("published system event", "event", name)
}
