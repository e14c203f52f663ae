// Package daemon wires the webhook server, its optional backends and the
// echo bot into one long-running process.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/harun/lineapi/internal/audit"
	"github.com/harun/lineapi/internal/config"
	"github.com/harun/lineapi/internal/echobot"
	"github.com/harun/lineapi/internal/logger"
	"github.com/harun/lineapi/internal/metrics"
	"github.com/harun/lineapi/internal/tracing"
	"github.com/harun/lineapi/pkg/event"
	"github.com/harun/lineapi/pkg/handoff"
	"github.com/harun/lineapi/pkg/messaging"
	"github.com/harun/lineapi/pkg/relay"
	"github.com/harun/lineapi/pkg/webhook"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Options holds process-level settings that are not part of the config file
type Options struct {
	// PIDFile is written on Start and removed on Stop. Empty disables it.
	PIDFile string
	// Replier overrides the Messaging API client used by the echo bot
	Replier echobot.Replier
}

// Status describes a daemon
type Status struct {
	Running   bool          `json:"running"`
	StartTime time.Time     `json:"startTime,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
}

// Daemon is the lineapi webhook service
type Daemon struct {
	config  *config.Config
	logger  *logger.Logger
	options Options

	metrics    *metrics.Metrics
	audit      *audit.Logger
	dispatcher *webhook.Dispatcher
	server     *webhook.Server
	queue      *handoff.Queue
	client     *messaging.Client
	bot        *echobot.Bot
	redis      redis.UniversalClient
	nats       *nats.Conn
	lifecycle  *LifecycleManager

	errCh chan error

	startTime time.Time
	running   bool
	mu        sync.RWMutex

	tracingEnabled bool
}

// New builds every component from cfg without opening the listener
func New(cfg *config.Config, log *logger.Logger, options Options) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	d := &Daemon{
		config:  cfg,
		logger:  log,
		options: options,
		errCh:   make(chan error, 1),
	}
	d.lifecycle = NewLifecycleManager(options.PIDFile, log.GetZerolog())

	if cfg.Tracing.Enabled {
		err := tracing.InitOpenTelemetry(context.Background(), tracing.Config{
			ServiceName:  cfg.Tracing.ServiceName,
			OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
			OTLPInsecure: cfg.Tracing.OTLPInsecure,
			SampleRatio:  cfg.Tracing.SampleRatio,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			d.tracingEnabled = true
			log.Info().Str("endpoint", cfg.Tracing.OTLPEndpoint).Msg("Tracing initialized")
		}
	}

	if cfg.Metrics.Enabled {
		d.metrics = metrics.NewMetrics()
	}

	if cfg.Logging.AuditFile != "" {
		auditLog, err := audit.New(cfg.Logging.AuditFile)
		if err != nil {
			d.release()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		d.audit = auditLog
	}

	if err := d.initializeCoreModules(); err != nil {
		d.release()
		return nil, fmt.Errorf("failed to initialize core modules: %w", err)
	}
	if err := d.initializeServices(); err != nil {
		d.release()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return d, nil
}

// initializeCoreModules builds the dispatcher and its processed-event store
func (d *Daemon) initializeCoreModules() error {
	cfg := d.config
	zl := d.logger.GetZerolog()

	options := webhook.Options{
		ChannelSecret:        cfg.Line.ChannelSecret,
		VerifySignature:      cfg.Line.VerifySignature,
		TrackProcessedEvents: cfg.Line.TrackProcessedEvents,
		Logger:               zl,
	}
	var recorders []webhook.Recorder
	if d.metrics != nil {
		recorders = append(recorders, d.metrics)
	}
	if d.audit != nil {
		recorders = append(recorders, d.audit)
	}
	if len(recorders) > 0 {
		options.Recorder = webhook.CombineRecorders(recorders...)
	}

	if cfg.Line.TrackProcessedEvents {
		if cfg.Redis.Enabled {
			d.redis = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := d.redis.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
			}
			options.Store = webhook.NewRedisStore(d.redis, cfg.Redis.KeyPrefix, cfg.DedupTTL())
			daemonLogger := d.logger.Component("daemon")
			daemonLogger.Info().Str("addr", cfg.Redis.Addr).Msg("Processed events tracked in redis")
		} else {
			options.Store = webhook.NewMemoryStore(cfg.Line.DedupCapacity, cfg.DedupTTL())
		}
	}

	dispatcher, err := webhook.NewDispatcher(options)
	if err != nil {
		return err
	}
	d.dispatcher = dispatcher

	queueOptions := handoff.Options{
		Logger:    zl,
		WarnAfter: 5 * time.Second,
	}
	if d.metrics != nil {
		queueOptions.Recorder = d.metrics
	}
	d.queue = handoff.New(queueOptions)

	return nil
}

// initializeServices registers the handlers and builds the HTTP server
func (d *Daemon) initializeServices() error {
	cfg := d.config
	zl := d.logger.GetZerolog()

	if err := d.initializeBot(); err != nil {
		return err
	}

	if cfg.NATS.Enabled {
		nc, err := relay.Connect(cfg.NATS.URL, "lineapi", d.logger.Component("nats"))
		if err != nil {
			return err
		}
		d.nats = nc

		relayOptions := relay.Options{SubjectPrefix: cfg.NATS.SubjectPrefix, Logger: zl}
		if d.metrics != nil {
			relayOptions.Recorder = d.metrics
		}
		publisher, err := relay.NewPublisher(nc, relayOptions)
		if err != nil {
			return err
		}
		for _, kind := range event.Kinds {
			if err := d.dispatcher.RegisterHandler(kind, publisher); err != nil {
				return err
			}
		}
		daemonLogger := d.logger.Component("daemon")
		daemonLogger.Info().Str("url", cfg.NATS.URL).Str("prefix", cfg.NATS.SubjectPrefix).Msg("Relaying events to NATS")
	}

	serverOptions := webhook.ServerOptions{
		Host:               cfg.Webhook.Host,
		Port:               cfg.Webhook.Port,
		Path:               cfg.Webhook.Path,
		RateLimitPerMinute: cfg.Webhook.RateLimitPerMinute,
		MaxBodyBytes:       cfg.Webhook.MaxBodyBytes,
		ShutdownTimeout:    cfg.ShutdownTimeout(),
	}
	if d.metrics != nil {
		serverOptions.MetricsHandler = d.metrics.Handler()
		serverOptions.MetricsPath = cfg.Metrics.Path
	}

	server, err := webhook.NewServer(serverOptions, d.dispatcher, zl)
	if err != nil {
		return err
	}
	d.server = server

	return nil
}

// initializeBot registers the echo bot when replies can be sent
func (d *Daemon) initializeBot() error {
	cfg := d.config
	zl := d.logger.GetZerolog()

	replier := d.options.Replier
	if replier == nil {
		if cfg.Line.ChannelAccessToken == "" {
			daemonLogger := d.logger.Component("daemon")
			daemonLogger.Warn().Msg("No channel access token, echo bot disabled")
			return nil
		}
		clientOptions := messaging.Options{
			ChannelAccessToken: cfg.Line.ChannelAccessToken,
			APIBaseURL:         cfg.Line.APIBaseURL,
			DataAPIBaseURL:     cfg.Line.DataAPIBaseURL,
			Timeout:            cfg.APITimeout(),
			RetryCount:         cfg.Line.RetryCount,
			Logger:             zl,
		}
		if d.metrics != nil {
			clientOptions.Recorder = d.metrics
		}
		client, err := messaging.NewClient(clientOptions)
		if err != nil {
			return err
		}
		d.client = client
		replier = client
	}

	bot, err := echobot.New(replier, echobot.Options{Logger: zl})
	if err != nil {
		return err
	}
	d.bot = bot

	// Replies happen off the delivery path so the platform gets its 200
	// before the Messaging API is called
	return d.dispatcher.RegisterHandler(event.KindMessage, handoff.Async(d.queue, bot.Handler()))
}

// Start writes the PID file and starts serving in the background. Serve
// errors are reported by Wait.
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	log := d.logger.GetZerolog().With().Str("trace_id", tracing.NewTraceID()).Logger()
	log.Info().Msg("Starting lineapi daemon")

	if err := d.lifecycle.Start(); err != nil {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		return fmt.Errorf("failed to start lifecycle manager: %w", err)
	}

	go func() {
		if err := d.server.Start(); err != nil {
			d.errCh <- err
		}
	}()

	log.Info().
		Bool("echo_bot", d.bot != nil).
		Bool("redis", d.redis != nil).
		Bool("nats", d.nats != nil).
		Bool("metrics", d.metrics != nil).
		Int("handlers", d.dispatcher.HandlerCount()).
		Msg("Daemon started")

	return nil
}

// Stop shuts the server down, drains the hand-off queue and closes every
// backend connection
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	log := d.logger.GetZerolog().With().Str("trace_id", tracing.NewTraceID()).Logger()
	log.Info().Msg("Stopping lineapi daemon")

	if err := d.server.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop webhook server")
	}

	d.release()

	if err := d.lifecycle.Stop(); err != nil {
		log.Error().Err(err).Msg("Failed to stop lifecycle manager")
	}

	log.Info().Msg("Daemon stopped")
	return nil
}

// release drains the queue and closes backends. It is used both by Stop
// and when New fails halfway.
func (d *Daemon) release() {
	log := d.logger.GetZerolog()

	if d.queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), d.config.ShutdownTimeout())
		if err := d.queue.Close(ctx); err != nil {
			log.Error().Err(err).Msg("Hand-off queue did not drain in time")
		}
		cancel()
	}
	if d.nats != nil {
		if err := d.nats.Drain(); err != nil {
			log.Error().Err(err).Msg("Failed to drain NATS connection")
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close redis client")
		}
	}
	if d.tracingEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to flush traces")
		}
		cancel()
		d.tracingEnabled = false
	}
	if d.audit != nil {
		if err := d.audit.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close audit log")
		}
		d.audit = nil
	}
}

// Status returns the daemon status
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{Running: d.running}
	if d.running {
		status.StartTime = d.startTime
		status.Uptime = time.Since(d.startTime)
	}
	return status
}

// Wait blocks until SIGINT, SIGTERM or a serve error, then stops the daemon
func (d *Daemon) Wait() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var serveErr error
	select {
	case sig := <-sigChan:
		d.logger.Info().Str("signal", sig.String()).Msg("Received signal")
	case serveErr = <-d.errCh:
		d.logger.Error().Err(serveErr).Msg("Webhook server failed")
	}

	if err := d.Stop(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to stop daemon")
	}
	return serveErr
}

// Handler returns the HTTP routes served by the daemon
func (d *Daemon) Handler() http.Handler {
	return d.server.Handler()
}

// Dispatcher returns the webhook dispatcher, e.g. to register more handlers
// before Start
func (d *Daemon) Dispatcher() *webhook.Dispatcher {
	return d.dispatcher
}

// Queue returns the hand-off queue
func (d *Daemon) Queue() *handoff.Queue {
	return d.queue
}

// Bot returns the echo bot, or nil when it is disabled
func (d *Daemon) Bot() *echobot.Bot {
	return d.bot
}

// Logger returns the daemon's zerolog logger
func (d *Daemon) Logger() zerolog.Logger {
	return d.logger.GetZerolog()
}
