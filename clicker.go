// Package clicker serves a single-page htmx click counter with Fiber.
// Every click increments a process-wide counter and swaps the new value into
// the page; open pages can follow the counter live over Server-Sent Events.
package clicker

//go:generate go run ./cmd/clicker build

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/aydenstechdungeon/clicker/counter"
	"github.com/aydenstechdungeon/clicker/fiber"
	"github.com/aydenstechdungeon/clicker/logging"
	"github.com/aydenstechdungeon/clicker/store"
	"github.com/aydenstechdungeon/clicker/store/redis"
	"github.com/aydenstechdungeon/clicker/views"
	"github.com/goccy/go-json"
	fiberpkg "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/sirupsen/logrus"
)

// Version is the current version of clicker.
const Version = "0.1.0"

// App is the main clicker application.
type App struct {
	// Config is the application configuration.
	Config Config
	// Fiber is the underlying Fiber app.
	Fiber *fiberpkg.App
	// Counter is the shared click counter.
	Counter *counter.Counter
	// Broker streams counter changes to open pages. Nil when live updates are off.
	Broker *fiber.SSEBroker
	// PubSub carries counter events from the increment handler to Broker.
	PubSub store.PubSub
	// Logger is the application logger.
	Logger *logrus.Logger

	origin string

	// relayMu orders relayed events; relayed holds the highest count
	// broadcast per origin.
	relayMu sync.Mutex
	relayed map[string]uint64
}

// New creates a new clicker application. It fails when the logger or the
// pub/sub backend cannot be set up.
//
// Only empty string fields fall back to their defaults. Boolean switches such
// as LiveUpdates and Compression are taken as given, so callers wanting the
// defaults should start from DefaultConfig.
func New(config Config) (*App, error) {
	d := DefaultConfig()
	if config.Addr == "" {
		config.Addr = d.Addr
	}
	if config.AppName == "" {
		config.AppName = d.AppName
	}
	if config.StaticDir == "" {
		config.StaticDir = d.StaticDir
	}
	if config.StaticPrefix == "" {
		config.StaticPrefix = d.StaticPrefix
	}
	if config.Stylesheet == "" {
		config.Stylesheet = config.StaticPrefix + "/stylesheet.css"
	}
	if config.ClickPath == "" {
		config.ClickPath = d.ClickPath
	}
	if config.EventsPath == "" {
		config.EventsPath = d.EventsPath
	}
	if config.PubSub.Backend == "" {
		config.PubSub.Backend = d.PubSub.Backend
	}
	if config.Log.Level == "" {
		config.Log.Level = d.Log.Level
	}

	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(config.Log.Level, config.Log.Format)
		if err != nil {
			return nil, err
		}
	}

	app := &App{
		Config:  config,
		Counter: counter.New(),
		Logger:  logger,
		origin:  instanceID(),
		relayed: make(map[string]uint64),
	}

	app.Fiber = fiberpkg.New(fiberpkg.Config{
		AppName:               config.AppName,
		DisableStartupMessage: !config.DevMode,
		EnablePrintRoutes:     config.DevMode,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler: fiber.ErrorHandler(fiber.ErrorHandlerConfig{
			DevMode:    config.DevMode,
			Stylesheet: config.Stylesheet,
			OnError:    app.logError,
		}),
	})

	if config.LiveUpdates {
		if err := app.setupLiveUpdates(); err != nil {
			return nil, err
		}
	}

	app.setupMiddleware()
	app.setupRoutes()
	return app, nil
}

// instanceID names this process in published counter events.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "clicker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

// setupLiveUpdates connects the pub/sub backend and relays counter events
// into the SSE broker.
func (a *App) setupLiveUpdates() error {
	ps := a.Config.Broker
	if ps == nil {
		switch a.Config.PubSub.Backend {
		case BackendMemory:
			ps = store.NewMemoryPubSub()
		case BackendRedis:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client, err := redis.Dial(ctx, a.Config.PubSub.RedisAddr)
			if err != nil {
				return err
			}
			ps = client
		default:
			return fmt.Errorf("unknown pubsub backend %q", a.Config.PubSub.Backend)
		}
	}

	a.PubSub = ps
	a.Broker = fiber.NewSSEBroker(nil)
	if err := ps.Subscribe(context.Background(), counter.Channel, a.relayCounterEvent); err != nil {
		_ = ps.Close()
		return fmt.Errorf("subscribe to %s: %w", counter.Channel, err)
	}
	return nil
}

// relayCounterEvent renders the fragment for a published count and pushes it
// to every open page. Publishers race, so an event whose count is not above
// the last one relayed from the same origin is dropped; pages never step back
// to an older count.
func (a *App) relayCounterEvent(message []byte) {
	event, err := counter.DecodeEvent(message)
	if err != nil {
		a.Logger.WithError(err).Warn("dropping counter event")
		return
	}
	html, err := views.Render(context.Background(), views.Counter(event.Count))
	if err != nil {
		a.Logger.WithError(err).Error("render counter fragment")
		return
	}

	a.relayMu.Lock()
	if event.Count <= a.relayed[event.Origin] {
		a.relayMu.Unlock()
		a.Logger.WithFields(logrus.Fields{
			"count":  event.Count,
			"origin": event.Origin,
		}).Debug("stale counter event dropped")
		return
	}
	a.relayed[event.Origin] = event.Count
	sent := a.Broker.Broadcast(fiber.SSEEvent{
		ID:    strconv.FormatUint(event.Count, 10),
		Event: views.CounterEvent,
		Data:  html,
	})
	a.relayMu.Unlock()

	a.Logger.WithFields(logrus.Fields{
		"count":   event.Count,
		"origin":  event.Origin,
		"clients": sent,
	}).Debug("counter event relayed")
}

// setupMiddleware configures the middleware stack.
func (a *App) setupMiddleware() {
	a.Fiber.Use(fiber.RecoveryMiddleware(a.Config.DevMode))
	a.Fiber.Use(fiber.RequestLoggerMiddleware(a.Logger))
	if a.Config.Compression {
		a.Fiber.Use(fiber.BrotliGzipMiddleware(fiber.DefaultCompressionConfig()))
	}
	a.Fiber.Use(fiber.SecurityHeadersMiddleware())
	a.Fiber.Use(fiber.HTMXMiddleware())
}

// setupRoutes configures the routes.
func (a *App) setupRoutes() {
	a.Fiber.Get("/", a.handleIndex)
	a.Fiber.Post(a.Config.ClickPath, a.handleClicked)

	if a.Broker != nil {
		a.Fiber.Get(a.Config.EventsPath, a.Broker.Handler())
		a.Fiber.Get(a.Config.EventsPath+"/stats", a.Broker.StatsHandler())
	}

	// The stylesheet may be generated after startup, so the directory is
	// mounted even when it does not exist yet.
	a.Fiber.Use(a.Config.StaticPrefix, filesystem.New(filesystem.Config{
		Root:   http.Dir(a.Config.StaticDir),
		MaxAge: a.staticMaxAge(),
	}))

	a.Fiber.Get("/favicon.ico", func(c *fiberpkg.Ctx) error {
		favicon := filepath.Join(a.Config.StaticDir, "favicon.ico")
		if _, err := os.Stat(favicon); err == nil {
			return c.SendFile(favicon)
		}
		return c.SendStatus(fiberpkg.StatusNoContent)
	})

	a.Fiber.Use(fiber.NotFoundHandler())
}

func (a *App) staticMaxAge() int {
	if a.Config.DevMode {
		return 0
	}
	return 3600
}

// handleIndex renders the full page with the current count.
func (a *App) handleIndex(c *fiberpkg.Ctx) error {
	props := views.PageProps{
		Title:      a.Config.AppName,
		Count:      a.Count(),
		Stylesheet: a.Config.Stylesheet,
		ClickPath:  a.Config.ClickPath,
	}
	if a.Broker != nil {
		props.EventsPath = a.Config.EventsPath
	}
	c.Type("html", "utf-8")
	return views.Page(props).Render(c.UserContext(), c.Response().BodyWriter())
}

// handleClicked increments the counter and returns the counter fragment
// carrying the value this increment produced.
func (a *App) handleClicked(c *fiberpkg.Ctx) error {
	count := a.Increment(c.UserContext())
	c.Type("html", "utf-8")
	return views.Counter(count).Render(c.UserContext(), c.Response().BodyWriter())
}

// Count returns the current counter value.
func (a *App) Count() uint64 {
	return a.Counter.Load()
}

// Increment adds one click, announces it to live-update subscribers and
// returns the value this click produced.
func (a *App) Increment(ctx context.Context) uint64 {
	count := a.Counter.Increment()
	a.publish(ctx, count)
	return count
}

// publish announces a new count. Failures are logged; the click still counts.
func (a *App) publish(ctx context.Context, count uint64) {
	if a.PubSub == nil {
		return
	}
	data, err := counter.Event{Count: count, Origin: a.origin}.Encode()
	if err == nil {
		err = a.PubSub.Publish(ctx, counter.Channel, data)
	}
	if err != nil {
		a.Logger.WithError(err).WithField("count", count).Warn("publish counter event")
	}
}

func (a *App) logError(c *fiberpkg.Ctx, err *fiber.AppError) {
	entry := a.Logger.WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
		"code":   err.Code,
		"status": err.StatusCode,
	})
	if err.StatusCode >= fiberpkg.StatusInternalServerError {
		entry.Error(err.Message)
		return
	}
	entry.Debug(err.Message)
}

// Run starts the server on the configured address.
func (a *App) Run() error {
	a.Logger.WithFields(logrus.Fields{
		"addr":         a.Config.Addr,
		"dev":          a.Config.DevMode,
		"live_updates": a.Broker != nil,
	}).Info("clicker listening")
	return a.Fiber.Listen(a.Config.Addr)
}

// Listen serves on an existing listener.
func (a *App) Listen(ln net.Listener) error {
	a.Logger.WithField("addr", ln.Addr().String()).Info("clicker listening")
	return a.Fiber.Listener(ln)
}

// Shutdown gracefully shuts down the application. Event streams are closed
// first so open connections do not hold up the server shutdown.
func (a *App) Shutdown(ctx context.Context) error {
	if a.Broker != nil {
		a.Broker.Close()
	}
	err := a.Fiber.ShutdownWithContext(ctx)
	if a.PubSub != nil {
		if cerr := a.PubSub.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
