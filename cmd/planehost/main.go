package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/profile"
	"github.com/planetilt/host/internal/asset"
	"github.com/planetilt/host/internal/config"
	"github.com/planetilt/host/internal/core/event"
	coresys "github.com/planetilt/host/internal/core/system"
	"github.com/planetilt/host/internal/data"
	"github.com/planetilt/host/internal/entity"
	"github.com/planetilt/host/internal/handler"
	gonet "github.com/planetilt/host/internal/net"
	"github.com/planetilt/host/internal/net/packet"
	"github.com/planetilt/host/internal/persist"
	"github.com/planetilt/host/internal/physics"
	"github.com/planetilt/host/internal/render"
	"github.com/planetilt/host/internal/scripting"
	"github.com/planetilt/host/internal/system"
	"github.com/planetilt/host/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName, url string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             plane tilt host               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mserver:\033[0m %s \033[90m(%s)\033[0m\n\n", serverName, url)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printSkip(msg string) {
	fmt.Printf("  \033[90m–\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	switch os.Getenv("PLANEHOST_PROFILE") {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("PLANEHOST_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.PublicURL)

	// 3. Database (optional)
	printSection("database")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var eventRepo *persist.PlaneEventRepo
	db, err := persist.Open(ctx, cfg.Database, log)
	switch {
	case errors.Is(err, persist.ErrDisabled):
		printSkip("no dsn, events are not recorded")
	case err != nil:
		return fmt.Errorf("database: %w", err)
	default:
		defer db.Close()
		eventRepo = persist.NewPlaneEventRepo(db)
		printOK("PostgreSQL connected, migrations applied")
		if cfg.Persist.Retention > 0 {
			purged, err := eventRepo.PurgeBefore(ctx, time.Now().Add(-cfg.Persist.Retention))
			if err != nil {
				return fmt.Errorf("purge old events: %w", err)
			}
			printStat("events purged", int(purged))
		}
	}
	fmt.Println()

	// 4. Data and scripts
	printSection("data")
	models, err := data.LoadModelTable(cfg.Assets.Manifest)
	if err != nil {
		return fmt.Errorf("model manifest: %w", err)
	}
	printStat("models", models.Count())
	if models.Get(cfg.Assets.PlaneModel) == nil {
		log.Warn("plane model not in manifest, using placeholder box", zap.String("model", cfg.Assets.PlaneModel))
	}

	luaEngine, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer luaEngine.Close()
	if luaEngine.Has("map_motion") {
		printOK("lua map_motion loaded")
	} else {
		printSkip("no lua map_motion, using built-in mapping")
	}
	fmt.Println()

	// 5. Simulation
	g := cfg.Physics.Gravity
	physWorld := physics.NewWorld(mgl64.Vec3{g[0], g[1], g[2]})
	scene := render.NewScene()
	assets := asset.NewLibrary(os.DirFS(cfg.Assets.Root))
	sim := entity.NewSimulation(physWorld, scene, assets, log)

	worldState := world.NewState(
		world.Viewport{Width: cfg.Display.Width, Height: cfg.Display.Height},
		world.Field{Width: cfg.Field.Width, Height: cfg.Field.Height, Scale: cfg.Field.MotionScale},
	)
	bus := event.NewBus()
	event.Subscribe(bus, func(ev event.PlaneJoined) {
		log.Debug("event: plane joined", zap.Uint64("player", ev.PlayerID), zap.String("name", ev.Name))
	})

	loadCtx, stopLoads := context.WithCancel(context.Background())
	defer stopLoads()

	// 6. Handlers
	pktReg := packet.NewRegistry(log)
	deps := &handler.Deps{
		Config:    cfg,
		Log:       log,
		World:     worldState,
		Sim:       sim,
		Sessions:  gonet.NewSessionStore(),
		Scripting: luaEngine,
		Models:    models,
		Bus:       bus,
		LoadCtx:   loadCtx,
	}
	handler.RegisterAll(pktReg, deps)

	// 7. Create network server
	netServer, err := gonet.NewServer(gonet.ServerOptions{
		BindAddress:    cfg.Network.BindAddress,
		AllowedOrigins: cfg.Network.AllowedOrigins,
		ControllerURL:  cfg.Server.PublicURL,
		DisplayKey:     gonet.NewDisplayKey(cfg.Display.KeyHash),
		Session: gonet.SessionOptions{
			InQueueSize:  cfg.Network.InQueueSize,
			OutQueueSize: cfg.Network.OutQueueSize,
			MsgPerSec:    messagesPerSecond(cfg.RateLimit),
			WriteTimeout: cfg.Network.WriteTimeout,
			ReadTimeout:  cfg.Network.ReadTimeout,
		},
	}, log)
	if err != nil {
		return fmt.Errorf("net server: %w", err)
	}
	netServer.Handle("/stats", statsHandler(eventRepo, cfg.Server.StartTime, log))
	go netServer.AcceptLoop()

	// 8. Create systems and register with runner
	clock := &system.Clock{}
	persistSys := system.NewPersistenceSystem(bus, eventSink(eventRepo), cfg.Persist.FlushEvery, cfg.Persist.BatchSize, log)

	runner := coresys.NewRunner()
	runner.Register(system.NewInputSystem(netServer, pktReg, deps, clock, cfg.Network.MaxMessagesPerTick, log))
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewAssetSystem(sim, log))
	runner.Register(system.NewPhysicsSystem(physWorld))
	runner.Register(system.NewEntitySystem(sim))
	runner.Register(system.NewOutputSystem(deps, clock, cfg.Network.SnapshotEvery))
	runner.Register(persistSys)
	runner.Register(system.NewCleanupSystem(sim))

	// 9. Start game loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	printSection("ready")
	printReady(fmt.Sprintf("listening on %s", netServer.Addr().String()))
	printReady(fmt.Sprintf("controllers: %s", cfg.Server.PublicURL))
	printReady(fmt.Sprintf("game loop running (tick: %s, systems: %d)", cfg.Network.TickRate, runner.Len()))
	fmt.Println()

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Network.TickRate)
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			stopLoads()
			persistSys.FlushAll()
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			if err := netServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("http shutdown", zap.Error(err))
			}
			cancelShutdown()
			log.Info("server stopped")
			return nil
		}
	}
}

func messagesPerSecond(cfg config.RateLimitConfig) int {
	if !cfg.Enabled {
		return 0
	}
	return cfg.MessagesPerSecond
}

// eventSink avoids handing the persistence system a typed nil.
func eventSink(repo *persist.PlaneEventRepo) system.EventSink {
	if repo == nil {
		return nil
	}
	return repo
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
