package bootstrap

import (
	"context"
	"log"
	"os"
	"strings"

	"narrative-engine-be/internal/config"
	"narrative-engine-be/internal/controller"
	"narrative-engine-be/internal/handler"
	"narrative-engine-be/internal/pkg/logger"
	"narrative-engine-be/internal/pkg/serverutils"
	"narrative-engine-be/internal/repository/cache"
	"narrative-engine-be/internal/repository/implementation"
	"narrative-engine-be/internal/repository/memory"
	"narrative-engine-be/internal/repository/unitofwork"
	"narrative-engine-be/internal/service"
	"narrative-engine-be/internal/websocket"
	"narrative-engine-be/pkg/engine/checkpoint"
	"narrative-engine-be/pkg/engine/collaborator"
	"narrative-engine-be/pkg/engine/pipeline"
	"narrative-engine-be/pkg/engine/turn"
	"narrative-engine-be/pkg/events"
	"narrative-engine-be/pkg/llm/factory"
	pktNats "narrative-engine-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	SessionController    controller.ISessionController
	TurnController       controller.ITurnController
	CheckpointController controller.ICheckpointController

	// WebSockets
	SessionStreamHandler *handler.SessionStreamHandler
	WebSocketHub         *websocket.Hub

	// Background services (run by main.go)
	ProgressionService service.IProgressionService
	SessionSyncService *service.SessionSyncService

	TurnManager *turn.Manager
	Logger      *logger.ZapLogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	instanceID := instanceName()

	c := &Container{Logger: sysLogger}

	// 2. Event bus (in-process) plus NATS for other instances
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	bus := events.NewBus(pubSub)
	c.closers = append(c.closers, func() { _ = bus.Close() })

	publisher := events.Fanout{bus}
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		publisher = append(publisher, natsPub)
		c.closers = append(c.closers, natsPub.Close)
	}

	var eventSub service.EventSubscriber
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	} else {
		eventSub = natsSub
		c.closers = append(c.closers, natsSub.Close)
	}

	// 3. Redis for the state mirror and the websocket relay
	rdb := newRedis(cfg.App.RedisURL)
	if rdb != nil {
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}

	// 4. LLM collaborators
	provider, err := factory.NewLLMProvider(cfg.Ai.LLMProvider, cfg.Ai.LLMModel, llmBaseURL(cfg.Ai), cfg.Ai.LLMApiKey)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)
	llmCollaborator := collaborator.NewLLM(provider, cfg.Ai.ExtractionAttempts, sysLogger)

	// 5. Engine
	checkpoints := checkpoint.NewStore(implementation.NewCheckpointRepository(db), cfg.Engine.AutoCheckpointKeep, sysLogger)
	narrativePipeline := pipeline.NewDefault(pipeline.Collaborators{
		Intent:    llmCollaborator,
		Context:   llmCollaborator,
		Actions:   llmCollaborator,
		Reactions: llmCollaborator,
		Location:  llmCollaborator,
		Narrative: llmCollaborator,
	}, checkpoints, sysLogger)
	turnManager := turn.NewManager(implementation.NewTurnRepository(db), narrativePipeline, cfg.Engine.TurnStaleAfter, sysLogger)
	c.TurnManager = turnManager

	registry := memory.NewSessionRegistry(cfg.Engine.SessionIdleTTL, sysLogger)
	mirror := cache.NewStateMirror(rdb, cache.DefaultTTL)

	// 6. Services
	locks := service.NewSessionLocks()
	sessionService := service.NewSessionService(uowFactory, registry, mirror, checkpoints, turnManager, locks, publisher, cfg.Engine, sysLogger)
	turnService := service.NewTurnService(sessionService, turnManager, checkpoints, locks, publisher, cfg.Engine.MaxChainedSimulatedTurns, sysLogger)
	checkpointService := service.NewCheckpointService(sessionService, checkpoints, turnManager, locks, publisher, sysLogger)

	c.ProgressionService = service.NewProgressionService(bus, registry, turnService, cfg.Engine.ProgressionInterval, cfg.Engine.ProgressionTension, sysLogger)
	c.SessionSyncService = service.NewSessionSyncService(eventSub, sessionService, instanceID, sysLogger)

	// 7. WebSocket hub
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")
	c.WebSocketHub = websocket.NewHub(rdb, wsLogger)

	turnManager.AddListener(turnService)
	turnManager.AddListener(c.WebSocketHub)

	// 8. Controllers
	auth := serverutils.JwtMiddleware(cfg.App.JwtSecret, cfg.App.AuthRequired)
	c.SessionController = controller.NewSessionController(sessionService, auth)
	c.TurnController = controller.NewTurnController(turnService, auth)
	c.CheckpointController = controller.NewCheckpointController(checkpointService, auth)
	c.SessionStreamHandler = handler.NewSessionStreamHandler(sessionService, c.WebSocketHub, auth, wsLogger)

	return c
}

// Close releases broker and cache connections
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}

func newRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v (state mirror and relay disabled)", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

func llmBaseURL(cfg config.AIConfig) string {
	if cfg.LLMProvider == factory.ProviderOllama {
		return cfg.OllamaBaseURL
	}
	return cfg.LLMBaseURL
}

// instanceName names this process's durable consumers
func instanceName() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return strings.NewReplacer(".", "-", "*", "-", ">", "-").Replace(host)
	}
	return uuid.NewString()
}
