package main

import (
	"context"
	"fmt"
	"log"
	"os"

	chatapp "shop_support_console/internal/chat/app"
	chatrepo "shop_support_console/internal/chat/repository"
	chatrouter "shop_support_console/internal/chat/router"
	crmapp "shop_support_console/internal/crm/app"
	crmrepo "shop_support_console/internal/crm/repository"
	crmrouter "shop_support_console/internal/crm/router"
	"shop_support_console/pkg/config"
	"shop_support_console/pkg/database"
	"shop_support_console/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ConsoleService, config.EnvConfig.ConsoleServiceLogPath)
	cfg := config.LoadConfig[config.Console](config.EnvConfig.ConsoleService, config.EnvConfig.ConsoleServiceYAMLPath)

	ctx := context.Background()

	// redis fan-out between console nodes and dashboard sessions
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}
	pubsub := chatrepo.NewRedisPubSub(redisClient)

	// external chat backend, REST plus realtime socket
	backend := chatrepo.NewChatBackend(cfg.Upstream.BaseURL, cfg.Upstream.ServiceToken)
	socket := chatrepo.NewUpstreamSocket(
		cfg.Upstream.SocketURL,
		config.EnvConfig.ConsoleService,
		cfg.Upstream.DialTimeout,
		cfg.Upstream.RetryCount,
		cfg.Upstream.RetryInterval,
	)

	roster := chatapp.NewRosterUseCase(backend)
	typing := chatapp.NewTypingTracker()

	listener := chatapp.NewUpstreamListener(socket, roster, pubsub, typing)
	listener.Start()
	socket.Connect(ctx)

	// first fill before any dashboard connects, then keep reconciling
	if err := roster.Reconcile(ctx); err != nil {
		logger.Log.Errorf("initial roster load failed:", err)
	}
	roster.StartReconciler(ctx, cfg.Roster.ReconcileInterval)

	crmBackend := crmrepo.NewCRMBackend(cfg.CRM.BaseURL, cfg.Upstream.ServiceToken)

	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ConsoleServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file,
	}))

	chatrouter.RegisterRoutes(r,
		chatapp.NewConsoleWebsocketHandler(backend, socket, roster, pubsub, typing),
		chatapp.NewSupportHandler(backend, roster),
	)
	crmrouter.RegisterRoutes(r, crmapp.NewCRMHandler(crmBackend))

	port := ":" + cfg.Port
	log.Printf("Console Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
