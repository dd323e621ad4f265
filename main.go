package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	apicontrollers "github.com/parleychat/parley/internal/api/controllers"
	"github.com/parleychat/parley/internal/api/websocket"
	"github.com/parleychat/parley/internal/domain/services"
	"github.com/parleychat/parley/internal/impl/config"
	"github.com/parleychat/parley/internal/impl/database"
	"github.com/parleychat/parley/internal/impl/integrations"
	repositoriesJson "github.com/parleychat/parley/internal/impl/repositories/json"
	repositoriesMongo "github.com/parleychat/parley/internal/impl/repositories/mongo"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

var (
	version = "unknown" // This should be set during build with -ldflags="-X main.version=1.0.0"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Println(version)
		os.Exit(0)
	}

	addr := flag.String("addr", ":8080", "Listen address")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logConfig := zap.NewDevelopmentConfig()
	if *debug {
		logConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, err := logConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.InitConfig()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	db, err := database.NewMongoDB(cfg.MongoURI, "parley", logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer db.Disconnect(context.Background())

	messageRepo := repositoriesMongo.NewMongoMessageRepository(db.Collection("messages"))
	cacheRepo, err := repositoriesJson.NewJSONCacheRepository(cfg.DataDir)
	if err != nil {
		logger.Fatal("Failed to initialize message cache", zap.Error(err))
	}

	streamClient, err := integrations.NewStreamClient(cfg.APIBaseURL, cfg.APIKey, logger)
	if err != nil {
		logger.Fatal("Failed to initialize model stream client", zap.Error(err))
	}

	mergeService := services.NewMergeService(messageRepo, logger)
	reconcileService := services.NewReconcileService(messageRepo, cacheRepo, logger)
	groupService := services.NewGroupService(logger)
	chatService := services.NewChatService(messageRepo, cacheRepo, streamClient, mergeService, reconcileService, groupService, logger)

	hub := websocket.NewTurnHub(chatService, logger)
	go hub.Run()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	api := e.Group("/api")
	apicontrollers.NewTurnController(logger, chatService).RegisterRoutes(api)
	e.GET("/ws/turns", echo.WrapHandler(websocket.TurnsHandler(hub, logger)))

	logger.Info("Starting server", zap.String("addr", *addr))
	if err := e.Start(*addr); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
