package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	v1 "github.com/iayvob/palboti-backend/api/v1"
	"github.com/iayvob/palboti-backend/internal/auth"
	"github.com/iayvob/palboti-backend/internal/bridge"
	"github.com/iayvob/palboti-backend/internal/cache"
	"github.com/iayvob/palboti-backend/internal/config"
	"github.com/iayvob/palboti-backend/internal/db"
	"github.com/iayvob/palboti-backend/internal/dispatch"
	"github.com/iayvob/palboti-backend/internal/insight"
	"github.com/iayvob/palboti-backend/internal/model"
	"github.com/iayvob/palboti-backend/internal/mqtt"
	"github.com/iayvob/palboti-backend/internal/ws"
)

// redisCache adapts the cache package to the bridge's Cache interface
type redisCache struct{}

func (redisCache) SetRobotStatus(ctx context.Context, robot *model.Robot) error {
	return cache.SetRobotStatus(ctx, robot)
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("✓ Configuration loaded")

	auth.InitJWT(cfg.JWT.Secret)

	// 2. Initialize MySQL
	if err := db.InitMySQL(cfg.MySQL.DSN); err != nil {
		log.Fatalf("Failed to initialize MySQL: %v", err)
	}
	defer db.Close()

	if cfg.Migrate {
		if err := db.Migrate(db.GetDB()); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		log.Println("✓ Migrations applied")
	}

	// 3. Initialize Redis
	if err := cache.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Fatalf("Failed to initialize Redis: %v", err)
	}
	defer cache.Close()

	// 4. Connect to the MQTT broker
	channel := mqtt.NewClient(mqtt.Options{
		BrokerURL:      cfg.MQTT.BrokerURL,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ClientID:       cfg.MQTT.ClientID,
		ConnectTimeout: time.Duration(cfg.MQTT.ConnectTimeoutSec) * time.Second,
		ReconnectDelay: time.Duration(cfg.MQTT.ReconnectDelaySec) * time.Second,
		MaxReconnects:  cfg.MQTT.ReconnectMaxAttempts,
	})
	if err := channel.Connect(); err != nil {
		log.Fatalf("Failed to connect to MQTT broker: %v", err)
	}
	defer channel.Disconnect()
	log.Println("✓ Connected to MQTT broker")

	// 5. Socket.IO fan-out
	wsServer := ws.NewServer()
	go func() {
		if err := wsServer.Serve(); err != nil {
			log.Fatalf("[WebSocket] Server error: %v", err)
		}
	}()
	defer wsServer.Close()

	// 6. Bridge: robot topics -> MySQL + Redis + websocket rooms
	statusBridge := bridge.New(bridge.Config{
		Channel:     channel,
		Store:       bridge.NewGormStatusStore(db.GetDB()),
		Cache:       redisCache{},
		Broadcaster: wsServer,
	})
	if err := statusBridge.Start(); err != nil {
		log.Fatalf("Failed to start bridge: %v", err)
	}
	defer statusBridge.Stop()

	// 7. Task dispatcher
	dispatcher := dispatch.NewDispatcher(dispatch.NewGormTaskStore(db.GetDB()), channel, nil)

	// 8. Insight worker
	if cfg.InsightWorker.Enabled {
		worker := insight.NewWorker(&insight.Config{
			DB:          db.GetDB(),
			Logger:      logrus.NewEntry(logrus.StandardLogger()),
			IntervalSec: cfg.InsightWorker.IntervalSec,
		})
		worker.Start()
		defer worker.Stop()
	}

	// 9. HTTP routes
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	v1.SetupRouter(r, db.GetDB(), cfg, dispatcher)
	r.Any("/socket.io/*any", gin.WrapH(wsServer.WrapWithAuth()))

	log.Printf("✓ Server starting on %s", cfg.HTTPAddr)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- r.Run(cfg.HTTPAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-srvErr:
		log.Fatalf("Failed to start server: %v", err)
	case sig := <-quit:
		log.Printf("Received %s, shutting down", sig)
	}
}
