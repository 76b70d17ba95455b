package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iayvob/palboti-backend/internal/config"
	"github.com/iayvob/palboti-backend/internal/mqtt"
	"github.com/iayvob/palboti-backend/internal/robot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("✓ Configuration loaded")

	channel := mqtt.NewClient(mqtt.Options{
		BrokerURL:      cfg.MQTT.BrokerURL,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ClientID:       "palboti-simulator-" + cfg.Simulator.RobotID,
		ConnectTimeout: time.Duration(cfg.MQTT.ConnectTimeoutSec) * time.Second,
		ReconnectDelay: time.Duration(cfg.MQTT.ReconnectDelaySec) * time.Second,
		MaxReconnects:  cfg.MQTT.ReconnectMaxAttempts,
	})
	if err := channel.Connect(); err != nil {
		log.Fatalf("Failed to connect to MQTT broker: %v", err)
	}
	defer channel.Disconnect()
	log.Println("✓ Connected to MQTT broker")

	machine := robot.NewMachine(robot.Config{
		ID:           cfg.Simulator.RobotID,
		Name:         cfg.Simulator.RobotName,
		Home:         cfg.Simulator.HomeLocation,
		TickInterval: time.Duration(cfg.Simulator.TickIntervalSec) * time.Second,
		TaskDuration: time.Duration(cfg.Simulator.TaskDurationSec) * time.Second,
	})

	sim := robot.NewSimulator(robot.SimulatorConfig{
		Machine:     machine,
		Channel:     channel,
		RandomTasks: cfg.Simulator.RandomTasks,
	})
	if err := sim.Start(); err != nil {
		log.Fatalf("Failed to start simulator: %v", err)
	}
	defer sim.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Printf("Received %s, shutting down", sig)
}
