package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all configuration
type Config struct {
	MySQL         MySQLConfig
	Redis         RedisConfig
	JWT           JWTConfig
	MQTT          MQTTConfig
	Simulator     SimulatorConfig
	InsightWorker InsightWorkerConfig
	Migrate       bool
	HTTPAddr      string
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	DSN string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string
	ExpireMinutes int
	Issuer        string
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	BrokerURL            string
	Username             string
	Password             string
	ClientID             string
	ConnectTimeoutSec    int
	ReconnectMaxAttempts int
	ReconnectDelaySec    int
}

// SimulatorConfig holds robot simulator configuration
type SimulatorConfig struct {
	RobotID         string
	RobotName       string
	HomeLocation    string
	TickIntervalSec int
	TaskDurationSec int
	RandomTasks     bool
}

// InsightWorkerConfig holds insight worker configuration
type InsightWorkerConfig struct {
	Enabled     bool
	IntervalSec int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getEnv("MYSQL_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:        os.Getenv("JWT_SECRET"),
			ExpireMinutes: getEnvInt("JWT_EXPIRE_MINUTES", 1440),
			Issuer:        getEnv("JWT_ISSUER", "palboti"),
		},
		MQTT: MQTTConfig{
			BrokerURL:            getEnv("MQTT_BROKER_URL", ""),
			Username:             getEnv("MQTT_USERNAME", ""),
			Password:             getEnv("MQTT_PASSWORD", ""),
			ClientID:             getEnv("MQTT_CLIENT_ID", "palboti-server"),
			ConnectTimeoutSec:    getEnvInt("MQTT_CONNECT_TIMEOUT_SEC", 10),
			ReconnectMaxAttempts: getEnvInt("MQTT_RECONNECT_MAX_ATTEMPTS", 10),
			ReconnectDelaySec:    getEnvInt("MQTT_RECONNECT_DELAY_SEC", 5),
		},
		Simulator: SimulatorConfig{
			RobotID:         getEnv("ROBOT_ID", "PB-001"),
			RobotName:       getEnv("ROBOT_NAME", "PalBot 1"),
			HomeLocation:    getEnv("ROBOT_HOME_LOCATION", "A1"),
			TickIntervalSec: getEnvInt("SIM_TICK_INTERVAL_SEC", 5),
			TaskDurationSec: getEnvInt("SIM_TASK_DURATION_SEC", 30),
			RandomTasks:     getEnv("SIM_RANDOM_TASKS", "0") == "1",
		},
		InsightWorker: InsightWorkerConfig{
			Enabled:     getEnv("INSIGHT_WORKER_ENABLED", "1") == "1",
			IntervalSec: getEnvInt("INSIGHT_WORKER_INTERVAL_SEC", 300),
		},
		Migrate:  getEnv("MIGRATE", "0") == "1",
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
	}

	// Validate required fields
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// LoadFromINI loads configuration from INI file with environment variable override
func LoadFromINI(iniPath string) (*Config, error) {
	// Load INI file
	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	// Helper function: get value with priority: ENV > INI > default
	getValue := func(envKey, iniSection, iniKey, defaultValue string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		if value := cfgFile.Section(iniSection).Key(iniKey).String(); value != "" {
			return value
		}
		return defaultValue
	}

	getValueInt := func(envKey, iniSection, iniKey string, defaultValue int) int {
		if value := os.Getenv(envKey); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Int(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	getValueBool := func(envKey, iniSection, iniKey string, defaultValue bool) bool {
		if value := os.Getenv(envKey); value != "" {
			return value == "1" || value == "true"
		}
		if value, err := cfgFile.Section(iniSection).Key(iniKey).Bool(); err == nil {
			return value
		}
		return defaultValue
	}

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getValue("MYSQL_DSN", "mysql", "dsn", ""),
		},
		Redis: RedisConfig{
			Addr:     getValue("REDIS_ADDR", "redis", "addr", "localhost:6379"),
			Password: getValue("REDIS_PASS", "redis", "pass", ""),
			DB:       getValueInt("REDIS_DB", "redis", "db", 0),
		},
		JWT: JWTConfig{
			Secret:        getValue("JWT_SECRET", "jwt", "secret", ""),
			ExpireMinutes: getValueInt("JWT_EXPIRE_MINUTES", "jwt", "expire_minutes", 1440),
			Issuer:        getValue("JWT_ISSUER", "jwt", "issuer", "palboti"),
		},
		MQTT: MQTTConfig{
			BrokerURL:            getValue("MQTT_BROKER_URL", "mqtt", "broker_url", ""),
			Username:             getValue("MQTT_USERNAME", "mqtt", "username", ""),
			Password:             getValue("MQTT_PASSWORD", "mqtt", "password", ""),
			ClientID:             getValue("MQTT_CLIENT_ID", "mqtt", "client_id", "palboti-server"),
			ConnectTimeoutSec:    getValueInt("MQTT_CONNECT_TIMEOUT_SEC", "mqtt", "connect_timeout_sec", 10),
			ReconnectMaxAttempts: getValueInt("MQTT_RECONNECT_MAX_ATTEMPTS", "mqtt", "reconnect_max_attempts", 10),
			ReconnectDelaySec:    getValueInt("MQTT_RECONNECT_DELAY_SEC", "mqtt", "reconnect_delay_sec", 5),
		},
		Simulator: SimulatorConfig{
			RobotID:         getValue("ROBOT_ID", "simulator", "robot_id", "PB-001"),
			RobotName:       getValue("ROBOT_NAME", "simulator", "robot_name", "PalBot 1"),
			HomeLocation:    getValue("ROBOT_HOME_LOCATION", "simulator", "home_location", "A1"),
			TickIntervalSec: getValueInt("SIM_TICK_INTERVAL_SEC", "simulator", "tick_interval_sec", 5),
			TaskDurationSec: getValueInt("SIM_TASK_DURATION_SEC", "simulator", "task_duration_sec", 30),
			RandomTasks:     getValueBool("SIM_RANDOM_TASKS", "simulator", "random_tasks", false),
		},
		InsightWorker: InsightWorkerConfig{
			Enabled:     getValueBool("INSIGHT_WORKER_ENABLED", "insight_worker", "enabled", true),
			IntervalSec: getValueInt("INSIGHT_WORKER_INTERVAL_SEC", "insight_worker", "interval_sec", 300),
		},
		Migrate:  getValueBool("MIGRATE", "app", "migrate", false),
		HTTPAddr: getValue("HTTP_ADDR", "http", "addr", ":8080"),
	}

	// Validate required fields
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}
