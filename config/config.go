package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadEnv 读取 .env（不存在时忽略）
func LoadEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("load .env: %v", err)
	}
}

type Config struct {
	Port        string
	ServiceName string
	LogMode     string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisAddr string
	RedisPwd  string
	WebOrigin string

	// 卖家提议的取货时间必须晚于 now + PickupGrace
	PickupGrace          time.Duration
	RequireVerifiedBuyer bool

	KafkaBrokers []string
	KafkaTopic   string
}

func Load() Config {
	return Config{
		Port:        getenv("PORT", "3001"),
		ServiceName: getenv("SERVICE_NAME", "marketplace-api"),
		LogMode:     getenv("LOG_MODE", "dev"),

		DBHost:     getenv("DB_HOST", "127.0.0.1"),
		DBUser:     getenv("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getenv("DB_NAME", "marketplace"),
		DBPort:     getenv("DB_PORT", "5432"),

		RedisAddr: getenv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPwd:  os.Getenv("REDIS_PASSWORD"),
		WebOrigin: getenv("WEB_ORIGIN", "http://localhost:5173"),

		PickupGrace:          time.Duration(getInt("PICKUP_GRACE_MINUTES", 30)) * time.Minute,
		RequireVerifiedBuyer: getBool("REQUIRE_VERIFIED_BUYER", false),

		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenv("KAFKA_TOPIC", "marketplace.transaction.transitioned"),
	}
}

// Postgres DSN，由 DB_* 拼出
func (c Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=disable"
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getBool(k string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
