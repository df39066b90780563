package app

import (
	"context"
	"time"

	"Gin_postgres_redis_marketplace/config"
	"Gin_postgres_redis_marketplace/db"
	"Gin_postgres_redis_marketplace/events"
	"Gin_postgres_redis_marketplace/gateway"
	"Gin_postgres_redis_marketplace/logger"
	"Gin_postgres_redis_marketplace/observability"
	"Gin_postgres_redis_marketplace/session"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"
)

// 简化别名，便于 handlers 调用
type Ctx = gin.Context
type H = gin.H

// App 聚合各依赖
type App struct {
	Router  *gin.Engine
	DB      *gorm.DB
	RDB     *redis.Client
	Log     *logger.Logger
	Config  config.Config
	Repo    *db.Repo
	Gateway *gateway.Gateway

	Sessions SessionStore

	producer     *events.Producer
	otelShutdown func(context.Context) error
}

func MustNew(cfg config.Config, log *logger.Logger) *App {
	otelShutdown := observability.InitOTel(context.Background(), log, cfg.ServiceName)

	// --- DB: Postgres ---
	dbConn, err := db.ConnectDB(cfg.DSN())
	if err != nil {
		log.Fatal("postgres init failed", "error", err)
	}
	repo := db.NewRepo(dbConn, log)

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPwd, DB: 0})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis init failed", "addr", cfg.RedisAddr, "error", err)
	}

	// --- Kafka：未配置 broker 时不发事件 ---
	var pub events.Publisher = events.Nop{}
	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, 1024, log)
		producer.Start()
		pub = producer
	} else {
		log.Warn("KAFKA_BROKERS empty, transition events disabled")
	}

	gw := gateway.New(repo, pub, log, gateway.Options{
		PickupGrace:          cfg.PickupGrace,
		RequireVerifiedBuyer: cfg.RequireVerifiedBuyer,
		ServiceName:          cfg.ServiceName,
	})

	// --- Gin ---
	if cfg.LogMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))
	if otelShutdown != nil {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	useCORS(r, cfg.WebOrigin)

	return &App{
		Router: r, DB: dbConn, RDB: rdb, Log: log, Config: cfg,
		Repo: repo, Gateway: gw,
		Sessions:     session.NewAppSessionStore(rdb),
		producer:     producer,
		otelShutdown: otelShutdown,
	}
}

// Close 先排空事件再断开连接
func (a *App) Close(ctx context.Context) {
	if a.producer != nil {
		a.producer.Close()
		a.producer.WaitClosed()
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
	}
	if a.RDB != nil {
		_ = a.RDB.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
