package main

import (
	"context"
	"strings"
	"time"

	"locktracker/bets"
	"locktracker/config"
	"locktracker/conn"
	"locktracker/email"
	"locktracker/extension"
	"locktracker/ledger"
	"locktracker/logger"
	"locktracker/login"
	"locktracker/metrics"
	"locktracker/migrations"
	"locktracker/quota"
	"locktracker/subscriptions"
	"locktracker/users"
	"locktracker/web"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("locktracker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		log.Fatal("config", zap.Error(err))
	}

	// MySQL
	db, err := conn.NewMySQL(cfg.DB)
	if err != nil {
		log.Fatal("mysql", zap.Error(err))
	}
	defer db.Close()
	migrations.Init(db)
	if err := migrations.Migrate(); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	// Redis is optional; revoked sessions fall back to process memory.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	rdb, err := conn.ConnectRedis(ctx, cfg.RedisAddr)
	cancel()
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	var revoked login.Revoker = login.NewMemoryRevoker()
	if rdb != nil {
		defer rdb.Close()
		revoked = login.NewRedisRevoker(rdb)
	}

	// deps
	betRepo := bets.NewRepository(db)
	userRepo := users.NewRepository(db)
	subRepo := subscriptions.NewRepository(db)
	signer := login.NewSigner(cfg.SessionSecret, time.Duration(cfg.SessionHours)*time.Hour, revoked)
	mailer := email.NewMailer(cfg.SMTP, log)
	meter := quota.NewValidator(betRepo, subRepo, log)
	stripeSvc := subscriptions.NewStripeService(cfg.Stripe, cfg.AppURL, subRepo, log)
	if !stripeSvc.Enabled() {
		log.Warn("stripe not configured; upgrade and billing portal disabled")
	}
	if !cfg.SMTP.Enabled() {
		log.Warn("smtp not configured; account emails are skipped")
	}

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logger.Requests(log))
	r.SetHTMLTemplate(web.Templates())

	secure := strings.HasPrefix(cfg.AppURL, "https://")
	login.NewHandler(userRepo, signer, mailer, log, cfg.AppURL, secure).RegisterRoutes(r)
	ledger.NewHandler(betRepo, meter, signer, log, stripeSvc.Enabled()).RegisterRoutes(r)
	extension.NewHandler(betRepo, meter, signer, log).RegisterRoutes(r)
	subscriptions.NewHandler(stripeSvc, signer, log).RegisterRoutes(r)
	metrics.RegisterRoutes(r, metrics.Checks(db, rdb))

	log.Info("locktracker listening", zap.String("addr", ":"+cfg.Port), zap.String("env", cfg.Env))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("http", zap.Error(err))
	}
}
