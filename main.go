package main

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"itec-bot/booking"
	"itec-bot/config"
	"itec-bot/handlers"
	"itec-bot/scanner"
	"itec-bot/session"
	"itec-bot/storage"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := newLogger(cfg)
	defer logger.Sync()
	log := logger.Sugar()

	// The portal schedules everything in Israel's local time.
	if loc, err := time.LoadLocation("Asia/Jerusalem"); err != nil {
		log.Warnw("failed to load Asia/Jerusalem timezone, using system default", "err", err)
	} else {
		time.Local = loc
	}

	store := storage.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(ctx); err != nil {
		log.Fatalw("redis connection failed", "addr", cfg.RedisAddr, "err", err)
	}
	cancel()

	sm := session.New(store, cfg.PortalBaseURL, log)
	sc := scanner.New(sm, store, cfg.PortalBaseURL, log)
	bk := booking.New(sm, cfg.PortalBaseURL, cfg.Headless, log)

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalw("telegram authorization failed", "err", err)
	}
	log.Infow("bot authorized", "account", bot.Self.UserName)

	h := handlers.New(bot, sc, bk, cfg, log)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	log.Info("bot is running")
	for update := range updates {
		msg := update.Message
		if msg == nil {
			continue
		}
		if cfg.AllowedChatID != 0 && msg.Chat.ID != cfg.AllowedChatID {
			continue
		}

		switch msg.Command() {
		case "start", "help":
			h.HandleStart(msg)
		case "scan":
			go h.HandleScan(msg)
		case "durations":
			go h.HandleDurations(msg)
		case "book":
			go h.HandleBook(msg)
		case "history":
			go h.HandleHistory(msg)
		case "cancelrental":
			go h.HandleCancelRental(msg)
		case "clearcache":
			h.HandleClearCache(msg)
		default:
			bot.Send(tgbotapi.NewMessage(msg.Chat.ID, "Unknown command. Try /start"))
		}
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var zcfg zap.Config
	if cfg.PrettyLog {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
