package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"clinical-dashboard/internal/agent"
	"clinical-dashboard/internal/audit"
	"clinical-dashboard/internal/config"
	"clinical-dashboard/internal/consultation"
	"clinical-dashboard/internal/dashboard"
	"clinical-dashboard/internal/messaging"
	"clinical-dashboard/internal/notify"
	"clinical-dashboard/internal/patient"
	"clinical-dashboard/internal/platform/middleware"
	"clinical-dashboard/internal/platform/telegram"
	"clinical-dashboard/internal/report"
)

type provider interface {
	consultation.Generator
	messaging.Responder
}

type app struct {
	router  http.Handler
	manager *dashboard.Manager
	journal  *audit.Journal
	telegram *notify.Telegram
	db       *sql.DB
	stopReap context.CancelFunc
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{}
	clock := clockwork.NewRealClock()

	// 1. Infrastructure
	sinks := notify.Fanout{notify.NewLog(logger)}
	if cfg.DatabaseURL != "" {
		db, err := connect(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("could not connect to database, notice journal disabled")
		} else {
			if err := audit.Migrate(cfg.MigrationsDir, cfg.DatabaseURL); err != nil {
				logger.Warn().Err(err).Msg("migrations not applied")
			} else {
				logger.Info().Msg("migrations applied")
			}
			a.db = db
			a.journal = audit.NewJournal(db, cfg.NoticeBuffer*10, logger)
			go a.journal.Run()
			sinks = append(sinks, a.journal)
		}
	}

	// 2. Clients
	var gen provider
	switch cfg.Provider {
	case "openai":
		gen = agent.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, cfg.AttendingName)
	default:
		gen = agent.NewSimulated(clock, cfg.Delays(), cfg.AttendingName)
	}

	var stt consultation.Transcriber
	if cfg.STTURL != "" {
		stt = agent.NewWhisperClient(cfg.STTURL, cfg.STTLanguage)
	}

	var share report.TelegramClient
	if cfg.ShareEnabled() {
		tg := telegram.NewClient(cfg.TelegramToken)
		share = tg
		a.telegram = notify.NewTelegram(tg, cfg.DoctorChatID, cfg.NoticeBuffer, logger)
		go a.telegram.Run()
		sinks = append(sinks, a.telegram)
	} else {
		logger.Info().Msg("telegram not configured, sharing disabled")
	}

	var fonts []string
	if cfg.ReportFont != "" {
		fonts = []string{cfg.ReportFont}
	}

	// 3. Services
	dir := patient.NewDirectory(patient.Seed())
	a.manager = dashboard.NewManager(dashboard.Deps{
		Directory:    dir,
		Generator:    gen,
		Responder:    gen,
		Clock:        clock,
		Notices:      sinks,
		NoticeBuffer: cfg.NoticeBuffer,
		IdleTTL:      cfg.SessionIdleTTL,
		Logger:       logger,
	})
	reapCtx, stopReap := context.WithCancel(context.Background())
	a.stopReap = stopReap
	go a.manager.Run(reapCtx)
	reportSvc := report.NewService(share, cfg.DoctorChatID, fonts, logger)

	// 4. Router
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logger(logger))
	r.Use(cors)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		patient.RegisterRoutes(r, patient.NewHandler(dir))
		dashboard.RegisterRoutes(r, dashboard.NewHandler(a.manager, reportSvc, stt))
	})

	a.router = r
	return a, nil
}

func connect(url string, logger zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	for i := 0; i < 5; i++ {
		if err = db.Ping(); err == nil {
			logger.Info().Msg("connected to database")
			return db, nil
		}
		logger.Info().Int("attempt", i+1).Msg("waiting for database")
		time.Sleep(time.Second)
	}
	db.Close()
	return nil, err
}

// cors lets the dashboard frontend call the API from another origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-Request-ID")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Close stops the reaper and tears down sessions, then flushes the
// Telegram queue and the journal.
func (a *app) Close() {
	a.stopReap()
	a.manager.CloseAll()
	if a.telegram != nil {
		a.telegram.Close()
	}
	if a.journal != nil {
		a.journal.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
