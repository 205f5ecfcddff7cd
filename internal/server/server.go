package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"warehouse-notify/internal/config"
	"warehouse-notify/internal/domain"
	"warehouse-notify/internal/eventbus"
	"warehouse-notify/internal/eventlog"
	hrest "warehouse-notify/internal/handler/http"
	wshandler "warehouse-notify/internal/handler/ws"
	"warehouse-notify/internal/middleware"
	"warehouse-notify/internal/realtime"
	"warehouse-notify/internal/repository"
	"warehouse-notify/internal/router"
	"warehouse-notify/internal/usecase"
	"warehouse-notify/pkg/id"
	"warehouse-notify/pkg/notifier"
	"warehouse-notify/pkg/notifier/ws"
	"warehouse-notify/pkg/stream"
	"warehouse-notify/pkg/template"
)

// Server owns the wired pipeline. Log and Bus are exported so embedding
// business code can append and emit through the same instances this server
// reacts on.
type Server struct {
	Log *eventlog.Log
	Bus *eventbus.Bus

	httpServer    *http.Server
	pool          interface{ Close() }
	producer      *stream.Producer
	logger        *zap.Logger
	stopHeartbeat context.CancelFunc
}

func New(cfg config.AppConfig) (*Server, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	// --- DB ---
	dbpool, err := config.ConnectDB(cfg)
	if err != nil {
		return nil, err
	}

	// --- Redis + realtime feed ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})
	feed := realtime.NewFeed(rdb)

	// --- Repos ---
	repo := repository.NewRepository(dbpool, feed)
	recorder := repository.NewEventRecorder(dbpool)

	// --- Snowflake request IDs ---
	sf, err := id.NewSnowflake(1)
	if err != nil {
		return nil, err
	}

	// --- Channel providers (missing credentials disable the channel) ---
	providers := buildProviders(cfg, logger)

	// --- Templates ---
	tmpl := template.NewService(cfg.EmailTemplateDir, cfg.TextTemplateDir)

	// --- Event log + bus ---
	evlog := eventlog.New(recorder)
	bus := eventbus.New()

	// A published log event also reaches the bus, so one append-and-publish
	// drives the whole reaction pipeline.
	if err := evlog.Subscribe(domain.EventWildcard, func(ctx context.Context, evt domain.DomainEvent) {
		bus.Emit(ctx, evt)
	}); err != nil {
		return nil, err
	}

	// --- Usecases ---
	dispatch := usecase.NewDispatchUsecase(repo, providers, tmpl, sf)
	reactions := usecase.NewReactionUsecase(repo)
	if err := reactions.Register(bus); err != nil {
		return nil, err
	}
	queue := usecase.NewQueueUsecase(repo, dispatch, providers[domain.ChannelEmail],
		cfg.EventBatchSize, cfg.EmailBatchSize, cfg.EmailMaxRetries, logger)

	// --- Event stream relay (optional) ---
	var relay *usecase.RelayUsecase
	var producer *stream.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer, err = stream.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, err
		}
		relay = usecase.NewRelayUsecase(recorder, producer, cfg.EventBatchSize, logger)
	} else {
		log.Println("⚠️ KAFKA_BROKERS not set, event stream relay disabled")
	}

	// --- Realtime bridge ---
	wsManager := ws.NewManager()
	hbCtx, stopHeartbeat := context.WithCancel(context.Background())
	go wsManager.Heartbeat(hbCtx, 30*time.Second)
	bridge := realtime.NewBridge(feed, repo, wsManager)

	// --- Handlers + routes ---
	auth := middleware.NewAuth(cfg.JWTSecret, cfg.WorkerSecret, cfg.DevMode())
	restHandler := hrest.NewNotificationHandler(repo)
	jobsHandler := hrest.NewJobsHandler(queue, relay)
	wsHandler := wshandler.NewWSHandler(bridge)

	r := chi.NewRouter()
	router.SetupRoutes(r, restHandler, jobsHandler, wsHandler, auth)

	return &Server{
		Log: evlog,
		Bus: bus,
		httpServer: &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: r,
		},
		pool:          dbpool,
		producer:      producer,
		logger:        logger,
		stopHeartbeat: stopHeartbeat,
	}, nil
}

func buildProviders(cfg config.AppConfig, logger *zap.Logger) map[domain.Channel]notifier.Provider {
	providers := make(map[domain.Channel]notifier.Provider)

	if p, err := notifier.NewEmailProvider(notifier.EmailConfig{
		Host: cfg.SMTPHost, Port: cfg.SMTPPort, Username: cfg.SMTPUser,
		Password: cfg.SMTPPass, From: cfg.SMTPFrom,
	}, logger); err != nil {
		log.Printf("⚠️ email channel disabled: %v", err)
	} else {
		providers[domain.ChannelEmail] = p
	}

	if p, err := notifier.NewSMSProvider(notifier.SMSConfig{
		BaseURL: cfg.SMSBaseURL, APIKey: cfg.SMSAPIKey, UserID: cfg.SMSUserID,
		Password: cfg.SMSPassword, SenderID: cfg.SMSSenderID,
	}, logger); err != nil {
		log.Printf("⚠️ sms channel disabled: %v", err)
	} else {
		providers[domain.ChannelSMS] = p
	}

	if p, err := notifier.NewWhatsAppProvider(notifier.WhatsAppConfig{
		BaseURL: cfg.WABaseURL, Token: cfg.WAToken, Sender: cfg.WASender,
	}, logger); err != nil {
		log.Printf("⚠️ whatsapp channel disabled: %v", err)
	} else {
		providers[domain.ChannelWhatsApp] = p
	}

	if p, err := notifier.NewPushProvider(notifier.PushConfig{
		GatewayURL: cfg.PushGatewayURL, ServerKey: cfg.PushServerKey,
	}, logger); err != nil {
		log.Printf("⚠️ push channel disabled: %v", err)
	} else {
		providers[domain.ChannelPush] = p
	}

	return providers
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.stopHeartbeat()
	if s.producer != nil {
		_ = s.producer.Close()
	}
	s.pool.Close()
	_ = s.logger.Sync()
	return err
}
