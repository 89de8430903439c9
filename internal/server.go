package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/trainingplan/internal/checklist"
	"github.com/2beens/trainingplan/internal/config"
	"github.com/2beens/trainingplan/internal/middleware"
	"github.com/2beens/trainingplan/internal/notify"
	"github.com/2beens/trainingplan/internal/plan"
	"github.com/2beens/trainingplan/internal/telemetry/metrics"
	"github.com/2beens/trainingplan/internal/telemetry/tracing"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config       *config.Config
	redisClient  *redis.Client
	bridge       *notify.Bridge
	repo         *checklist.Repo
	aggregator   *checklist.Aggregator
	noteSaver    *checklist.NoteSaver
	planIndex    *plan.Index
	planAdvisory string
	unsubscribe  func()

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	VersionInfo             string
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	promRegistry := metrics.SetupPrometheus()
	metricsManager := metrics.NewManager("trainingplan", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0) // will be set to 1 when all is set and ran

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "trainingplan-backend", rdb)
	if err != nil {
		return nil, err
	}

	tracedHttpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	loader := plan.NewLoader(params.Config.PlanPath, params.Config.PlanURL, tracedHttpClient)
	days, advisory := loader.Load(ctx)

	if params.Config.RenumberWeeks {
		weekEndsOn, err := plan.ParseWeekday(params.Config.WeekEndsOn)
		if err != nil {
			return nil, fmt.Errorf("renumber weeks: %w", err)
		}
		days = plan.RenumberWeeks(days, weekEndsOn)
		log.Debugf("plan weeks renumbered, weeks now end on %s", weekEndsOn)
	}

	planIndex := plan.NewIndex(days)
	log.Debugf("plan loaded: %d days over %d weeks", len(days), len(planIndex.Weeks()))

	bridge := notify.NewBridge(rdb)
	if err := bridge.Start(ctx); err != nil {
		return nil, fmt.Errorf("start change notification bridge: %w", err)
	}

	repo := checklist.NewRepo(rdb, bridge)
	aggregator := checklist.NewAggregator(repo)
	// external writes invalidate cached aggregates; own writes do that
	// through the normal local update flow in the handlers
	unsubscribe := bridge.Subscribe(aggregator.Invalidate)

	noteSaveDelay := time.Duration(params.Config.NoteSaveDelayMillis) * time.Millisecond
	noteSaver := checklist.NewNoteSaver(repo, noteSaveDelay)

	return &Server{
		config:       params.Config,
		versionInfo:  params.VersionInfo,
		redisClient:  rdb,
		bridge:       bridge,
		repo:         repo,
		aggregator:   aggregator,
		noteSaver:    noteSaver,
		planIndex:    planIndex,
		planAdvisory: advisory,
		unsubscribe:  unsubscribe,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	planHandler := plan.NewHandler(
		s.planIndex,
		s.planAdvisory,
		plan.TodayPolicy(s.config.TodayPolicy),
	)
	planHandler.SetupRoutes(r)

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)
	checklistHandler := checklist.NewHandler(
		s.repo,
		s.aggregator,
		s.noteSaver,
		s.planIndex,
		s.metricsManager,
	)
	checklistHandler.SetupRoutes(r, reqRateLimiter, s.config.ResetRateLimitPerMin)

	r.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(s.versionInfo))
	}).Methods("GET").Name("version")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(_ context.Context, host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	// pending debounced notes at least get their write attempted
	s.noteSaver.Close()

	s.unsubscribe()
	if err := s.bridge.Close(); err != nil {
		log.Errorf("failed to close change notification bridge: %s", err)
	}

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
