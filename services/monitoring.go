package services

import (
	"fmt"
	"os"
	"strconv"

	serviceContext "github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	MONITORING_SVC          = "monitoring_svc"
	SERVICE_NAME            = "progress_engine"
	DEFAULT_PROMETHEUS_PORT = 2112
)

// Engine metrics
var (
	eventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_events_processed_total",
			Help: "Total learning events folded into daily stats",
		},
		[]string{"event_type"},
	)

	starsCreditedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_stars_credited_total",
			Help: "Total stars credited to reward ledgers",
		},
		[]string{"reason"},
	)

	rewardClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_reward_claims_total",
			Help: "Challenge reward claim attempts by outcome",
		},
		[]string{"outcome"},
	)

	achievementsUnlockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_achievements_unlocked_total",
			Help: "Total achievements unlocked",
		},
		[]string{"category"},
	)

	reviewsScheduledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_reviews_scheduled_total",
			Help: "Spaced-repetition reviews scheduled by quality",
		},
		[]string{"quality"},
	)

	concurrencyRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_concurrency_retries_total",
			Help: "Optimistic-lock retries on daily stat rows",
		},
	)

	recordEventDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_record_event_duration_seconds",
			Help:    "RecordEvent end-to-end duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)
)

type MonitoringService struct {
	serviceContext.DefaultService

	port     int
	register *prometheus.Registry
	server   *fiber.App
}

func (svc *MonitoringService) Id() string {
	return MONITORING_SVC
}

func (svc *MonitoringService) Start() error {
	portStr := os.Getenv("PROMETHEUS_PORT")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		port = DEFAULT_PROMETHEUS_PORT
	}
	svc.port = port

	reg := prometheus.NewRegistry()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	reg.MustRegister(
		eventsProcessedTotal,
		starsCreditedTotal,
		rewardClaimsTotal,
		achievementsUnlockedTotal,
		reviewsScheduledTotal,
		concurrencyRetriesTotal,
		recordEventDurationSeconds,
	)

	svc.register = reg

	config := fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).SendString("Internal Server Error")
		},
	}

	svc.server = fiber.New(config)
	svc.server.Use(recover.New())

	svc.server.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	svc.server.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": SERVICE_NAME})
	})

	go func() {
		if listenErr := svc.server.Listen(fmt.Sprintf(":%v", svc.port)); listenErr != nil {
			log.Error().Err(listenErr).Msg("metrics server stopped")
		}
	}()

	log.Info().Int("port", svc.port).Msg("Prometheus metrics server started")
	return nil
}

func (svc *MonitoringService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}
