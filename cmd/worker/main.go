package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"zapmotor/internal/awsutil"
	"zapmotor/internal/browser"
	"zapmotor/internal/config"
	"zapmotor/internal/dispatch"
	"zapmotor/internal/httpapi"
	"zapmotor/internal/linker"
	"zapmotor/internal/logging"
	"zapmotor/internal/observability"
	sqsqueue "zapmotor/internal/queue/sqs"
	"zapmotor/internal/store/mongodb"
	workerproc "zapmotor/internal/worker"
)

func main() {
	cfg := config.LoadWorker()
	logging.Init("worker", cfg.LogFormat)

	// Use a root ctx we can cancel
	ctx, cancel := context.WithCancel(context.Background())

	client, db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		slog.Error("worker mongo connect failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	sqsClient, err := awsutil.NewSQSClient(ctx, cfg.AWSRegion)
	if err != nil {
		slog.Error("worker sqs client init failed", "err", err)
		os.Exit(1)
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, 3*time.Second)
	defer startupCancel()

	if _, err := sqsClient.GetQueueAttributes(startupCtx, &sqs.GetQueueAttributesInput{
		QueueUrl:       &cfg.SQSQueueURL,
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	}); err != nil {
		slog.Error("sqs not reachable", "err", err)
		os.Exit(1)
	}

	reg := prometheus.DefaultRegisterer
	observability.Register(reg)

	consumer := &sqsqueue.Consumer{
		SQS: sqsClient, QueueURL: cfg.SQSQueueURL,
		WaitTimeSeconds:   cfg.SQSWaitTime,
		MaxMessages:       cfg.SQSMaxMsgs,
		VisibilityTimeout: cfg.SQSVizTimeout,
	}

	// health server (liveness + readiness)
	healthMux := httpapi.New().Mux
	healthMux.HandleFunc("/healthz", httpapi.Healthz())
	healthMux.HandleFunc("/readyz", httpapi.Readyz(2*time.Second,
		func(c context.Context) error { return db.Ping(c) },
		func(c context.Context) error {
			_, err := sqsClient.GetQueueAttributes(c, &sqs.GetQueueAttributesInput{
				QueueUrl:       &cfg.SQSQueueURL,
				AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
			})
			return err
		},
	))

	healthSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpapi.Logging(healthMux),
	}

	healthErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker health listening", "port", cfg.Port)
		healthErrCh <- healthSrv.ListenAndServe()
	}()

	launcher := &browser.RodLauncher{
		Headless: cfg.Headless,
		Bin:      cfg.BrowserBin,
	}

	lk := &linker.Linker{
		Store:        db,
		Browser:      launcher,
		SessionsBase: cfg.SessionsBase,
		Timeout:      time.Duration(cfg.LinkTimeoutSec) * time.Second,
		PollInterval: time.Duration(cfg.LinkPollSec) * time.Second,
	}

	// SEND_RPM is a per-pod global cap on sends, on top of each campaign's
	// own min/max delay.
	limiter := rate.NewLimiter(rate.Limit(cfg.SendRPM/60.0), cfg.SendBurst)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "browser-send",
		MaxRequests: 2,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
	})

	dp := &dispatch.Dispatcher{
		Store:        db,
		Browser:      launcher,
		SessionsBase: cfg.SessionsBase,
		AuthWait:     time.Duration(cfg.AuthWaitSec) * time.Second,
		ComposerWait: time.Duration(cfg.ComposerWaitSec) * time.Second,
		Limiter:      limiter,
		Breaker:      cb,
	}

	processor := &workerproc.Processor{
		Store:      db,
		Linker:     lk,
		Dispatcher: dp,
		Locks:      workerproc.NewConnLocks(),
	}

	// start polling
	pollErrCh := make(chan error, 1)
	go func() {
		slog.Info("worker starting poll", "queue_url", cfg.SQSQueueURL)
		pollErrCh <- consumer.PollConcurrent(ctx, cfg.WorkerConcurrency, func(ctx context.Context, job sqsqueue.Job) (err error) {
			start := time.Now()
			slog.Info("worker job start", "type", job.Type, "connection_id", job.ConnectionID, "campaign_id", job.CampaignID)
			defer func() {
				if err != nil {
					slog.Info("worker job finish",
						"type", job.Type,
						"status", "error",
						"duration", time.Since(start),
						"err", err,
					)
				} else {
					slog.Info("worker job finish",
						"type", job.Type,
						"status", "ok",
						"duration", time.Since(start),
					)
				}
			}()
			err = processor.Process(ctx, job)
			return err
		})
	}()

	// shutdown wiring
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-pollErrCh:
		if err != nil && err != context.Canceled {
			slog.Error("worker poll failed", "err", err)
			os.Exit(1)
		}
	case err := <-healthErrCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("worker health server failed", "err", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		slog.Info("worker shutdown", "signal", sig.String())
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = healthSrv.Shutdown(shutdownCtx)

	select {
	case <-pollErrCh:
	case <-time.After(30 * time.Second):
		slog.Info("worker shutdown timeout waiting for poll loop")
	}
}
