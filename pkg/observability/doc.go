// Package observability wires the daemon's operational surface: logrus
// setup from configuration, the Prometheus metric set with its HTTP
// middleware, OpenTelemetry tracer/meter providers, dependency health
// probes, and the graceful shutdown sequence.
//
// Logging:
//
//	logger := observability.NewLogger("info", "json")
//	logger.WithField("org_id", orgID).Info("Organization created")
//
// Metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	handler := observability.HTTPMetricsMiddleware(metrics)(apiHandler)
//
// Health:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	router.HandleFunc("/healthz", checker.Liveness)
//	router.HandleFunc("/readyz", checker.Readiness)
//
// Shutdown:
//
//	shutdown := observability.NewShutdownManager(logger, 30*time.Second)
//	shutdown.Register("http", server.Shutdown)
//	shutdown.Run(context.Background())
package observability
