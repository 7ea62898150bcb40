package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/infra/geoip"
	mw "server/internal/middleware"
	"server/internal/payments"
	"server/internal/providers/esewa"
	"server/internal/providers/khalti"
	"server/internal/providers/stripe"
	"server/internal/stats"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	donations := repo.NewDonationRepository(dbpool)
	settings := repo.NewSettingsRepository(dbpool)
	recorder := stats.NewRecorder(repo.NewStatsRepository(dbpool), logger)

	stripeClient := stripe.New(stripe.Options{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
	})
	khaltiClient := khalti.New(khalti.Options{
		SecretKey:     cfg.KhaltiSecretKey,
		BaseURL:       cfg.KhaltiBaseURL,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
	})
	esewaClient := esewa.New(esewa.Options{
		MerchantID:    cfg.EsewaMerchantID,
		SecretKey:     cfg.EsewaSecretKey,
		BaseURL:       cfg.EsewaBaseURL,
		PublicBaseURL: cfg.PublicBaseURL,
		Logger:        logger,
	})

	registry := payments.NewRegistry(stripeClient, khaltiClient, esewaClient)
	resolver := payments.NewResolver(settings, registry, cfg.MockMode())
	orchestrator := payments.NewOrchestrator(donations, resolver, registry, recorder, logger)
	reconciler := payments.NewReconciler(donations, recorder, cfg.ReceiptBase, logger)

	var countryLookup mw.CountryLookup
	countryResolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip resolver unavailable")
	} else if countryResolver != nil {
		countryLookup = countryResolver.CountryCode
	}

	app := &handlers.App{
		Logger:       logger,
		Donations:    donations,
		Settings:     settings,
		Orchestrator: orchestrator,
		Reconciler:   reconciler,
		Resolver:     resolver,
		Registry:     registry,
		Stats:        recorder,
		Stripe:       stripeClient,
		Khalti:       khaltiClient,
		Esewa:        esewaClient,
		Mock:         cfg.MockMode(),
		PublicBase:   cfg.PublicBaseURL,
		PingDB:       dbpool.Ping,
	}

	router := httpapi.NewRouter(app, cfg, logger, countryLookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("mode", cfg.PaymentMode).
			Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
