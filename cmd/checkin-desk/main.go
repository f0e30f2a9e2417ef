package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"checkin-desk/internal/checkin"
	"checkin-desk/internal/config"
	"checkin-desk/internal/directory"
	"checkin-desk/internal/formulas"
	"checkin-desk/internal/handler"
	"checkin-desk/internal/storage"
	"checkin-desk/internal/template"
	"checkin-desk/internal/whatsapp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fmt.Println("📋 Attendee Check-in Desk")
	fmt.Println("=========================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	wb, err := storage.Open(cfg.WorkbookPath(), logger)
	if err != nil {
		return fmt.Errorf("error opening workbook: %w", err)
	}
	defer wb.Close()

	if err := wb.EnsureSheet(ctx, cfg.DirectorySheet, []string{cfg.IDColumn, cfg.PhoneColumn}); err != nil {
		return err
	}
	if err := wb.EnsureSheet(ctx, cfg.CheckInSheet, []string{"identifier", "timestamp"}); err != nil {
		return err
	}

	props, err := storage.NewProperties(cfg.PropertiesPath())
	if err != nil {
		return fmt.Errorf("error loading properties: %w", err)
	}

	templates, err := template.NewStore(props, cfg.TemplateCacheTTL, logger)
	if err != nil {
		return err
	}
	defer templates.Close()

	// Initialize check-in service
	service := checkin.NewService(
		directory.NewLookup(wb.Sheet(cfg.DirectorySheet), cfg.IDColumn, cfg.PhoneColumn),
		wb.Sheet(cfg.CheckInSheet),
		wb.Lock(),
		templates,
		template.Format,
		logger,
		checkin.WithLockWait(cfg.LockTimeout),
	)
	formulaManager := formulas.NewManager(wb, props, logger)
	api := handler.NewAPI(service, formulaManager, props, logger)

	// Connect to WhatsApp
	if cfg.EnableWhatsApp {
		wa, err := whatsapp.NewService(&whatsapp.Config{
			DataDir:     cfg.DataDir,
			CountryCode: cfg.PhoneCountryCode,
		}, logger)
		if err != nil {
			return fmt.Errorf("error initializing WhatsApp service: %w", err)
		}
		wa.SetMessageHandler(handler.NewWhatsAppHandler(service, wa, logger).HandleMessage)

		fmt.Println("Connecting to WhatsApp...")
		if err := wa.Connect(); err != nil {
			return fmt.Errorf("error connecting to WhatsApp: %w", err)
		}
		defer wa.Disconnect()
		fmt.Println("✅ Connected to WhatsApp, listening for check-in messages.")

		if cfg.NotifyOnCheckIn {
			api.WithNotifier(wa, cfg.PhoneColumn)
		}
	}

	// HTTP API
	router := mux.NewRouter()
	router.Use(handler.RequestLogger(logger))
	api.Routes(router, handler.NewRateLimiter(cfg.RateLimit, cfg.RateBurst))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
	}).Handler(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errChan := make(chan error, 1)
	go func() {
		logger.Info().Str("address", cfg.HTTPAddr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// Start interactive CLI
	if cfg.EnableCLI {
		go startCLI(ctx, stop, &desk{
			service:  service,
			formulas: formulaManager,
			wb:       wb,
			cfg:      cfg,
		})
	}

	select {
	case <-ctx.Done():
	case err := <-errChan:
		return err
	}

	fmt.Println("\n\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown")
	}
	fmt.Println("Goodbye! 👋")
	return nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
