package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"packhouse/internal/handlers"
	"packhouse/internal/logger"
	"packhouse/internal/mqttgw"
	"packhouse/internal/repository"
	"packhouse/internal/server"
	"packhouse/internal/service"

	"github.com/spf13/viper"
)

func main() {
	// config first so the log level is honored from the start
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(viper.GetString("log.level"))

	conn, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	repos := repository.NewRepository(conn)

	// The MQTT gateway doubles as the broadcast publisher for the
	// detector. When no broker is configured, broadcasts are discarded.
	var pub service.Publisher = service.NopPublisher{}
	var gateway *mqttgw.Gateway
	if url := viper.GetString("mqtt.url"); url != "" {
		gateway = mqttgw.New(mqttgw.Config{
			URL:      url,
			Username: viper.GetString("mqtt.username"),
			Password: viper.GetString("mqtt.password"),
			Prefix:   viper.GetString("mqtt.prefix"),
			ClientID: viper.GetString("mqtt.client_id"),
		}, log)
		pub = gateway
	}

	services := service.NewService(repos, pub, log, serviceConfig())
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go services.Run(ctx)

	if gateway != nil {
		if err := gateway.Start(services.Ingestor); err != nil {
			log.Fatalw("failed to start mqtt gateway", "err", err)
		}
	} else {
		log.Infow("mqtt.url not set; pub/sub ingestion disabled")
	}

	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	waitForShutdown(cancel, srv, gateway, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

func serviceConfig() service.Config {
	cfg := service.DefaultConfig()
	if v := viper.GetFloat64("ingest.min_weight_kg"); v != 0 {
		cfg.MinWeightKg = v
	}
	if v := viper.GetFloat64("ingest.max_weight_kg"); v != 0 {
		cfg.MaxWeightKg = v
	}
	if v := viper.GetInt("ingest.recorder_buffer"); v > 0 {
		cfg.RecorderBuffer = v
	}
	if v := viper.GetInt("db.timeout_ms"); v > 0 {
		cfg.StoreTimeout = time.Duration(v) * time.Millisecond
	}
	if v := viper.GetInt("auth.token_ttl_min"); v > 0 {
		cfg.TokenTTL = time.Duration(v) * time.Minute
	}
	cfg.SigningKey = viper.GetString("auth.signing_key")
	return cfg
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "packhouse.db")
		dbPath = "packhouse.db"
	}
	return repository.InitDB(dbPath)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, gateway *mqttgw.Gateway, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	if gateway != nil {
		gateway.Stop()
	}

	// stop background goroutines (recorder flushes its queue)
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
