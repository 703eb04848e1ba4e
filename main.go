package main

import (
	"context"
	"errors"
	"fanshare/config"
	"fanshare/database"
	"fanshare/errorlog"
	"fanshare/handlers"
	"fanshare/service"
	"fanshare/version"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load environment variables, config file and CLI flags
	config.ParseFlags()
	cfg := config.Settings

	logFile, err := setupLogging(cfg.LogFilePath)
	if err != nil {
		log.Printf("Failed to set up logging: %v", err)
		return 1
	}
	defer logFile.Close()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Printf("fanshare %s starting up...", version.Info())
	debugf("database=%s port=%d lock=%v", cfg.DatabaseURL, cfg.Port, cfg.MigrationLockEnabled)

	errorlog.Default.SetCapacity(cfg.MaxErrorLogs)

	handle, err := database.Open(cfg)
	if err != nil {
		log.Printf("Failed to open database: %v", err)
		return 1
	}
	defer func() {
		if err := handle.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	runner, err := newRunner(handle, cfg)
	if err != nil {
		log.Printf("Invalid migration catalog: %v", err)
		return 1
	}

	// Interrupts stop a migration between units and later stop the server.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SchemaStatus {
		if err := printSchemaStatus(ctx, os.Stdout, runner); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	// Nothing may read application tables until the schema is current.
	res, err := runner.Run(ctx)
	if err != nil {
		log.Printf("Schema migration failed, refusing to start: %v", err)
		if cfg.LogFilePath != "" {
			fmt.Fprintf(os.Stderr, "Schema migration failed: %v\n", err)
		}
		return 1
	}
	if cfg.MigrateOnly {
		log.Printf("Schema at %s (%s); exiting", res.To, res.State)
		return 0
	}

	service.InitServices(handle, runner, errorlog.Default)
	service.GlobalServices.Schema.RecordRun(res)

	if err := serve(ctx, cfg); err != nil {
		log.Printf("Server error: %v", err)
		return 1
	}
	log.Println("Server exited")
	return 0
}

func serve(ctx context.Context, cfg *config.Config) error {
	if !cfg.IsDebug() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Direct Gin logs to the configured log file
	gin.DefaultWriter = log.Writer()
	gin.DefaultErrorWriter = log.Writer()
	gin.DisableConsoleColor()

	acl, err := handlers.NewAccessList(cfg.APIAllowCIDRs, cfg.APIDenyCIDRs)
	if err != nil {
		return err
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          12 * time.Hour,
	}))
	if acl != nil {
		r.Use(handlers.AccessControl(acl))
		log.Printf("API access restricted (allow=%v deny=%v)", cfg.APIAllowCIDRs, cfg.APIDenyCIDRs)
	}
	handlers.RegisterRoutes(r)

	ln, err := listenTCP("0.0.0.0", cfg.Port)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on http://127.0.0.1:%d", cfg.Port)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Println("Received interrupt signal")
	}

	log.Println("System shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	return nil
}
