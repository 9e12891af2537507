package commands

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/converse-ai/converse/internal/server"
)

var (
	servePort     int
	serveHostname string
	serveDir      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the engine over a local HTTP API",
	Long: `Start Converse as a local server exposing the conversation engine
over HTTP, with an SSE relay of engine events.

This is how UI shells drive the engine without linking it in.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "", "Hostname to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir := serveDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return err
		}
	}

	engine, appConfig, err := buildEngine(workDir)
	if err != nil {
		return err
	}
	defer engine.Close()

	serverConfig := server.DefaultConfig()
	if appConfig.Server.Hostname != "" {
		serverConfig.Hostname = appConfig.Server.Hostname
	}
	if appConfig.Server.Port != 0 {
		serverConfig.Port = appConfig.Server.Port
	}
	if serveHostname != "" {
		serverConfig.Hostname = serveHostname
	}
	if servePort != 0 {
		serverConfig.Port = servePort
	}

	srv := server.New(serverConfig, engine)

	go func() {
		log.Printf("Converse listening on http://%s:%d", serverConfig.Hostname, serverConfig.Port)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
	return nil
}
