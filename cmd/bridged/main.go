package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/containeros/appbridge/internal/infrastructure/config"
	"github.com/containeros/appbridge/internal/infrastructure/server"
)

func main() {
	cfg := config.LoadOrDefault()

	port := flag.String("port", cfg.Server.Port, "Guest-facing HTTP port")
	catalogAddr := flag.String("catalog", cfg.Host.CatalogAddr, "Host catalog daemon address")
	installerAddr := flag.String("installer", cfg.Host.InstallerAddr, "Host installer daemon address")
	monitorAddr := flag.String("monitor", cfg.Host.MonitorAddr, "Session monitor address")
	iconsDir := flag.String("icons", cfg.Icons.Dir, "Icon cache directory")
	flag.Parse()

	cfg.Server.Port = *port
	cfg.Host.CatalogAddr = *catalogAddr
	cfg.Host.InstallerAddr = *installerAddr
	cfg.Host.MonitorAddr = *monitorAddr
	cfg.Icons.Dir = *iconsDir

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Run(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-sigChan:
		log.Println("shutting down gracefully...")
		if err := srv.Close(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	case err := <-errChan:
		log.Fatalf("Server error: %v", err)
	}
}
