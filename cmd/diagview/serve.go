package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"diagview/internal/api"
	"diagview/internal/auth"
	"diagview/internal/board"
	"diagview/internal/config"
	"diagview/internal/events"
	"diagview/internal/mqtt"
	"diagview/internal/plugins"
	"diagview/internal/plugins/diagnostics"
	"diagview/internal/sim"
	"diagview/internal/storage"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the telemetry loop and the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, envFile)
	},
}

func serve(ctx context.Context, envPath string) error {
	cfg, err := config.Load(envPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, closeLog := newLogger(cfg.LogFile())
	defer closeLog()
	logger.Printf("Configuration loaded: %s", cfg)

	store, err := storage.NewBoltStorage(cfg.DBPath())
	if err != nil {
		return err
	}
	defer store.Close()

	robot, err := loadRobot(cfg)
	if err != nil {
		return err
	}

	eventStore := events.NewStore(events.DefaultMaxEvents)
	b := board.New(logger)

	deps := &plugins.PluginDependencies{
		Config:     cfg,
		EventStore: eventStore,
		Logger:     logger,
		Storage:    store,
		Board:      b,
		Robot:      robot,
	}

	if cfg.MQTTBroker() != "" {
		client, err := mqtt.New(mqtt.Config{
			Broker:   cfg.MQTTBroker(),
			ClientID: cfg.MQTTClientID(),
			Username: cfg.MQTTUsername(),
			Password: cfg.MQTTPassword(),
			Prefix:   cfg.MQTTPrefix(),
			UseTLS:   cfg.MQTTUseTLS(),
		}, logger)
		if err != nil {
			return err
		}
		if err := client.Connect(); err != nil {
			logger.Printf("[MQTT] %v; entity updates are dropped until the broker is reachable", err)
		}
		defer client.Disconnect()

		discovery := mqtt.NewDiscoveryManager(client, logger, store, "mqtt")
		deps.MQTTClient = client
		deps.MQTTSurface = mqtt.NewSurface(client, discovery, logger)
	}

	registry := plugins.NewRegistry()
	diag := diagnostics.New()
	if err := registry.Register(diag); err != nil {
		return err
	}

	if err := registry.InitAll(ctx, deps); err != nil {
		return err
	}
	if err := registry.StartAll(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := registry.StopAll(stopCtx); err != nil {
			logger.Printf("Failed to stop plugins: %v", err)
		}
	}()
	if err := registry.StartBackgroundTasksAll(ctx); err != nil {
		return err
	}

	wsTokens := auth.NewWSTokenStore()
	go wsTokens.Run(ctx)
	rateLimit := auth.NewLoginRateLimiter()
	go rateLimit.Run(ctx)

	apiDeps := api.Deps{
		Config:     cfg,
		Board:      b,
		Robot:      robot,
		Storage:    store,
		EventStore: eventStore,
		Plugins:    registry,
		WSTokens:   wsTokens,
		RateLimit:  rateLimit,
		Logger:     logger,
	}
	if deps.MQTTSurface != nil {
		apiDeps.Mirror = deps.MQTTSurface
	}
	if slices.Contains(registry.Active(), plugins.Plugin(diag)) {
		apiDeps.Monitor = diag
	}

	server, err := api.NewServer(apiDeps)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	fmt.Printf("diagview %s starting on %s\n", Version, cfg.Addr())
	if cfg.NoAuth() {
		fmt.Println("WARNING: Authentication is DISABLED!")
	} else if cfg.AdminPassword() == "" {
		fmt.Printf("WARNING: %s is not set, login is disabled\n", config.EnvAdminPassword)
	}
	printAccessURLs(port(cfg.Addr()))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Printf("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	return nil
}

// loadRobot builds the simulated robot from the devices file, or the default motor set
func loadRobot(cfg *config.Config) (*sim.Robot, error) {
	file, err := sim.LoadFile(cfg.DevicesFile())
	if err != nil {
		return nil, err
	}
	if file.PowerChannels == 0 {
		file.PowerChannels = cfg.PowerChannels()
	}
	return sim.NewRobot(file)
}

func port(addr string) string {
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[idx+1:]
	}
	return addr
}

// getLocalIPs returns all non-loopback IPv4 addresses
func getLocalIPs() []string {
	var ips []string

	interfaces, err := net.Interfaces()
	if err != nil {
		return ips
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			if ip == nil || ip.IsLoopback() || ip.To4() == nil {
				continue
			}

			ips = append(ips, ip.String())
		}
	}

	return ips
}

// printAccessURLs prints the dashboard API URLs
func printAccessURLs(port string) {
	ips := getLocalIPs()
	if len(ips) == 0 {
		fmt.Printf("\nAPI available at http://localhost:%s/api\n", port)
		return
	}

	fmt.Println("\nAccess URLs:")
	for _, ip := range ips {
		fmt.Printf("  http://%s:%s/api\n", ip, port)
	}
	fmt.Println()
}
