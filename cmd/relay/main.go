package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcelsud/webhook-relay/config"
	"github.com/marcelsud/webhook-relay/connection"
	"github.com/marcelsud/webhook-relay/event"
	"github.com/marcelsud/webhook-relay/internal/logging"
	"github.com/marcelsud/webhook-relay/relay"
	"github.com/marcelsud/webhook-relay/store"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

const stopTimeout = 30 * time.Second

/* relay forwards the webhooks of one endpoint to a service on this machine
 * Usage: relay --endpoint <endpoint_id> --port 3000
 */
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	flagSet.StringP("endpoint", "e", "", "endpoint id to relay events for")
	flagSet.IntP("port", "p", 0, "port of the local service (default 3000)")
	flagSet.String("host", "", "host of the local service (default localhost)")
	flagSet.String("client-id", "", "name of this relay in connection records (default hostname)")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	v := viper.GetViper()
	for key, flag := range map[string]string{
		"RELAY_ENDPOINT_ID": "endpoint",
		"RELAY_PORT":        "port",
		"RELAY_HOST":        "host",
		"RELAY_CLIENT_ID":   "client-id",
	} {
		if err := v.BindPFlag(key, flagSet.Lookup(flag)); err != nil {
			return fmt.Errorf("binding flag %s: %w", flag, err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if cfg.RelayEndpointID == "" {
		return fmt.Errorf("an endpoint id is required (--endpoint or RELAY_ENDPOINT_ID)")
	}
	logger := logging.New("webhook-relay", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT)
	defer stop()

	backend, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.StoreDriver, err)
	}
	defer backend.Close()

	manager := connection.NewManager(connection.ManagerConfig{
		Repo:              backend.Connections,
		EndpointID:        cfg.RelayEndpointID,
		ClientID:          cfg.GetRelayClientID(),
		HeartbeatInterval: cfg.GetHeartbeatInterval(),
		Logger:            logger,
	})
	client := relay.NewClient(relay.Config{
		EndpointID:     cfg.RelayEndpointID,
		Host:           cfg.RelayHost,
		Port:           cfg.GetRelayPort(),
		RequestTimeout: cfg.GetRelayRequestTimeout(),
		ReconnectDelay: cfg.GetRelayReconnectDelay(),
		Feed:           backend.Events,
		Events:         event.NewService(backend.Events, cfg.EventMaxRetries),
		Connections:    manager,
		Logger:         logger,
	})

	if err := client.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("Relaying events of %s to http://%s:%d (Ctrl+C to stop)\n", cfg.RelayEndpointID, cfg.RelayHost, cfg.GetRelayPort())

	var g errgroup.Group
	g.Go(func() error {
		client.Wait()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		client.Stop(stopCtx)
		return nil
	})
	return g.Wait()
}
