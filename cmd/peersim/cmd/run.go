package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/api"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/config"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/peer"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/profile"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/session"
	"github.com/Pugstorm/CoreKeeperModSDK-sub013/internal/transport"
)

func newRunCmd() *cobra.Command {
	var (
		thinClients int
		listenAddr  string
		preset      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulated session until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				printError("loading config: %v", err)
				return err
			}
			if cmd.Flags().Changed("thin-clients") {
				cfg.Fleet.DesiredThinClients = thinClients
			}
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listenAddr
			}
			return runSession(cmd.Context(), cfg, preset)
		},
	}

	cmd.Flags().IntVar(&thinClients, "thin-clients", 0, "desired thin-client fleet size")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "status API address (empty disables)")
	cmd.Flags().StringVar(&preset, "preset", "", "apply a named network-condition preset at startup")
	return cmd
}

func runSession(parent context.Context, cfg *config.Config, preset string) error {
	lb := transport.NewLoopback()

	ctrl, err := session.New(session.Config{
		Transport: lb,
		Sink:      lb,
		DefaultEndpoint: peer.Endpoint{
			Address: cfg.Endpoint.Address,
			Port:    cfg.Endpoint.Port,
		},
		BaseProfile: profile.Profile{
			Enabled:     cfg.Profile.Enabled,
			DelayMS:     cfg.Profile.DelayMS,
			JitterMS:    cfg.Profile.JitterMS,
			DropPercent: cfg.Profile.DropPercent,
			FuzzPercent: cfg.Profile.FuzzPercent,
		},
		DesiredThinClients:      cfg.Fleet.DesiredThinClients,
		CreationIntervalSeconds: cfg.Fleet.CreationIntervalSeconds,
		FailureRetrySeconds:     cfg.Fleet.FailureRetrySeconds,
	})
	if err != nil {
		return err
	}

	if preset != "" {
		if err := ctrl.ApplyPreset(preset); err != nil {
			printError("applying preset: %v", err)
			return err
		}
		printInfo("preset %s applied", bold(preset))
	}

	if err := ctrl.Start(); err != nil {
		return err
	}
	defer ctrl.Close()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		printInfo("shutting down")
		cancel()
	}()

	var httpServer *http.Server
	if cfg.ListenAddr != "" {
		httpServer = &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           api.New(ctrl).Handler(),
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			printInfo("status API listening on %s", bold(cfg.ListenAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				printError("status API: %v", err)
				cancel()
			}
		}()
	}

	tickRate := cfg.TickRate
	if tickRate <= 0 {
		tickRate = 60
	}
	dt := 1.0 / float64(tickRate)
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	printSuccess("session started, %d thin clients desired, tick rate %d/s",
		cfg.Fleet.DesiredThinClients, tickRate)

	for {
		select {
		case <-ctx.Done():
			if httpServer != nil {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					printWarning("status API shutdown: %v", err)
				}
			}
			printSummary(ctrl)
			return nil
		case <-ticker.C:
			lb.Tick()
			ctrl.Tick(dt)
		}
	}
}

func printSummary(ctrl *session.Controller) {
	infos := ctrl.NodeInfos()
	connected := 0
	for _, info := range infos {
		if info.State == peer.StateConnected {
			connected++
		}
	}
	fmt.Println()
	fmt.Printf("%s\n", bold("Session summary"))
	fmt.Printf("  nodes:     %d (%d connected)\n", len(infos), connected)
	fmt.Printf("  profile:   %s\n", describeProfile(ctrl.BaseProfile()))
}

func describeProfile(p profile.Profile) string {
	if !p.Enabled {
		return yellow("emulation disabled")
	}
	class := p.Classify().String()
	switch p.Classify() {
	case profile.ClassTerrible:
		class = red(class)
	case profile.ClassPoor:
		class = yellow(class)
	default:
		class = green(class)
	}
	return fmt.Sprintf("%dms +/- %dms, %d%% drop (%s)", p.DelayMS, p.JitterMS, p.DropPercent, class)
}
