package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moyoez/pairdrop-go/api"
	"github.com/moyoez/pairdrop-go/api/controllers"
	"github.com/moyoez/pairdrop-go/api/models"
	"github.com/moyoez/pairdrop-go/api/notifyhub"
	"github.com/moyoez/pairdrop-go/lifecycle"
	"github.com/moyoez/pairdrop-go/notify"
	"github.com/moyoez/pairdrop-go/session"
	"github.com/moyoez/pairdrop-go/tool"
	"github.com/moyoez/pairdrop-go/transfer"
)

func main() {
	cfg := tool.SetFlags()

	// initialize logger
	tool.InitLogger()
	tool.SetLogMode(cfg.Log)

	appCfg, err := tool.LoadConfig(cfg.UseConfigPath)
	if err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	tool.ApplyFlagOverrides(&appCfg, cfg)
	tool.CurrentConfig = appCfg

	if cfg.SkipNotify {
		notify.SetUseNotify(false)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case cfg.Probe:
		os.Exit(runProbe(appCfg.Endpoint))
	case cfg.Generate:
		os.Exit(runGenerate(ctx, appCfg.APIBase, cfg.Token))
	}

	var (
		hub         *notifyhub.Hub
		broadcaster notify.Broadcaster
	)
	if cfg.Serve {
		hub = notifyhub.New()
		broadcaster = hub
	}
	notifier := notify.NewNotifier(broadcaster, appCfg.NotifySocket)
	go notifier.Run(ctx)

	client := session.NewClient(session.ConfigFromApp(appCfg),
		session.WithObserver(notifier),
		session.WithObserver(models.NewRecorder()),
		session.WithObserver(newStatePrinter()),
	)
	go func() {
		if err := client.Run(ctx); err != nil && ctx.Err() == nil {
			tool.DefaultLogger.Errorf("Session loop stopped: %v", err)
		}
	}()
	defer client.Close()

	// background -> foreground reconnects, from signals and from the control API
	manual := lifecycle.NewManualSource()
	watcher := lifecycle.NewWatcher(client, tool.Millis(appCfg.ReconnectMinIntervalMs))
	go watcher.Watch(ctx, lifecycle.NewSignalSource())
	go watcher.Watch(ctx, manual)

	var remote *transfer.Client
	if appCfg.APIBase != "" {
		remote = transfer.NewClient(appCfg.APIBase, cfg.Token)
	}

	if !cfg.Serve {
		code := runOnce(ctx, client, remote, cfg)
		client.Close()
		stop()
		os.Exit(code)
	}

	opts := []controllers.SessionControllerOption{controllers.WithVisibility(manual)}
	if remote != nil {
		opts = append(opts, controllers.WithRemote(remote, cfg.UseRestValidate))
	}
	ctrl := controllers.NewSessionController(client, appCfg.MaxFileSizeBytes, opts...)
	apiServer := api.NewServer(appCfg.ControlPort, ctrl, hub)
	go func() {
		if err := apiServer.Start(); err != nil {
			tool.DefaultLogger.Fatalf("API server startup failed: %v", err)
		}
	}()

	<-ctx.Done()
	tool.DefaultLogger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		tool.DefaultLogger.Warnf("API server shutdown: %v", err)
	}
	models.ReleaseStagedFile()
}
