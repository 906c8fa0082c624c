// Package serve implements the command that runs the web application.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/lesionscan/lesionscan/internal/buildinfo"
	"github.com/lesionscan/lesionscan/internal/classifier"
	"github.com/lesionscan/lesionscan/internal/classifier/tflite"
	"github.com/lesionscan/lesionscan/internal/conf"
	"github.com/lesionscan/lesionscan/internal/datastore"
	"github.com/lesionscan/lesionscan/internal/httpcontroller"
	"github.com/lesionscan/lesionscan/internal/logger"
	"github.com/lesionscan/lesionscan/internal/observability"
	"github.com/lesionscan/lesionscan/internal/securefs"
	"github.com/lesionscan/lesionscan/internal/security"
	"github.com/lesionscan/lesionscan/internal/sysinfo"
	"github.com/lesionscan/lesionscan/internal/telemetry"
	"github.com/lesionscan/lesionscan/internal/uploads"
)

// GetLogger returns the serve command logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("serve")
}

// Command creates the serve command.
func Command(info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web application",
		Long:  "Load the model, open the database and serve the web interface and JSON API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), conf.GetSettings(), info)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("port", "", "HTTP listen port")
	cmd.Flags().String("model", "", "Path to the TensorFlow Lite model")
	cmd.Flags().String("db", "", "Path to the SQLite database")

	bindings := map[string]string{
		"webserver.port":       "port",
		"classifier.modelpath": "model",
		"output.sqlite.path":   "db",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}
	return nil
}

// Run wires the application together and serves until ctx is cancelled or
// the process receives SIGINT or SIGTERM.
func Run(ctx context.Context, settings *conf.Settings, info *buildinfo.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := GetLogger()

	host := sysinfo.Host()
	log.Info("starting lesionscan",
		logger.String("version", info.GetVersion()),
		logger.String("build_date", info.GetBuildDate()),
		logger.String("hostname", host.Hostname),
		logger.Int("num_cpu", host.NumCPU))

	if err := telemetry.InitSentry(&settings.Telemetry, info); err != nil {
		return err
	}
	defer telemetry.Shutdown()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	predictor, err := tflite.Load(settings.Classifier.ModelPath, settings.Classifier.Threads)
	if err != nil {
		return err
	}
	clf, err := classifier.New(predictor,
		classifier.WithCacheTTL(settings.Classifier.CacheTTL),
		classifier.WithMetrics(metrics.Classifier))
	if err != nil {
		_ = predictor.Close()
		return err
	}
	defer closeWithLog("classifier", clf.Close)

	sfs, err := securefs.New(settings.WebServer.StaticDir)
	if err != nil {
		return err
	}
	defer closeWithLog("static filesystem", sfs.Close)

	uploadStore, err := uploads.New(sfs,
		uploads.WithNaming(settings.Uploads.Naming),
		uploads.WithMinFreeMB(settings.Uploads.MinFreeMB),
		uploads.WithMetrics(metrics.Uploads))
	if err != nil {
		return err
	}

	hasher, err := security.NewPasswordHasher(settings.Security.PasswordHash)
	if err != nil {
		return err
	}
	ds, err := datastore.New(settings, hasher, datastore.WithMetrics(metrics.Datastore))
	if err != nil {
		return err
	}
	if err := ds.Open(); err != nil {
		return err
	}
	defer closeWithLog("datastore", ds.Close)

	sessions, err := security.NewSessionManager(&settings.Security)
	if err != nil {
		return err
	}

	server, err := httpcontroller.New(settings, httpcontroller.Dependencies{
		DS:         ds,
		Classifier: clf,
		Uploads:    uploadStore,
		Sessions:   sessions,
		Metrics:    metrics,
		BuildInfo:  info,
	})
	if err != nil {
		return err
	}

	ln, err := httpcontroller.Listen(&settings.WebServer)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, ln)
	})

	if settings.Observability.Enabled && settings.Observability.Listen != "" {
		endpoint, err := observability.NewEndpoint(settings.Observability.Listen, metrics)
		if err != nil {
			stop()
			_ = g.Wait()
			return err
		}
		g.Go(func() error {
			return endpoint.Run(gctx)
		})
		log.Info("metrics endpoint enabled", logger.String("listen", settings.Observability.Listen))
	}

	err = g.Wait()
	log.Info("lesionscan stopped")
	return err
}

func closeWithLog(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		GetLogger().Warn("failed to close "+name, logger.Error(err))
	}
}
