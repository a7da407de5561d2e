package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/secondbreakfast/conductor/internal/app"
	"github.com/secondbreakfast/conductor/internal/config"
	"github.com/secondbreakfast/conductor/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Stuck-pending runs are swept this often. The timeout itself comes
// from the runner config.
const reaperInterval = time.Minute

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the conductor server",
	RunE:  runApp,
}

func init() {
	flags := runCmd.Flags()

	flags.Int("port", 8881, "Port to run the server on")
	flags.String("host", "localhost", "Host to run the server on")
	flags.String("environment", "dev", "Environment configuration")
	flags.String("filesystem-type", "local", "Filesystem type: 'local' or 's3'")
	flags.String("public-dir", "", "Path where the dashboard's static files should be served from. Relative paths are relative to the current working directory, not the location of the conductor executable.")
	flags.String("public-url", "", "Public base URL used in links handed back to clients and webhooks")
	flags.Bool("enable-safety-filter", false, "Screen rendered prompts before they are sent to a provider")

	flags.String("db-driver", "sqlite", "Database driver: 'sqlite' or 'pg'")
	flags.String("db-dsn", "", "Database DSN (Connection URL or Path)")
	flags.String("mq-type", "inmemory", "Message queue type: 'inmemory' or 'pulsar'")
	flags.String("pulsar-url", "", "URL of the pulsar broker. Example: pulsar+ssl://my-cluster.streamnative.cloud:6651")

	flags.String("s3-access-key", "", "S3 access key")
	flags.String("s3-secret-key", "", "S3 secret key")
	flags.String("s3-region-name", "", "S3 region name")
	flags.String("s3-bucket-name", "", "S3 bucket name")
	flags.String("s3-folder", "", "S3 folder")
	flags.String("s3-public-url", "", "Public URL for S3 files")
	flags.String("s3-endpoint-url", "", "S3 endpoint URL")

	viper.BindPFlags(flags)

	viper.BindPFlag("filesystem_type", flags.Lookup("filesystem-type"))
	viper.BindPFlag("public_dir", flags.Lookup("public-dir"))
	viper.BindPFlag("public_url", flags.Lookup("public-url"))
	viper.BindPFlag("enable_safety_filter", flags.Lookup("enable-safety-filter"))

	viper.BindPFlag("db.driver", flags.Lookup("db-driver"))
	viper.BindPFlag("db.dsn", flags.Lookup("db-dsn"))
	viper.BindPFlag("mq.type", flags.Lookup("mq-type"))
	viper.BindPFlag("pulsar.url", flags.Lookup("pulsar-url"))

	viper.BindPFlag("s3.access_key", flags.Lookup("s3-access-key"))
	viper.BindPFlag("s3.secret_key", flags.Lookup("s3-secret-key"))
	viper.BindPFlag("s3.region_name", flags.Lookup("s3-region-name"))
	viper.BindPFlag("s3.bucket_name", flags.Lookup("s3-bucket-name"))
	viper.BindPFlag("s3.folder", flags.Lookup("s3-folder"))
	viper.BindPFlag("s3.public_url", flags.Lookup("s3-public-url"))
	viper.BindPFlag("s3.endpoint_url", flags.Lookup("s3-endpoint-url"))
}

func runApp(_ *cobra.Command, _ []string) error {
	errc := make(chan error, 2)
	signalc := make(chan os.Signal, 1)

	app, err := createNewApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx := app.Context()

	server, err := runServer(app)
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			fmt.Println("Server stopped successfully")
			return nil
		}

		return err
	}

	go func() {
		if err := app.Processor.Start(ctx); err != nil {
			errc <- err
		}
	}()

	go app.Processor.StartReaper(ctx, reaperInterval)

	signal.Notify(signalc, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		server.Stop(ctx)
		return err
	case <-signalc:
		server.Stop(ctx)
		return nil
	}
}

func createNewApp() (*app.App, error) {
	return app.NewApp(
		config.GetConfig(),
		app.WithMQ(),
		app.WithDBInitialization(),
		app.WithMediaUploader(),
		app.WithProviders(),
		app.WithCatalog(),
		app.WithRunner(),
	)
}

func runServer(app *app.App) (*server.Server, error) {
	server, err := server.NewServer(app.Config())
	if err != nil {
		return nil, err
	}

	// Setup the server routes
	server.SetupRoutes(app)

	errc := make(chan error, 1)
	go func() {
		fmt.Printf("Conductor started on port %v\n", app.Config().Port)
		errc <- server.Start()
	}()

	select {
	case err := <-errc:
		return nil, err
	default:
		return server, nil
	}
}
