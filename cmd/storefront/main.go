package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amanice/storefront/config"
	"github.com/amanice/storefront/internal/adminapi"
	"github.com/amanice/storefront/internal/app"
	"github.com/amanice/storefront/internal/catalog"
	"github.com/amanice/storefront/internal/webserver"
)

var (
	configFile   string
	exportFormat string
	exportOutput string
)

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "AMA-NICE CLOTHING storefront service",
	Long: `Serves the storefront and admin API: the merged product catalog,
category pages, shopper carts with WhatsApp checkout and image uploads.

Run without a subcommand to start the web server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE:  runServe,
}

var initdbCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Drop and recreate all database tables",
	RunE:  runInitDB,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the merged product list as csv or xlsx",
	Long: `Writes every product of the merged view, the same list the storefront
shows, to the output file.

Example:
  storefront export --format xlsx -o products.xlsx`,
	RunE: runExport,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config yaml file")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or xlsx")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file, products.<format> when empty")
	rootCmd.AddCommand(serveCmd, initdbCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.AppConfig, *app.Application) {
	cfg := config.LoadConfig(configFile)
	application := app.NewApplication(cfg)
	application.Init(cfg)
	return cfg, application
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, application := setup()
	defer application.Release()

	webserver.Init(cfg)
	adminapi.Init(application)

	errCh := make(chan error, 1)
	go func() {
		errCh <- webserver.Listen()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		zap.S().Infof("received %s, shutting down", s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return webserver.Shutdown(ctx)
}

func runInitDB(cmd *cobra.Command, args []string) error {
	_, application := setup()
	defer application.Release()
	application.InitDb()
	zap.S().Info("database tables recreated")
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	format := strings.ToLower(strings.TrimSpace(exportFormat))
	if format != "csv" && format != "xlsx" {
		return fmt.Errorf("unsupported export format %q", exportFormat)
	}
	cfg, application := setup()
	defer application.Release()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RemoteTimeout())
	defer cancel()
	products := application.Engine().Refresh(ctx)

	output := exportOutput
	if output == "" {
		output = "products." + format
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()

	write := catalog.WriteCSV
	if format == "xlsx" {
		write = catalog.WriteXLSX
	}
	if err := write(f, products); err != nil {
		return err
	}
	zap.S().Infof("exported %d products to %s", len(products), output)
	return nil
}
