package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ChicagoDave/popglobe/internal/config"
	"github.com/ChicagoDave/popglobe/internal/logging"
)

var (
	configPath string
	logLevel   string
	settings   *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "popglobe",
		Short:        "Population globe: topology decoding, entity hierarchy and interactive scene",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// A missing .env is fine.
			_ = godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logging.Setup(cfg.Log.Level, cfg.Log.Format)
			settings = cfg
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "popglobe.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(decodeCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(sceneCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func decodeCmd() *cobra.Command {
	var object string

	cmd := &cobra.Command{
		Use:   "decode [topology-url-or-path]",
		Short: "Decode a TopoJSON object into a GeoJSON FeatureCollection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(cmd.Context(), args[0], object)
		},
	}

	cmd.Flags().StringVarP(&object, "object", "o", "countries", "topology object name")
	return cmd
}

func listCmd() *cobra.Command {
	var expand []string

	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "Print the sorted country list, optionally filtered by a query",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return runList(cmd.Context(), query, expand)
		},
	}

	cmd.Flags().StringSliceVarP(&expand, "expand", "e", nil, "expand countries (ISO) or US states (FIPS)")
	return cmd
}

func validateCmd() *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the entity hierarchy and bundled county data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd.Context(), at)
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "only report the error at this path, e.g. countries[3].iso")
	return cmd
}

func sceneCmd() *cobra.Command {
	var height float64

	cmd := &cobra.Command{
		Use:   "scene",
		Short: "Load every layer and print the scene graph as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScene(cmd.Context(), height)
		},
	}

	cmd.Flags().Float64Var(&height, "height", 0, "camera height in meters (default from config)")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and redraw feed for a browser renderer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				settings.Server.Port = port
			}
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 3000, "HTTP server port")
	return cmd
}
