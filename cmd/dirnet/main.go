package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dirnet/api/httpserver"
	"dirnet/pkg/config"
	"dirnet/pkg/directory"
	"dirnet/pkg/keys"
	"dirnet/pkg/record"
	"dirnet/pkg/types"
)

var (
	configFile string
	verbose    bool
	relayFlags []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dirnet",
		Short: "Service directory over a relay network",
		Long: `Discover, publish and score service listings held by independently
operated relays. All reads and writes fan out across the configured
relay set and tolerate any subset of relays being unreachable.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringSliceVarP(&relayFlags, "relay", "r", nil, "relay URL (repeatable, overrides config)")

	rootCmd.AddCommand(
		findCmd(),
		getCmd(),
		publishCmd(),
		removeCmd(),
		attestCmd(),
		whoamiCmd(),
		gatewayCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration from --config, the environment, and
// --relay overrides, in that order.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.LoadFromEnv()
	}
	if len(relayFlags) > 0 {
		cfg.Relays = relayFlags
	}
	if len(cfg.Relays) == 0 {
		return nil, fmt.Errorf("no relays configured (use --relay, --config or DIRNET_RELAYS)")
	}
	return cfg, nil
}

func openDirectory(logger *zap.Logger) (*directory.Directory, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return directory.New(cfg.Relays, cfg.Timeout(), logger), cfg, nil
}

func findCmd() *cobra.Command {
	var (
		caps      []string
		hashtags  []string
		reqKinds  []string
		maxPrice  int64
		minTrust  int
		withTrust bool
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find service listings across the relay set",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			dir, _, err := openDirectory(logger)
			if err != nil {
				return err
			}

			services := dir.FindServices(context.Background(), directory.FindQuery{
				Capabilities: caps,
				Hashtags:     hashtags,
				RequestKinds: reqKinds,
				MaxPrice:     maxPrice,
				MinTrust:     minTrust,
				Scored:       withTrust || minTrust > 0,
				Limit:        limit,
			})

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(services)
			}
			fmt.Println(renderServiceTable(services, withTrust || minTrust > 0))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&caps, "cap", nil, "required capability (repeatable)")
	cmd.Flags().StringSliceVarP(&hashtags, "tag", "t", nil, "required hashtag (repeatable)")
	cmd.Flags().StringSliceVarP(&reqKinds, "kind", "k", nil, "accepted request kind (repeatable)")
	cmd.Flags().Int64Var(&maxPrice, "max-price", 0, "maximum listed price (0 = no ceiling)")
	cmd.Flags().IntVar(&minTrust, "min-trust", 0, "minimum trust score (0 = no floor)")
	cmd.Flags().BoolVar(&withTrust, "trust", false, "attach trust scores")
	cmd.Flags().IntVar(&limit, "limit", 0, "ask relays for at most this many records each")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit raw JSON")
	return cmd
}

func getCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get <owner> <name>",
		Short: "Get the current listing for one service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			dir, _, err := openDirectory(logger)
			if err != nil {
				return err
			}

			svc := dir.GetService(context.Background(), types.OwnerID(args[0]), args[1])
			if svc == nil {
				return fmt.Errorf("no relay holds a listing for %s/%s", args[0], args[1])
			}
			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(svc)
			}
			fmt.Println(renderServicePanel(svc))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "emit raw JSON")
	return cmd
}

func publishCmd() *cobra.Command {
	var (
		name     string
		about    string
		caps     []string
		hashtags []string
		reqKinds []string
		price    int64
		unit     string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish or update a service listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			dir, cfg, err := openDirectory(logger)
			if err != nil {
				return err
			}
			kp, err := keys.LoadOrGenerate(cfg.KeyFile)
			if err != nil {
				return err
			}

			svc := &record.Service{
				Name:         name,
				About:        about,
				Capabilities: caps,
				Hashtags:     hashtags,
				RequestKinds: reqKinds,
				PriceAmount:  price,
				PriceUnit:    unit,
			}
			outcome, err := dir.PublishService(context.Background(), svc, kp.Private)
			if err != nil {
				return err
			}
			fmt.Println(renderOutcome("publish", outcome))
			if outcome.AllFailed() {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "service name (replaceable identity discriminator)")
	cmd.Flags().StringVar(&about, "about", "", "human-readable description")
	cmd.Flags().StringSliceVar(&caps, "cap", nil, "offered capability (repeatable)")
	cmd.Flags().StringSliceVarP(&hashtags, "tag", "t", nil, "hashtag (repeatable)")
	cmd.Flags().StringSliceVarP(&reqKinds, "kind", "k", nil, "accepted request kind (repeatable)")
	cmd.Flags().Int64Var(&price, "price", 0, "listed price amount")
	cmd.Flags().StringVar(&unit, "unit", "", "price unit")
	cmd.MarkFlagRequired("name")
	return cmd
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <record-id>",
		Short: "Publish a deletion for one of your listings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			dir, cfg, err := openDirectory(logger)
			if err != nil {
				return err
			}
			kp, err := keys.Load(cfg.KeyFile)
			if err != nil {
				return err
			}

			outcome, err := dir.RemoveService(context.Background(), types.RecordID(args[0]), kp.Private)
			if err != nil {
				return err
			}
			fmt.Println(renderOutcome("remove", outcome))
			if outcome.AllFailed() {
				os.Exit(1)
			}
			return nil
		},
	}
}

func attestCmd() *cobra.Command {
	var (
		claim   string
		comment string
	)

	cmd := &cobra.Command{
		Use:   "attest <owner>",
		Short: "Publish a trust attestation about another identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			dir, cfg, err := openDirectory(logger)
			if err != nil {
				return err
			}
			kp, err := keys.LoadOrGenerate(cfg.KeyFile)
			if err != nil {
				return err
			}
			if kp.OwnerID() == args[0] {
				return fmt.Errorf("self-attestations are never counted; refusing to publish one")
			}

			outcome, err := dir.PublishAttestation(context.Background(), types.OwnerID(args[0]), claim, comment, kp.Private)
			if err != nil {
				return err
			}
			fmt.Println(renderOutcome("attest", outcome))
			if outcome.AllFailed() {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&claim, "claim", record.ClaimGeneralTrust,
		"claim type (service-quality, work-completed, identity-continuity, general-trust)")
	cmd.Flags().StringVar(&comment, "comment", "", "free-form comment")
	return cmd
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the local signing identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigLenient()
			if err != nil {
				return err
			}
			kp, err := keys.LoadOrGenerate(cfg.KeyFile)
			if err != nil {
				return err
			}
			fmt.Println(kp.OwnerID())
			return nil
		},
	}
}

// loadConfigLenient is loadConfig without the relay requirement; key-only
// commands work without any relay configured.
func loadConfigLenient() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	return config.LoadFromEnv(), nil
}

func gatewayCmd() *cobra.Command {
	var (
		listenAddr  string
		enablePprof bool
	)

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Serve the directory over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := setupLogger(verbose)
			defer logger.Sync()

			dir, cfg, err := openDirectory(logger)
			if err != nil {
				return err
			}
			kp, err := keys.LoadOrGenerate(cfg.KeyFile)
			if err != nil {
				return err
			}

			addr := cfg.Gateway.ListenAddr
			if listenAddr != "" {
				addr = listenAddr
			}

			srv := httpserver.New(&httpserver.Config{
				ListenAddr:    addr,
				EnablePprof:   enablePprof || cfg.Gateway.EnablePprof,
				DrainDuration: 2 * time.Second,
				ReadTimeout:   10 * time.Second,
				WriteTimeout:  30 * time.Second,
				Log:           logger,
			}, httpserver.NewDirectoryHandler(dir, kp, logger))
			srv.RunInBackground()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&enablePprof, "pprof", false, "enable the pprof debugging API")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("dirnet v0.1.0")
		},
	}
}

func setupLogger(verbose bool) *zap.Logger {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, _ := config.Build()
	return logger
}
