package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/skillgate/internal/observability"
	"github.com/hrygo/skillgate/internal/profile"
	"github.com/hrygo/skillgate/plugin/ai/agent"
	"github.com/hrygo/skillgate/server"
	"github.com/hrygo/skillgate/store"
	"github.com/hrygo/skillgate/store/db"
)

var version = "0.1.0"

var (
	instanceProfile *profile.Profile

	rootCmd = &cobra.Command{
		Use:   "skillgate",
		Short: "A skill-routed analytics chat gateway over a sales warehouse.",
		Long: `skillgate routes each question to a skill by its trigger patterns, answers
from a two-level response cache when it can, and otherwise drives the model
through a bounded tool-calling loop over the warehouse.

Examples:
  skillgate serve --mode demo
  skillgate chat
  skillgate route "top products last quarter"
  skillgate skills`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			p, err := loadProfile()
			if err != nil {
				return err
			}
			instanceProfile = p
			return nil
		},
		RunE: runServe,
	}
)

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (yaml, json or toml)")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		panic(err)
	}
	if err := profile.BindFlags(rootCmd.PersistentFlags(), viper.GetViper()); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newRouteCmd(),
		newSkillsCmd(),
		newIndexCmd(),
	)
}

// loadProfile resolves flags, environment and the optional config file, and
// installs the configured logger.
func loadProfile() (*profile.Profile, error) {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", cfgFile)
		}
	}

	p := profile.FromViper(viper.GetViper())
	p.Version = version
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	logger, err := observability.NewLogger(os.Stderr, p.LogLevel, p.LogFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return p, nil
}

// openStore connects to the database and applies the schema, seeding the
// demo warehouse in demo mode.
func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	storeInstance := store.New(dbDriver, p)
	if err := storeInstance.Migrate(ctx); err != nil {
		storeInstance.Close()
		return nil, errors.Wrap(err, "failed to migrate")
	}
	return storeInstance, nil
}

// openAgent opens the store and builds the agent over it.
func openAgent(ctx context.Context, p *profile.Profile) (*store.Store, *agent.Agent, error) {
	storeInstance, err := openStore(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	a, err := agent.NewFromProfile(ctx, p, storeInstance, nil)
	if err != nil {
		storeInstance.Close()
		return nil, nil, err
	}
	return storeInstance, a, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	storeInstance, a, err := openAgent(ctx, instanceProfile)
	if err != nil {
		return err
	}

	s, err := server.NewServer(ctx, instanceProfile, storeInstance, a)
	if err != nil {
		a.Close()
		storeInstance.Close()
		return errors.Wrap(err, "failed to create server")
	}

	c := make(chan os.Signal, 1)
	// Trigger graceful shutdown on SIGINT or SIGTERM.
	// The default signal sent by the `kill` command is SIGTERM,
	// which is taken as the graceful shutdown signal for many systems, eg., Kubernetes, Gunicorn.
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := s.Start(ctx); err != nil {
		s.Shutdown(ctx)
		return errors.Wrap(err, "failed to start server")
	}

	printGreetings(cmd, instanceProfile)

	select {
	case <-c:
	case <-ctx.Done():
	}
	s.Shutdown(context.Background())
	return nil
}

func printGreetings(cmd *cobra.Command, p *profile.Profile) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "skillgate %s started successfully!\n", p.Version)
	fmt.Fprintf(out, "Data stored in %s (%s)\n", p.DSN, p.Driver)
	if p.Addr == "" {
		fmt.Fprintf(out, "Server running on port %d\n", p.Port)
	} else {
		fmt.Fprintf(out, "Server running on %s:%d\n", p.Addr, p.Port)
	}
	fmt.Fprintf(out, "Mode: %s, model: %s\n", p.Mode, p.LLMModel)
}

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
