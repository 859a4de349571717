// Package cli provides the command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/bifrost/internal/config"
	"github.com/leapstack-labs/bifrost/pkg/bifrost"
	"github.com/leapstack-labs/bifrost/pkg/dialect"
	"github.com/leapstack-labs/bifrost/pkg/llm"
	"github.com/leapstack-labs/bifrost/pkg/log"
	"github.com/leapstack-labs/bifrost/pkg/safesql"

	// Register the builtin dialects
	_ "github.com/leapstack-labs/bifrost/pkg/dialects/mysql"
	_ "github.com/leapstack-labs/bifrost/pkg/dialects/postgres"
	_ "github.com/leapstack-labs/bifrost/pkg/dialects/sqlite"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  log.Logger
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bifrost",
		Short: "Bifrost - trusted SQL from untrusted language models",
		Long: `Bifrost asks an LLM to translate a natural-language request into a
SELECT statement, then proves by static analysis that executing it cannot
disclose data outside an allowlist policy. Statements are accepted,
repaired, or rejected with a typed error.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			var err error
			if cfgFile != "" {
				cfg, err = config.Load(cfgFile)
			} else {
				cfg, err = config.LoadFromDir(".")
			}
			if err != nil {
				return err
			}
			if cfg == nil {
				return fmt.Errorf("no %s found; pass --config", config.ConfigFileName)
			}

			logger, err = log.NewLogger(cfg.Log.Format, cfg.Log.Level, os.Stdout, os.Stderr)
			return err
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to bifrost.yaml")

	rootCmd.AddCommand(newQueryCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPoliciesCmd())

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

// buildBifrost assembles a Bifrost from the loaded config.
func buildBifrost() (*bifrost.Bifrost, error) {
	d, ok := dialect.Get(cfg.Dialect)
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q (have: %v)", cfg.Dialect, dialect.List())
	}

	policies, err := compilePolicies()
	if err != nil {
		return nil, err
	}

	schema, err := cfg.Schema()
	if err != nil {
		return nil, err
	}

	var integration llm.Integration
	switch cfg.LLM.Provider {
	case "echo":
		integration = llm.Echo{}
	case "openai":
		apiKey := cfg.LLM.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		integration = llm.NewClient(llm.ClientConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      apiKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	return bifrost.New(bifrost.Config{
		LLM:      integration,
		Envelope: &bifrost.SQLEnvelope{Schema: schema, Dialect: d, Policies: policies},
		Dialect:  d,
		Policies: policies,
		Logger:   logger,
	})
}

func compilePolicies() ([]safesql.Policy, error) {
	if len(cfg.Policies) == 0 {
		return nil, fmt.Errorf("config declares no policies")
	}
	policies := make([]safesql.Policy, 0, len(cfg.Policies))
	for _, pc := range cfg.Policies {
		rs, err := pc.Compile()
		if err != nil {
			return nil, err
		}
		policies = append(policies, rs)
	}
	return policies, nil
}
