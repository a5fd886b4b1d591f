package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/roundtable/config"
)

// Version is set at build time.
var Version = "dev"

func Execute() error {
	return ExecuteContext(context.Background())
}

func ExecuteContext(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

type rootOptions struct {
	configPath string
	v          *viper.Viper
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"provider":  "model.provider",
	"model":     "model.name",
	"store":     "store.driver",
	"db":        "store.path",
	"log-level": "log.level",
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:           "roundtable",
		Short:         "Roundtable: moderated discussions between you and AI panelists",
		Long:          "roundtable runs turn-based discussions between a human and a panel of AI bots, keeps a rolling summary and analysis of the debate, and stores every session so it can be resumed later.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Config file (default "+config.DefaultPath()+")")
	flags.String("provider", "", "Model provider: ollama, openai, anthropic or mock")
	flags.String("model", "", "Model name")
	flags.String("store", "", "Session store driver: sqlite, json or memory")
	flags.String("db", "", "SQLite database path")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	for name, key := range flagKeys {
		_ = opts.v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newConfigCmd(opts),
		newPingCmd(opts),
		newRunCmd(opts),
		newResumeCmd(opts),
		newSessionsCmd(opts),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(Version + "\n"))
			return err
		},
	}
}
