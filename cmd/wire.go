package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/roundtable"
	"github.com/hupe1980/roundtable/config"
)

type app struct {
	cfg *config.Config
	rt  *roundtable.Roundtable
}

func wireApp(opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.v, opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	rt, err := roundtable.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire roundtable: %w", err)
	}

	return &app{cfg: cfg, rt: rt}, nil
}

// withApp wires the application for a single command and releases it afterwards.
func withApp(opts *rootOptions, fn func(cmd *cobra.Command, args []string, app *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := wireApp(opts)
		if err != nil {
			return err
		}
		defer app.rt.Close()

		return fn(cmd, args, app)
	}
}
