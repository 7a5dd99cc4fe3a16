package cmd

import (
	"context"
	"fmt"

	"github.com/ethpandaops/ephemeris/pkg/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "./config.yaml"

// loadConfig reads --config, or ./config.yaml when present. The file's
// logging level applies unless --log-level was given explicitly.
func loadConfig(cmd *cobra.Command) (*service.Config, error) {
	path, optional := cfgFile, false
	if path == "" {
		path, optional = defaultConfigFile, true
	}

	config, err := service.LoadConfig(path, optional)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !cmd.Flags().Changed("log-level") {
		level, err := logrus.ParseLevel(config.Logging)
		if err != nil {
			return nil, fmt.Errorf("invalid logging level: %w", err)
		}

		logger.SetLevel(level)
	}

	return config, nil
}

// openCore builds the query stack and waits for the engine library to load.
func openCore(ctx context.Context, config *service.Config) (*service.Core, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	core, err := service.NewCore(logger, config, nil)
	if err != nil {
		return nil, err
	}

	core.Bridge.Load(ctx, config.Engine.LibraryLoader())

	if err := core.Bridge.Wait(ctx); err != nil {
		_ = core.Close()
		return nil, err
	}

	return core, nil
}
