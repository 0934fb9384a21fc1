package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/givecrm/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the delivery log and runs migrations.
//
// A missing config file is created from the embedded template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if !cmd.IsSet("config") && r.configPath != "" {
		configPath = r.configPath
	}

	config := r.config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using current settings", "error", err)
			config = r.config
		} else {
			config.ApplyEnv()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using current settings", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
		}
	}

	if config.Database.Path == "" {
		return fmt.Errorf("%w: database.path is not set", shared.ErrMissingConfig)
	}

	r.logger.Info("initializing delivery log", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("✓ Delivery log ready at %s\n", config.Database.Path)
	return nil
}

// SetupConfig writes the embedded config template to --output.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	outputPath := cmd.String("output")
	if outputPath == "" {
		return fmt.Errorf("%w: --output must not be empty", shared.ErrMissingArgument)
	}

	if err := shared.CreateConfigFile(outputPath); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", outputPath)
	r.writePlain("✓ Config written to %s\n", outputPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set crm.base_url and the financial type tables in %s\n", outputPath)
	r.writePlain("2. Put WEBHOOK_SECRET, CIVICRM_SITE_KEY and CIVICRM_API_KEY in .env\n")
	r.writePlain("3. Run 'givecrm setup database' and then 'givecrm serve'\n")
	return nil
}
