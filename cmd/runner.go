package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/givecrm/internal/repositories"
	"github.com/desertthunder/givecrm/internal/services"
	"github.com/desertthunder/givecrm/internal/shared"
	"github.com/desertthunder/givecrm/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	crm        services.CRM
	plans      services.PlanLookup
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	engine     *tasks.DonationEngine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	CRM        services.CRM        // defaults to a [services.CRMClient] built from Config.CRM
	Plans      services.PlanLookup // defaults to a [services.PlanClient] when a platform API key is set
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.CRM == nil {
		opts.CRM = services.NewCRMClient(opts.Config.CRM, opts.HTTPClient)
	}
	if opts.Plans == nil && opts.Config.Platform.APIKey != "" {
		opts.Plans = services.NewPlanClient(opts.Config.Platform, opts.HTTPClient)
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		crm:        opts.CRM,
		plans:      opts.Plans,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
	r.engine = tasks.NewDonationEngine(r.config, r.crm, r.plans, r.logger)
	return r
}

// SetLogger replaces the runner's logger and rebuilds the engine around it.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
	r.engine = tasks.NewDonationEngine(r.config, r.crm, r.plans, logger)
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, crmCommand, deliveriesCommand, signCommand, testCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// openDeliveries opens the configured delivery log. The returned func closes the database.
func (r *Runner) openDeliveries() (*repositories.DeliveryRepository, func(), error) {
	if r.config.Database.Path == "" {
		return nil, nil, fmt.Errorf("%w: database.path is not set", shared.ErrMissingConfig)
	}

	db, err := shared.OpenDeliveryLog(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open delivery log: %w", err)
	}

	closeFn := func() {
		if err := db.Close(); err != nil {
			r.logger.Warn("failed to close delivery log", "error", err)
		}
	}
	return repositories.NewDeliveryRepository(db), closeFn, nil
}

// drainProgress prints updates until ch is closed. The returned channel closes once every
// update has been written.
func (r *Runner) drainProgress(ch <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range ch {
			r.writePlain("  %s\n", update.Message)
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
