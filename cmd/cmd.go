// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/givecrm/internal/formatter"
	"github.com/urfave/cli/v3"
)

// serveCommand starts the webhook receiver
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the webhook HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.port)",
			},
			&cli.BoolFlag{
				Name:  "no-log",
				Usage: "Do not record deliveries even when database.path is set",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize the delivery log and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write a config.toml template",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path of the file to create",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// crmCommand handles direct CRM calls for debugging
func crmCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "crm",
		Usage: "Direct CRM API calls",
		Commands: []*cli.Command{
			{
				Name:  "call",
				Usage: "Call an entity/action and print the raw JSON response",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "entity"},
					&cli.StringArg{Name: "action"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "params",
						Aliases: []string{"d"},
						Usage:   "JSON object of call parameters",
						Value:   "{}",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.CRMCall,
			},
			{
				Name:  "contact",
				Usage: "Look up a contact by email",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "email"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CRMContact,
			},
		},
	}
}

// deliveriesCommand handles delivery log operations
func deliveriesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "deliveries",
		Aliases: []string{"log"},
		Usage:   "Inspect and replay recorded webhook deliveries",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent deliveries",
				Flags: append(filterFlags(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				),
				Action: r.DeliveriesList,
			},
			{
				Name:  "export",
				Usage: "Export deliveries to a file",
				Flags: append(filterFlags(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Export format (csv, json, markdown, text)",
						Value:   formatter.FormatCSV,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (default: deliveries.<ext>)",
					},
				),
				Action: r.DeliveriesExport,
			},
			{
				Name:  "replay",
				Usage: "Re-process failed deliveries",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "id",
						Usage: "Delivery id to replay (repeatable; default: all failed)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum deliveries to replay",
					},
					&cli.FloatFlag{
						Name:  "rate",
						Usage: "Deliveries per second",
						Value: 2,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Also replay deliveries that were already processed (creates another contribution)",
					},
				},
				Action: r.DeliveriesReplay,
			},
			{
				Name:  "purge",
				Usage: "Soft-delete deliveries older than a duration",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:     "older-than",
						Usage:    "Age threshold, e.g. 720h",
						Required: true,
					},
				},
				Action: r.DeliveriesPurge,
			},
			{
				Name:    "browse",
				Aliases: []string{"ui"},
				Usage:   "Interactive TUI for browsing and replaying deliveries",
				Action:  r.DeliveriesBrowse,
			},
		},
	}
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "status",
			Usage: "Filter by status (processed, failed, ignored, rejected)",
		},
		&cli.StringFlag{
			Name:  "email",
			Usage: "Filter by donor email",
		},
		&cli.StringFlag{
			Name:  "transaction",
			Usage: "Filter by transaction id",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of deliveries",
			Value: 50,
		},
	}
}

// signCommand computes a webhook signature header for a body
func signCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "Print the signature header for a webhook body",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Usage:    "Path to the JSON body",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Provider name used in the header (default: server.provider)",
			},
		},
		Action: r.Sign,
	}
}

// testCommand pushes the synthetic transaction through the engine
func testCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "test",
		Usage:  "Send a test donation to the CRM without the HTTP server",
		Action: r.Test,
	}
}
