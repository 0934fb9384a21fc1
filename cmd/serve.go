package main

import (
	"context"

	"github.com/desertthunder/givecrm/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the webhook server until the context is cancelled.
//
// Deliveries are recorded when database.path is set, unless --no-log is given.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if host := cmd.String("host"); host != "" {
		r.config.Server.Host = host
	}
	if cmd.IsSet("port") {
		r.config.Server.Port = cmd.Int("port")
	}

	var deliveries server.DeliveryLog
	if r.config.Database.Path != "" && !cmd.Bool("no-log") {
		repo, closeFn, err := r.openDeliveries()
		if err != nil {
			return err
		}
		defer closeFn()
		deliveries = repo
		r.logger.Info("recording deliveries", "path", r.config.Database.Path)
	} else {
		r.logger.Warn("delivery log disabled")
	}

	handler := server.NewWebhookHandler(r.config, r.engine, deliveries, r.logger)
	router := server.NewRouter(handler, r.logger)

	r.logger.Info("starting webhook server",
		"addr", r.config.Server.Addr(),
		"provider", r.config.Server.Provider,
		"crm_url", r.config.CRM.BaseURL,
		"signature_required", r.config.Webhook.RequireSignature,
	)

	return server.New(r.config.Server.Addr(), router, r.logger).Run(ctx)
}
