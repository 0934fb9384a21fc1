package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/givecrm/internal/server"
	"github.com/desertthunder/givecrm/internal/shared"
	"github.com/desertthunder/givecrm/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sign prints the signature header a platform would send for the body in --file.
func (r *Runner) Sign(ctx context.Context, cmd *cli.Command) error {
	if r.config.Webhook.Secret == "" {
		return fmt.Errorf("%w: webhook secret is not set (WEBHOOK_SECRET)", shared.ErrMissingCredentials)
	}

	body, err := os.ReadFile(cmd.String("file"))
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}

	provider := strings.TrimSpace(cmd.String("provider"))
	if provider == "" {
		provider = r.config.Server.Provider
	}

	return r.writePlain("%s: %s\n", server.SignatureHeader(provider), server.Sign(r.config.Webhook.Secret, body))
}

// Test pushes the synthetic one-time donation through the engine and prints the CRM ids.
func (r *Runner) Test(ctx context.Context, cmd *cli.Command) error {
	txn := tasks.SyntheticTransaction()

	r.logger.Info("sending test donation", "transaction_id", txn.ID.String(), "crm_url", r.config.CRM.BaseURL)
	r.writePlain("Sending test donation %s...\n\n", txn.ID)

	progressCh := make(chan tasks.ProgressUpdate, 10)
	done := r.drainProgress(progressCh)

	result, err := r.engine.Run(ctx, progressCh, txn)
	close(progressCh)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Test Complete")
	r.writePlain("Contact:        %d\n", result.Contact.ID)
	r.writePlain("Contribution:   %d\n", result.Contribution.ID)
	r.writePlain("Financial type: %d (%s)\n", result.FinancialType.ID, result.FinancialType.Policy)
	if id := result.MembershipID(); id > 0 {
		r.writePlain("Membership:     %d\n", id)
	}
	return nil
}
