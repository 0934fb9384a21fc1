package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/givecrm/internal/shared"
	"github.com/urfave/cli/v3"
)

// CRMCall performs one entity/action call and prints the decoded response.
func (r *Runner) CRMCall(ctx context.Context, cmd *cli.Command) error {
	entity := strings.TrimSpace(cmd.StringArg("entity"))
	action := strings.TrimSpace(cmd.StringArg("action"))
	if entity == "" || action == "" {
		return fmt.Errorf("%w: usage: givecrm crm call <entity> <action>", shared.ErrMissingArgument)
	}

	params := map[string]any{}
	if raw := cmd.String("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return fmt.Errorf("%w: params is not a JSON object: %v", shared.ErrInvalidInput, err)
		}
	}

	r.logger.Info("CRM call", "entity", entity, "action", action)

	resp, err := r.crm.Call(ctx, entity, action, params)
	if err != nil {
		return err
	}
	return r.writeJSON(resp.Data, cmd.Bool("pretty"))
}

// CRMContact looks up a contact by email using the same matching as the webhook pipeline.
func (r *Runner) CRMContact(ctx context.Context, cmd *cli.Command) error {
	email := cmd.StringArg("email")
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("%w: usage: givecrm crm contact <email>", shared.ErrMissingArgument)
	}

	contact, err := r.engine.Contacts().Find(ctx, email)
	if errors.Is(err, shared.ErrContactNotFound) {
		r.writePlain("No contact found for %s\n", shared.NormalizeEmail(email))
		return nil
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(contact, true)
	}

	r.writePlainHeader(fmt.Sprintf("Contact %d", contact.ID))
	r.writePlain("Email:      %s\n", contact.Email)
	r.writePlain("Name:       %s %s\n", contact.FirstName, contact.LastName)
	if contact.Phone != "" {
		r.writePlain("Phone:      %s\n", contact.Phone)
	}
	if contact.LocalArea != "" {
		r.writePlain("Local area: %s\n", contact.LocalArea)
	}
	return nil
}
