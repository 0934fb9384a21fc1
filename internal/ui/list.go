package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/givecrm/internal/models"
)

var (
	_ list.Item = deliveryItem{}
)

// deliveryItem wraps [models.Delivery] to implement [list.Item].
type deliveryItem struct {
	delivery *models.Delivery
}

func (i deliveryItem) FilterValue() string {
	return i.delivery.Email() + " " + i.delivery.TransactionID()
}

func (i deliveryItem) Title() string {
	d := i.delivery
	title := fmt.Sprintf("#%d %s", d.Sequence(), d.Event())
	if d.TransactionID() != "" {
		title = fmt.Sprintf("%s • %s", title, d.TransactionID())
	}
	return title
}

func (i deliveryItem) Description() string {
	d := i.delivery
	desc := fmt.Sprintf("%s • %s", d.CreatedAt().Format("2006-01-02 15:04:05"), d.Status())
	if d.Email() != "" {
		desc = fmt.Sprintf("%s • %s", desc, d.Email())
	}
	if d.ErrorMessage() != "" {
		desc = fmt.Sprintf("%s • %s", desc, d.ErrorMessage())
	}
	return desc
}
