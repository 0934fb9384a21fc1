// Package ui implements an interactive delivery log browser using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow over received webhooks:
//  1. [DeliveryListView] : Browse deliveries, newest first, optionally only failed ones
//  2. [DetailView] : Inspect one delivery with its CRM identifiers and raw payload
//  3. [ConfirmView] : Confirm replaying the selected delivery
//  4. [ReplayView] : Monitor real-time progress updates
//  5. [ResultView] : Display the replay outcome
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the DonationEngine, providing non-blocking status reporting during replays.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, r, f, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
