// Package tasks forwards payment platform transactions to the CRM with real-time progress reporting.
//
// # Core Operations
//
// [DonationEngine] implements [Processor]. [DonationEngine.Run] performs, strictly in sequence:
//
//  1. [ContactResolver.Resolve] : find the donor's contact by email, or create it
//     - Resolution is serialized per email inside the process
//  2. [ContributionBuilder.Build] : create the contribution
//     - The financial type comes from [FinancialTypes]: a per-campaign policy, then the default
//     - The local area policy reads the transaction's custom field, then the contact's stored value
//  3. [ContactResolver.UpdateLocalArea] : store a newly supplied local area on the contact
//  4. [MembershipManager.Upsert] : renew or create the membership window for the donation
//
// Steps 3 and 4 are best effort: failures are logged and never fail the run.
//
// # Memberships
//
// [MembershipManager.TermFor] maps recurrence to a membership type and duration. [Window] starts
// a renewal at today or the day after the current window ends, whichever is later.
//
// # Replay
//
// [DonationEngine.Replay] re-processes failed deliveries from the delivery log, paced with a
// [rate.Limiter].
//
// # Progress Reporting
//
// # All operations use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
package tasks
