// Package models defines domain entities and persistence interfaces for the givecrm forwarding service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): structs decoded from webhook payloads or mirrored from the CRM
//   - [WebhookEvent] : The inbound envelope ({event, data})
//   - [Transaction] : A payment platform transaction with donor fields and custom fields
//   - [Donor] : Flattened donor identity used for contact resolution
//   - [Contact] : A CRM contact with its stored local area
//   - [Contribution] : A CRM contribution payload
//   - [Membership] : A CRM membership window
//   - [Plan] : A payment platform recurring plan
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [Delivery] : One received webhook and the outcome of processing it
//
// Persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
