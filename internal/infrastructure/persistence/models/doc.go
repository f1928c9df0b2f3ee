// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities should be free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Mappers convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: Base persistence models (BaseModel, AggregateModel)
// - account.go: Chart of accounts nodes
// - tax.go: Tax rules
// - inventory.go: Stock levels, the movement ledger, batches and holds
// - journal.go: Journal entries, lines and clearings
// - document.go: Business documents and their lines
//
// Stock levels store unbatched stock under the nil UUID so that
// (material_id, warehouse_id, batch_id) can be a plain unique key.
package models
