package model

import (
	"github.com/google/uuid"
)

// MigrationState is the tenant migration state machine's persisted state.
// Transitions are one-directional; see internal/migration for the machine.
type MigrationState string

const (
	StateNotStarted              MigrationState = "NOT_STARTED"
	StateSchemaPrepared          MigrationState = "SCHEMA_PREPARED"
	StateBackfilling             MigrationState = "BACKFILLING"
	StateBackfillVerified        MigrationState = "BACKFILL_VERIFIED"
	StateDocumentStoreBackfilled MigrationState = "DOCUMENT_STORE_BACKFILLED"
	StateBlobPathsMigrated       MigrationState = "BLOB_PATHS_MIGRATED"
	StateConstraintsTightened    MigrationState = "CONSTRAINTS_TIGHTENED"
	StateLegacyRolesRetired      MigrationState = "LEGACY_ROLES_RETIRED"
	StateComplete                MigrationState = "COMPLETE"
)

func (s MigrationState) String() string {
	return string(s)
}

// MigrationRun is the one authoritative status record per migration run.
type MigrationRun struct {
	AutoTimeModel

	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Environment string         `gorm:"type:varchar(100);not null"`
	State       MigrationState `gorm:"type:varchar(50);not null"`
	RootOrgID   uuid.UUID      `gorm:"type:uuid"`
	LastError   string         `gorm:"type:text"`
}

func (MigrationRun) TableName() string {
	return "migration_runs"
}
