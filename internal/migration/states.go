package migration

import (
	"github.com/looplab/fsm"

	"github.com/careloop/careloop/internal/model"
)

// Transition names a forward step of the tenant migration machine. The
// machine is strictly linear; there are no backward events, rollback is a
// separate operation executed against a backup.
type Transition string

const (
	TransitionPrepareSchema      Transition = "prepare_schema"
	TransitionBackfill           Transition = "backfill"
	TransitionVerifyBackfill     Transition = "verify_backfill"
	TransitionBackfillDocuments  Transition = "backfill_documents"
	TransitionMigrateBlobPaths   Transition = "migrate_blob_paths"
	TransitionTightenConstraints Transition = "tighten_constraints"
	TransitionRetireLegacyRoles  Transition = "retire_legacy_roles"
	TransitionComplete           Transition = "complete"
)

func (t Transition) String() string {
	return string(t)
}

type step struct {
	transition Transition
	source     model.MigrationState
	target     model.MigrationState
}

// steps defines the machine in execution order. Everything up to and
// including the blob path step is re-runnable; tightening constraints is the
// point of no return.
var steps = []step{
	{TransitionPrepareSchema, model.StateNotStarted, model.StateSchemaPrepared},
	{TransitionBackfill, model.StateSchemaPrepared, model.StateBackfilling},
	{TransitionVerifyBackfill, model.StateBackfilling, model.StateBackfillVerified},
	{TransitionBackfillDocuments, model.StateBackfillVerified, model.StateDocumentStoreBackfilled},
	{TransitionMigrateBlobPaths, model.StateDocumentStoreBackfilled, model.StateBlobPathsMigrated},
	{TransitionTightenConstraints, model.StateBlobPathsMigrated, model.StateConstraintsTightened},
	{TransitionRetireLegacyRoles, model.StateConstraintsTightened, model.StateLegacyRolesRetired},
	{TransitionComplete, model.StateLegacyRolesRetired, model.StateComplete},
}

func newStateMachine(current model.MigrationState) *fsm.FSM {
	events := make(fsm.Events, 0, len(steps))
	for _, s := range steps {
		events = append(events, fsm.EventDesc{
			Name: s.transition.String(),
			Src:  []string{s.source.String()},
			Dst:  s.target.String(),
		})
	}

	return fsm.NewFSM(current.String(), events, fsm.Callbacks{})
}

// NextTransition returns the forward step applicable from the given state,
// or false when the migration is complete.
func NextTransition(state model.MigrationState) (Transition, bool) {
	for _, s := range steps {
		if s.source == state {
			return s.transition, true
		}
	}

	return "", false
}
