package sql

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/utils/tests"

	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/repo"
)

// dryRunDB builds statements without a live connection, so these tests pin
// the SQL the dialect renders for each condition shape.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(tests.DummyDialector{}, &gorm.Config{DryRun: true})
	require.NoError(t, err)

	return db
}

func selectSQL(t *testing.T, query repo.Query) (string, []any) {
	t.Helper()

	db, err := applyConditions(dryRunDB(t).Table("residents"), query)
	require.NoError(t, err)

	var rows []model.Resident

	stmt := db.Find(&rows).Statement

	return stmt.SQL.String(), stmt.Vars
}

func TestApplyConditions(t *testing.T) {
	t.Run("Should render scalar equality", func(t *testing.T) {
		orgID := uuid.New()

		sql, vars := selectSQL(t, *repo.NewQuery().Where(repo.OrganizationIDField, orgID))
		assert.Contains(t, sql, "organization_id = ?")
		assert.Equal(t, []any{orgID}, vars)
	})

	t.Run("Should expand a slice into an IN list", func(t *testing.T) {
		homeIDs := []uuid.UUID{uuid.New(), uuid.New()}

		sql, vars := selectSQL(t, *repo.NewQuery().Where(repo.HomeIDField, homeIDs))
		assert.Contains(t, sql, "home_id IN (?,?)")
		assert.NotContains(t, sql, "home_id = ")
		assert.Len(t, vars, 2)
	})

	t.Run("Should keep inequality scalar", func(t *testing.T) {
		sql, _ := selectSQL(t, *repo.NewQuery().WhereOp(repo.StateField, repo.NotEqual, "COMPLETE"))
		assert.Contains(t, sql, "state != ?")
	})

	t.Run("Should match null or zero valued columns", func(t *testing.T) {
		sql, vars := selectSQL(t, *repo.NewQuery().WhereNull(repo.OrganizationIDField, uuid.Nil))
		assert.Contains(t, sql, "organization_id IS NULL OR organization_id = ?")
		assert.Equal(t, []any{uuid.Nil}, vars)
	})

	t.Run("Should reject unsupported operators", func(t *testing.T) {
		_, err := applyConditions(dryRunDB(t), *repo.NewQuery().
			WhereOp(repo.StateField, repo.ComparisonOp(">"), 1),
		)
		assert.ErrorIs(t, err, repo.ErrGetResource)
	})
}

func TestPatchAddressing(t *testing.T) {
	t.Run("Should address the row by the condition id and tenant", func(t *testing.T) {
		entry := &model.CareLog{ID: uuid.New(), Kind: "note"}
		checkedID := uuid.New()
		orgID := uuid.New()

		db, err := applyConditions(dryRunDB(t).Model(entry), *repo.NewQuery().
			Where(repo.IDField, checkedID).
			Where(repo.OrganizationIDField, orgID),
		)
		require.NoError(t, err)

		stmt := db.Updates(entry).Statement
		sql := stmt.SQL.String()

		// The condition id and the entity's primary key both constrain the
		// write; an entity carrying a different key matches no row.
		assert.Contains(t, sql, "care_logs")
		assert.Contains(t, sql, "id = ?")
		assert.Contains(t, sql, "organization_id = ?")
		assert.Contains(t, stmt.Vars, checkedID)
		assert.Contains(t, stmt.Vars, orgID)
		assert.Contains(t, stmt.Vars, entry.ID)
	})
}

func TestIsSlice(t *testing.T) {
	assert.True(t, isSlice([]uuid.UUID{uuid.New()}))
	assert.True(t, isSlice([]string{"a"}))
	assert.False(t, isSlice(uuid.New()))
	assert.False(t, isSlice([]byte("raw")))
	assert.False(t, isSlice("a"))
	assert.False(t, isSlice(nil))
}
