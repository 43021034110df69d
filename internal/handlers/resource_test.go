package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/careloop/internal/access"
	"github.com/careloop/careloop/internal/auditor"
	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/handlers"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/policy"
	"github.com/careloop/careloop/internal/repo"
	"github.com/careloop/careloop/internal/repo/mock"
	"github.com/careloop/careloop/internal/session"
)

func setupResidentHandler(t *testing.T, sc *session.Context) (*handlers.ResourceHandler[model.Resident, *model.Resident], *mock.Repository) {
	t.Helper()

	repository := mock.NewRepository()
	engine := access.NewEngine(repository, auditor.New(nil, &config.Config{}))

	return handlers.NewResourceHandler[model.Resident](engine, &fakeSessions{resolveCtx: sc}, policy.KindResident), repository
}

func seedResident(t *testing.T, repository *mock.Repository, orgID uuid.UUID) *model.Resident {
	t.Helper()

	resident := &model.Resident{
		ID:             uuid.New(),
		OrganizationID: orgID,
		HomeID:         uuid.New(),
		GivenName:      "Ada",
		FamilyName:     "Lovelace",
		Active:         true,
	}
	require.NoError(t, repository.Create(context.Background(), resident))

	return resident
}

func TestResourceHandlerList(t *testing.T) {
	orgID := uuid.New()
	sc := session.NewContext(uuid.New(), orgID, model.RoleAdmin, nil)

	t.Run("Should list only the caller's organization", func(t *testing.T) {
		handler, repository := setupResidentHandler(t, sc)
		mine := seedResident(t, repository, orgID)
		seedResident(t, repository, uuid.New())

		rec := httptest.NewRecorder()
		handler.List(rec, sessionRequest(t, http.MethodGet, "/v1/residents", "", sc))

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Items []*model.Resident `json:"items"`
			Total int               `json:"total"`
		}
		decodeBody(t, rec, &body)
		require.Len(t, body.Items, 1)
		assert.Equal(t, mine.ID, body.Items[0].ID)
		assert.Equal(t, 1, body.Total)
	})

	t.Run("Should require a session", func(t *testing.T) {
		handler, _ := setupResidentHandler(t, sc)

		rec := httptest.NewRecorder()
		handler.List(rec, httptest.NewRequest(http.MethodGet, "/v1/residents", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestResourceHandlerGet(t *testing.T) {
	orgID := uuid.New()
	sc := session.NewContext(uuid.New(), orgID, model.RoleAdmin, nil)

	getRequest := func(t *testing.T, id uuid.UUID) *http.Request {
		t.Helper()

		r := sessionRequest(t, http.MethodGet, "/v1/residents/"+id.String(), "", sc)
		r.SetPathValue("id", id.String())

		return r
	}

	t.Run("Should return an in-tenant record", func(t *testing.T) {
		handler, repository := setupResidentHandler(t, sc)
		resident := seedResident(t, repository, orgID)

		rec := httptest.NewRecorder()
		handler.Get(rec, getRequest(t, resident.ID))

		require.Equal(t, http.StatusOK, rec.Code)

		var body model.Resident
		decodeBody(t, rec, &body)
		assert.Equal(t, resident.ID, body.ID)
	})

	t.Run("Should hide cross-tenant records behind not-found", func(t *testing.T) {
		handler, repository := setupResidentHandler(t, sc)
		foreign := seedResident(t, repository, uuid.New())

		rec := httptest.NewRecorder()
		handler.Get(rec, getRequest(t, foreign.ID))

		require.Equal(t, http.StatusNotFound, rec.Code)

		var body struct {
			Code string `json:"code"`
		}
		decodeBody(t, rec, &body)
		assert.Equal(t, "RESOURCE_NOT_FOUND", body.Code)
	})
}

func TestResourceHandlerCreate(t *testing.T) {
	orgID := uuid.New()
	sc := session.NewContext(uuid.New(), orgID, model.RoleAdmin, nil)

	t.Run("Should stamp the session organization", func(t *testing.T) {
		handler, _ := setupResidentHandler(t, sc)

		rec := httptest.NewRecorder()
		handler.Create(rec, sessionRequest(t, http.MethodPost, "/v1/residents",
			`{"ID":"`+uuid.NewString()+`","GivenName":"Grace","FamilyName":"Hopper"}`, sc))

		require.Equal(t, http.StatusCreated, rec.Code)

		var body model.Resident
		decodeBody(t, rec, &body)
		assert.Equal(t, orgID, body.OrganizationID)
	})

	t.Run("Should deny writes the role does not permit", func(t *testing.T) {
		supportCtx := session.NewContext(uuid.New(), orgID, model.RoleSupportOperator, nil)
		handler, _ := setupResidentHandler(t, supportCtx)

		rec := httptest.NewRecorder()
		handler.Create(rec, sessionRequest(t, http.MethodPost, "/v1/residents",
			`{"GivenName":"Grace"}`, supportCtx))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestResourceHandlerUpdate(t *testing.T) {
	orgID := uuid.New()
	sc := session.NewContext(uuid.New(), orgID, model.RoleAdmin, nil)

	patchRequest := func(t *testing.T, id uuid.UUID, body string) *http.Request {
		t.Helper()

		r := sessionRequest(t, http.MethodPatch, "/v1/residents/"+id.String(), body, sc)
		r.SetPathValue("id", id.String())

		return r
	}

	t.Run("Should patch the addressed record", func(t *testing.T) {
		handler, repository := setupResidentHandler(t, sc)
		resident := seedResident(t, repository, orgID)

		rec := httptest.NewRecorder()
		handler.Update(rec, patchRequest(t, resident.ID, `{"FamilyName":"Hopper"}`))

		require.Equal(t, http.StatusOK, rec.Code)

		stored := &model.Resident{}
		found, err := repository.First(context.Background(), stored, *repo.NewQuery().Where(repo.IDField, resident.ID))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Hopper", stored.FamilyName)
	})

	t.Run("Should not let the body redirect the write", func(t *testing.T) {
		handler, repository := setupResidentHandler(t, sc)
		mine := seedResident(t, repository, orgID)
		foreign := seedResident(t, repository, uuid.New())

		rec := httptest.NewRecorder()
		handler.Update(rec, patchRequest(t, mine.ID,
			`{"ID":"`+foreign.ID.String()+`","GivenName":"Mallory"}`))

		assert.Equal(t, http.StatusNotFound, rec.Code)

		stored := &model.Resident{}
		found, err := repository.First(context.Background(), stored, *repo.NewQuery().Where(repo.IDField, foreign.ID))
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Ada", stored.GivenName)
	})
}

func TestResourceHandlerDelete(t *testing.T) {
	orgID := uuid.New()
	sc := session.NewContext(uuid.New(), orgID, model.RoleAdmin, nil)

	t.Run("Should delete an in-tenant record", func(t *testing.T) {
		handler, repository := setupResidentHandler(t, sc)
		resident := seedResident(t, repository, orgID)

		r := sessionRequest(t, http.MethodDelete, "/v1/residents/"+resident.ID.String(), "", sc)
		r.SetPathValue("id", resident.ID.String())

		rec := httptest.NewRecorder()
		handler.Delete(rec, r)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
