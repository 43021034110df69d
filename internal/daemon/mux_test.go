package daemon_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careloop/careloop/internal/access"
	"github.com/careloop/careloop/internal/auditor"
	"github.com/careloop/careloop/internal/config"
	"github.com/careloop/careloop/internal/daemon"
	"github.com/careloop/careloop/internal/directory"
	"github.com/careloop/careloop/internal/model"
	"github.com/careloop/careloop/internal/repo/mock"
	"github.com/careloop/careloop/internal/session"
)

type stubSessions struct {
	sc *session.Context
}

func (s *stubSessions) Resolve(_ context.Context, _, _ uuid.UUID) (*session.Context, error) {
	return s.sc, nil
}

func (s *stubSessions) ResolveLogin(_ context.Context, _ uuid.UUID) (*session.LoginResult, error) {
	return &session.LoginResult{Context: s.sc, Token: "token"}, nil
}

func (s *stubSessions) Switch(_ context.Context, _, _ uuid.UUID) (*session.Context, string, error) {
	return s.sc, "token", nil
}

type stubParser struct {
	principalID uuid.UUID
	orgID       uuid.UUID
}

func (p *stubParser) ParseClaims(_ string) (uuid.UUID, uuid.UUID, error) {
	return p.principalID, p.orgID, nil
}

func setupMux(t *testing.T, sc *session.Context) (http.Handler, *mock.Repository) {
	t.Helper()

	repository := mock.NewRepository()
	aud := auditor.New(nil, &config.Config{})
	engine := access.NewEngine(repository, aud)
	dir := directory.NewManager(repository, aud)

	handler := daemon.NewMux(
		&stubSessions{sc: sc},
		&stubParser{principalID: sc.PrincipalID(), orgID: sc.OrganizationID()},
		dir,
		engine,
	)

	return handler, repository
}

func TestMux(t *testing.T) {
	orgID := uuid.New()
	sc := session.NewContext(uuid.New(), orgID, model.RoleAdmin, nil)

	t.Run("Should serve health without a token", func(t *testing.T) {
		handler, _ := setupMux(t, sc)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Should guard resource routes behind the session middleware", func(t *testing.T) {
		handler, _ := setupMux(t, sc)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/residents", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Should serve tenant-scoped resources with a token", func(t *testing.T) {
		handler, repository := setupMux(t, sc)

		resident := &model.Resident{
			ID:             uuid.New(),
			OrganizationID: orgID,
			GivenName:      "Ada",
			FamilyName:     "Lovelace",
			Active:         true,
		}
		require.NoError(t, repository.Create(context.Background(), resident))

		req := httptest.NewRequest(http.MethodGet, "/v1/residents", nil)
		req.Header.Set("Authorization", "Bearer token")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Items []*model.Resident `json:"items"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Len(t, body.Items, 1)
		assert.Equal(t, resident.ID, body.Items[0].ID)
	})

	t.Run("Should expose prometheus metrics", func(t *testing.T) {
		handler, _ := setupMux(t, sc)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
