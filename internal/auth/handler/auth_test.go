package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/botiquin/botiquin-backend/internal/auth/handler"
	"github.com/botiquin/botiquin-backend/pkg/actor"
	"github.com/botiquin/botiquin-backend/pkg/errors"
	"github.com/botiquin/botiquin-backend/pkg/httputil"
	"github.com/botiquin/botiquin-backend/pkg/testutil"
)

type fakeAuthenticator map[string]*actor.Actor

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (*actor.Actor, error) {
	if a, ok := f[token]; ok {
		return a, nil
	}
	return nil, errors.TokenInvalid()
}

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := actor.FromContext(r.Context())
		if a == nil {
			httputil.JSON(w, http.StatusOK, map[string]string{"user": "anonymous"})
			return
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"user": a.Username})
	})
}

func TestRequireUser(t *testing.T) {
	auth := fakeAuthenticator{"good": {ID: "u1", Username: "ana", UserType: actor.TypeCompanyAdmin}}
	h := handler.RequireUser(auth)(echoActor())

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown token", "Bearer bad", http.StatusUnauthorized, "TOKEN_INVALID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.NewHTTPRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := testutil.ExecuteRequest(h, req)
			testutil.AssertStatus(t, rr, tt.status)

			var resp httputil.Response
			testutil.ParseJSONBody(t, rr, &resp)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}

	rr := testutil.ExecuteRequest(h, testutil.WithBearer(testutil.NewHTTPRequest(http.MethodGet, "/", nil), "good"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.JSONEq(t, `{"success": true, "data": {"user": "ana"}}`, rr.Body.String())
}

func TestOptionalUser(t *testing.T) {
	auth := fakeAuthenticator{"good": {ID: "u1", Username: "ana", UserType: actor.TypeCompanyAdmin}}
	h := handler.OptionalUser(auth)(echoActor())

	rr := testutil.ExecuteRequest(h, testutil.NewHTTPRequest(http.MethodGet, "/", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.JSONEq(t, `{"success": true, "data": {"user": "anonymous"}}`, rr.Body.String())

	rr = testutil.ExecuteRequest(h, testutil.WithBearer(testutil.NewHTTPRequest(http.MethodGet, "/", nil), "good"))
	assert.JSONEq(t, `{"success": true, "data": {"user": "ana"}}`, rr.Body.String())

	rr = testutil.ExecuteRequest(h, testutil.WithBearer(testutil.NewHTTPRequest(http.MethodGet, "/", nil), "bad"))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestAuthRoutes(t *testing.T) {
	testutil.SkipIfShort(t)
	suite.Reset(t)

	companyID := suite.Fixtures.Company(t, "Empresa Demo SA")
	suite.Fixtures.User(t, "root", actor.TypeSuperAdmin, nil)
	router := newAuthRouter()

	login := func(username, password string) (*http.Response, string) {
		rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/login",
			map[string]string{"username": username, "password": password}))
		var resp struct {
			Data struct {
				AccessToken string `json:"access_token"`
			} `json:"data"`
		}
		testutil.ParseJSONBody(t, rr, &resp)
		return rr.Result(), resp.Data.AccessToken
	}

	res, rootToken := login("root", testutil.FixturePassword)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, rootToken)

	res, _ = login("root", "wrong-password")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	// anonymous registration cannot pick a company
	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/register",
		map[string]any{"username": "ana", "password": "secret1", "company_id": companyID}))
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	rr = testutil.ExecuteRequest(router, testutil.WithBearer(testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/register",
		map[string]any{"username": "ana", "password": "secret1", "company_id": companyID}), rootToken))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/register",
		map[string]any{"username": "ana", "password": "secret1"}))
	testutil.AssertStatus(t, rr, http.StatusConflict)

	rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/api/v1/auth/register",
		map[string]any{"username": "x", "password": "1"}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	var invalid httputil.Response
	testutil.ParseJSONBody(t, rr, &invalid)
	assert.Contains(t, invalid.Error.Details, "username")
	assert.Contains(t, invalid.Error.Details, "password")

	res, anaToken := login("ana", "secret1")
	require.Equal(t, http.StatusOK, res.StatusCode)

	rr = testutil.ExecuteRequest(router, testutil.WithBearer(testutil.NewHTTPRequest(http.MethodGet, "/api/v1/auth/me", nil), anaToken))
	testutil.AssertStatus(t, rr, http.StatusOK)
	var me struct {
		Data struct {
			Username  string  `json:"username"`
			UserType  string  `json:"user_type"`
			CompanyID *string `json:"company_id"`
		} `json:"data"`
	}
	testutil.ParseJSONBody(t, rr, &me)
	assert.Equal(t, "ana", me.Data.Username)
	assert.Equal(t, actor.TypeCompanyAdmin, me.Data.UserType)
	require.NotNil(t, me.Data.CompanyID)
	assert.Equal(t, companyID, *me.Data.CompanyID)

	rr = testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/api/v1/auth/me", nil))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}
