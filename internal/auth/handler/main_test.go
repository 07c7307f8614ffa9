package handler_test

import (
	"context"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/botiquin/botiquin-backend/internal/auth/handler"
	"github.com/botiquin/botiquin-backend/internal/auth/jwt"
	"github.com/botiquin/botiquin-backend/internal/auth/repository"
	"github.com/botiquin/botiquin-backend/internal/auth/service"
	"github.com/botiquin/botiquin-backend/pkg/config"
	"github.com/botiquin/botiquin-backend/pkg/httputil"
	"github.com/botiquin/botiquin-backend/pkg/logger"
	"github.com/botiquin/botiquin-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	if testutil.ShortMode() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	var err error
	suite, err = testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to create integration suite: %v", err)
	}

	code := m.Run()
	suite.Cleanup(ctx)
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

// newAuthRouter serves the auth routes backed by the integration database.
func newAuthRouter() http.Handler {
	jm := jwt.NewManager(&config.JWTConfig{Secret: "test-secret", AccessExpiry: time.Hour, Issuer: "botiquin"})
	svc := service.NewAuthService(repository.NewUserRepository(suite.DB), jm, logger.Nop())

	r := chi.NewRouter()
	r.Use(httputil.RequestID)
	r.Route("/api/v1", handler.NewAuthHandler(svc, logger.Nop()).Mount)
	return r
}
