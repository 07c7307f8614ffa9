package handler_test

import (
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/botiquin/botiquin-backend/internal/inventory/events"
	"github.com/botiquin/botiquin-backend/internal/inventory/handler"
	"github.com/botiquin/botiquin-backend/internal/inventory/metrics"
	"github.com/botiquin/botiquin-backend/internal/inventory/repository"
	"github.com/botiquin/botiquin-backend/internal/inventory/service"
	"github.com/botiquin/botiquin-backend/pkg/actor"
	"github.com/botiquin/botiquin-backend/pkg/errors"
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

// withActor stands in for the auth middleware.
func withActor(a *actor.Actor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				httputil.Error(w, r, errors.Unauthorized("authentication required"))
				return
			}
			next.ServeHTTP(w, r.WithContext(actor.WithActor(r.Context(), a)))
		})
	}
}

type testServer struct {
	router    http.Handler
	publisher *testutil.MockPublisher
}

func newTestServer(a *actor.Actor, hardwareKey string) *testServer {
	log := logger.Nop()
	companies := repository.NewCompanyRepository(suite.DB)
	botiquines := repository.NewBotiquinRepository(suite.DB)
	medicines := repository.NewMedicineRepository(suite.DB)
	logs := repository.NewHardwareLogRepository(suite.DB)

	pub := testutil.NewMockPublisher()
	publisher := events.NewWithPublisher(pub, log)

	inventory := service.NewInventoryService(companies, botiquines, medicines, nil, publisher, nil, log)
	sensor := service.NewSensorService(suite.DB, companies, botiquines, medicines, logs, nil, publisher, metrics.New(), nil, log)

	r := chi.NewRouter()
	r.Route("/api/v1", handler.Routes{
		Hardware:    handler.NewHardwareHandler(sensor, log),
		Medicines:   handler.NewMedicineHandler(inventory, log),
		Botiquines:  handler.NewBotiquinHandler(inventory, log),
		RequireUser: withActor(a),
		HardwareKey: hardwareKey,
	}.Mount)

	return &testServer{router: r, publisher: pub}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.ExecuteRequest(s.router, req)
}

func superAdmin() *actor.Actor {
	return &actor.Actor{ID: "super", Username: "superadmin", UserType: actor.TypeSuperAdmin}
}

func companyAdmin(companyID string) *actor.Actor {
	return &actor.Actor{ID: "admin", Username: "admin", UserType: actor.TypeCompanyAdmin, CompanyID: &companyID}
}
