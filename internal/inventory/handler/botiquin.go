package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/botiquin/botiquin-backend/internal/inventory/domain"
	"github.com/botiquin/botiquin-backend/internal/inventory/service"
	"github.com/botiquin/botiquin-backend/pkg/httputil"
	"github.com/botiquin/botiquin-backend/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// BotiquinHandler handles cabinet and company endpoints
type BotiquinHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewBotiquinHandler creates a new cabinet handler
func NewBotiquinHandler(svc *service.InventoryService, log *logger.Logger) *BotiquinHandler {
	return &BotiquinHandler{
		service: svc,
		logger:  log,
	}
}

// List lists cabinets with their medicine counts
func (h *BotiquinHandler) List(w http.ResponseWriter, r *http.Request) {
	botiquines, err := h.service.ListBotiquines(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, botiquines)
}

// Create creates a cabinet
func (h *BotiquinHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateBotiquinInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := httputil.Validate(in); err != nil {
		httputil.Error(w, r, err)
		return
	}

	botiquin, err := h.service.CreateBotiquin(r.Context(), in)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, botiquin)
}

// Get returns a cabinet with its compartment grid. ?status= narrows the
// medicine list.
func (h *BotiquinHandler) Get(w http.ResponseWriter, r *http.Request) {
	status := domain.Status(strings.ToUpper(r.URL.Query().Get("status")))

	detail, err := h.service.GetBotiquinDetail(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// Export serves the cabinet inventory as an xlsx download
func (h *BotiquinHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.service.ExportBotiquin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error().Err(err).Str("botiquin_id", chi.URLParam(r, "id")).Msg("failed to export botiquin")
		httputil.Error(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.Write(data)
}

// ListCompanies lists companies
func (h *BotiquinHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.service.ListCompanies(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, companies)
}

// CreateCompany creates a company
func (h *BotiquinHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var in service.CreateCompanyInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := httputil.Validate(in); err != nil {
		httputil.Error(w, r, err)
		return
	}

	company, err := h.service.CreateCompany(r.Context(), in)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, company)
}

// Dashboard returns the landing page summary
func (h *BotiquinHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.GetDashboard(r.Context())
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, dash)
}
