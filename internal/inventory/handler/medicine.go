package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/botiquin/botiquin-backend/internal/inventory/domain"
	"github.com/botiquin/botiquin-backend/internal/inventory/service"
	"github.com/botiquin/botiquin-backend/pkg/httputil"
	"github.com/botiquin/botiquin-backend/pkg/logger"
)

// MedicineHandler handles medicine endpoints
type MedicineHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewMedicineHandler creates a new medicine handler
func NewMedicineHandler(svc *service.InventoryService, log *logger.Logger) *MedicineHandler {
	return &MedicineHandler{
		service: svc,
		logger:  log,
	}
}

// List lists medicines with their computed status. Results are paginated
// only when page or per_page is given.
func (h *MedicineHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := service.MedicineQuery{
		Status: domain.Status(strings.ToUpper(query.Get("status"))),
		Search: query.Get("search"),
	}
	if id := query.Get("botiquin_id"); id != "" {
		q.BotiquinID = &id
	}

	paginated := query.Has("page") || query.Has("per_page")
	if paginated {
		q.Page, q.PerPage = httputil.Pagination(r, 20, 100)
	}

	medicines, total, err := h.service.ListMedicines(r.Context(), q)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	if !paginated {
		httputil.JSON(w, http.StatusOK, medicines)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, medicines, httputil.NewMeta(q.Page, q.PerPage, int64(total)))
}

// Get gets a medicine by ID
func (h *MedicineHandler) Get(w http.ResponseWriter, r *http.Request) {
	medicine, err := h.service.GetMedicine(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicine)
}

// Create creates a new medicine
func (h *MedicineHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateMedicineInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := httputil.Validate(in); err != nil {
		httputil.Error(w, r, err)
		return
	}

	medicine, err := h.service.CreateMedicine(r.Context(), in)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.Created(w, medicine)
}

// Update updates a medicine
func (h *MedicineHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateMedicineInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.Error(w, r, err)
		return
	}
	if err := httputil.Validate(in); err != nil {
		httputil.Error(w, r, err)
		return
	}

	medicine, err := h.service.UpdateMedicine(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicine)
}

// Delete deletes a medicine
func (h *MedicineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteMedicine(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, r, err)
		return
	}

	httputil.NoContent(w)
}
