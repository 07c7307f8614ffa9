package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes groups the inventory handlers for mounting under /api/v1.
type Routes struct {
	Hardware   *HardwareHandler
	Medicines  *MedicineHandler
	Botiquines *BotiquinHandler

	// RequireUser authenticates dashboard users and stores the actor.
	RequireUser func(http.Handler) http.Handler
	// HardwareKey is the shared key cabinets send; empty disables it.
	HardwareKey string
}

// Mount registers every inventory route on r.
func (rt Routes) Mount(r chi.Router) {
	r.Route("/hardware", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(RequireHardwareKey(rt.HardwareKey))
			r.Post("/sensor_data", rt.Hardware.SensorData)
			r.Post("/batch_sensor_data", rt.Hardware.BatchSensorData)
			r.Post("/test_connection", rt.Hardware.TestConnection)
			r.Post("/register_hardware", rt.Hardware.Register)
			r.Get("/{hardware_id}/latest", rt.Hardware.Latest)
		})

		// scoped to the caller's company, so it needs a user
		r.With(rt.RequireUser).Get("/logs", rt.Hardware.Logs)
	})

	r.Group(func(r chi.Router) {
		r.Use(rt.RequireUser)

		r.Route("/medicines", func(r chi.Router) {
			r.Get("/", rt.Medicines.List)
			r.Post("/", rt.Medicines.Create)
			r.Get("/{id}", rt.Medicines.Get)
			r.Put("/{id}", rt.Medicines.Update)
			r.Delete("/{id}", rt.Medicines.Delete)
		})

		r.Route("/botiquines", func(r chi.Router) {
			r.Get("/", rt.Botiquines.List)
			r.Post("/", rt.Botiquines.Create)
			r.Get("/{id}", rt.Botiquines.Get)
			r.Get("/{id}/export", rt.Botiquines.Export)
		})

		r.Route("/companies", func(r chi.Router) {
			r.Get("/", rt.Botiquines.ListCompanies)
			r.Post("/", rt.Botiquines.CreateCompany)
		})

		r.Get("/dashboard", rt.Botiquines.Dashboard)
	})
}
