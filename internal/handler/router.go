package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/clubedecampo/membership-system/internal/middleware"
	"github.com/clubedecampo/membership-system/internal/validation"
)

// SetupRouter wires the HTTP routes and middleware of the membership service.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/members", func(r chi.Router) {
			r.Post("/", h.RegisterMember)
			r.Get("/", h.GetMembers)
			r.Get("/{title}/arrears", h.GetMemberArrears)
			r.Get("/{title}/dependents", h.GetDependents)
		})

		r.Post("/dependents", h.RegisterDependent)

		r.Post("/employees", h.RegisterEmployee)
		r.Get("/employees", h.GetEmployees)

		r.Post("/visitors", h.RegisterVisitor)

		r.Post("/attendance", h.RecordAttendance)
		r.Get("/attendance", h.GetAttendance)

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.RecordPayment)
			r.Get("/pending", h.GetPendingDues)
			r.Post("/{title}/settle", h.SettlePayment)
		})

		r.Get("/dashboard", h.GetDashboard)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

// titleFromURL extracts and validates the {title} route parameter. On failure
// it writes a 422 response and reports false.
func (h *Handler) titleFromURL(w http.ResponseWriter, r *http.Request) (int64, bool) {
	title, ok := validation.ParseTitleNumber(chi.URLParam(r, "title"))
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		return 0, false
	}
	return title, true
}
