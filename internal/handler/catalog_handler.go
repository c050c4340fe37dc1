package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"fsanano/pharmacy-storefront/internal/model"
	"fsanano/pharmacy-storefront/internal/service/pharmacy"
)

const maxPrescriptionUpload = 32 << 20

func (h *Handler) SearchMedicines(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r.URL.Query())
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	page, err := h.api.SearchMedicines(r.Context(), filters)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parseFilters(q url.Values) (model.SearchFilters, error) {
	f := model.SearchFilters{
		Name:     q.Get("name"),
		Category: q.Get("category"),
	}

	for key, dst := range map[string]**decimal.Decimal{"minPrice": &f.MinPrice, "maxPrice": &f.MaxPrice} {
		if v := q.Get(key); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return f, &filterError{key: key}
			}
			*dst = &d
		}
	}
	for key, dst := range map[string]**bool{"inStock": &f.InStock, "requiresPrescription": &f.RequiresPrescription} {
		if v := q.Get(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return f, &filterError{key: key}
			}
			*dst = &b
		}
	}
	for key, dst := range map[string]**int{"skip": &f.Skip, "limit": &f.Limit} {
		if v := q.Get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, &filterError{key: key}
			}
			*dst = &n
		}
	}
	return f, nil
}

type filterError struct {
	key string
}

func (e *filterError) Error() string {
	return "invalid " + e.key + " filter"
}

func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	meds, err := h.api.GetMedicineRecommendations(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meds)
}

func (h *Handler) GetMedicine(w http.ResponseWriter, r *http.Request) {
	m, err := h.api.GetMedicineByID(r.Context(), chi.URLParam(r, "medicineID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	order, err := h.checkout.Checkout(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.api.GetUserOrders(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.api.GetOrderByID(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// UploadPrescription accepts the same multipart form as the pharmacy API
// and forwards it.
func (h *Handler) UploadPrescription(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxPrescriptionUpload); err != nil {
		badRequest(w, "invalid multipart form")
		return
	}

	file, hdr, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "missing prescription file")
		return
	}
	defer file.Close()

	var medicineIDs []string
	if raw := r.FormValue("medicines"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &medicineIDs); err != nil {
			badRequest(w, "medicines must be a JSON array of ids")
			return
		}
	}

	p, err := h.api.UploadPrescription(r.Context(), pharmacy.PrescriptionUpload{
		File:        file,
		FileName:    hdr.Filename,
		MedicineIDs: medicineIDs,
		DoctorName:  r.FormValue("doctorName"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) ListPrescriptions(w http.ResponseWriter, r *http.Request) {
	ps, err := h.api.GetUserPrescriptions(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
