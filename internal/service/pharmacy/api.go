package pharmacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"fsanano/pharmacy-storefront/internal/model"
)

// Authentication

func (c *Client) Login(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", creds)
}

func (c *Client) Register(ctx context.Context, data model.Registration) (*model.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", data)
}

// authenticate requires both the token and the user record in the response.
func (c *Client) authenticate(ctx context.Context, path string, payload any) (*model.AuthResponse, error) {
	r, err := jsonRequest(http.MethodPost, path, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var out model.AuthResponse
	if err := c.do(ctx, r, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" || out.User == nil {
		return nil, c.record(r, &APIError{
			StatusCode: http.StatusBadGateway,
			Message:    "authentication response is missing the token or user",
		})
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/logout"}, nil)
}

func (c *Client) GetCurrentUser(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Medicines

func (c *Client) SearchMedicines(ctx context.Context, filters model.SearchFilters) (*model.Page[model.Medicine], error) {
	var page model.Page[model.Medicine]
	r := request{method: http.MethodGet, path: "/medicines", query: filterQuery(filters)}
	if err := c.do(ctx, r, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetMedicineByID(ctx context.Context, id string) (*model.Medicine, error) {
	var m model.Medicine
	if err := c.do(ctx, request{method: http.MethodGet, path: "/medicines/" + url.PathEscape(id)}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) GetMedicineRecommendations(ctx context.Context) ([]model.Medicine, error) {
	var out []model.Medicine
	if err := c.do(ctx, request{method: http.MethodGet, path: "/medicines/recommendations"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func filterQuery(f model.SearchFilters) url.Values {
	q := url.Values{}
	if f.Name != "" {
		q.Set("name", f.Name)
	}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	if f.MinPrice != nil {
		q.Set("minPrice", f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		q.Set("maxPrice", f.MaxPrice.String())
	}
	if f.InStock != nil {
		q.Set("inStock", strconv.FormatBool(*f.InStock))
	}
	if f.RequiresPrescription != nil {
		q.Set("requiresPrescription", strconv.FormatBool(*f.RequiresPrescription))
	}
	if f.Skip != nil {
		q.Set("skip", strconv.Itoa(*f.Skip))
	}
	if f.Limit != nil {
		q.Set("limit", strconv.Itoa(*f.Limit))
	}
	return q
}

// Orders

func (c *Client) CreateOrder(ctx context.Context, items []model.OrderLine) (*model.Order, error) {
	r, err := jsonRequest(http.MethodPost, "/orders", map[string]any{"items": items})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var order model.Order
	if err := c.do(ctx, r, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) GetUserOrders(ctx context.Context) ([]model.Order, error) {
	var out []model.Order
	if err := c.do(ctx, request{method: http.MethodGet, path: "/orders/my-orders"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetOrderByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	if err := c.do(ctx, request{method: http.MethodGet, path: "/orders/" + url.PathEscape(id)}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Prescriptions

// PrescriptionUpload is the multipart payload of a new prescription.
type PrescriptionUpload struct {
	File        io.Reader
	FileName    string
	MedicineIDs []string
	DoctorName  string
}

func (c *Client) UploadPrescription(ctx context.Context, up PrescriptionUpload) (*model.Prescription, error) {
	body, contentType, err := encodePrescription(up)
	if err != nil {
		return nil, fmt.Errorf("failed to encode prescription: %w", err)
	}

	r := request{
		method:      http.MethodPost,
		path:        "/prescriptions",
		body:        body,
		contentType: contentType,
	}

	var p model.Prescription
	if err := c.do(ctx, r, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func encodePrescription(up PrescriptionUpload) (*bytes.Buffer, string, error) {
	ids := up.MedicineIDs
	if ids == nil {
		ids = []string{}
	}
	medicines, err := json.Marshal(ids)
	if err != nil {
		return nil, "", err
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	name := up.FileName
	if name == "" {
		name = "prescription"
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", err
	}
	if up.File != nil {
		if _, err := io.Copy(part, up.File); err != nil {
			return nil, "", err
		}
	}
	if err := w.WriteField("medicines", string(medicines)); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("doctorName", up.DoctorName); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func (c *Client) GetUserPrescriptions(ctx context.Context) ([]model.Prescription, error) {
	var out []model.Prescription
	if err := c.do(ctx, request{method: http.MethodGet, path: "/prescriptions/my-prescriptions"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
