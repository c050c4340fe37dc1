package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fsanano/pharmacy-storefront/internal/model"
	"fsanano/pharmacy-storefront/internal/repository"
	"fsanano/pharmacy-storefront/internal/service/pharmacy"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func medicine(id string, price int64, stock int) model.Medicine {
	return model.Medicine{ID: id, Name: "Medicine " + id, Price: decimal.NewFromInt(price), Stock: stock}
}

// countingStorage counts writes so tests can tell whether a mutation persisted.
type countingStorage struct {
	repository.Storage

	mu     sync.Mutex
	writes int
}

func newCountingStorage() *countingStorage {
	return &countingStorage{Storage: repository.NewMemoryStorage()}
}

func (s *countingStorage) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
	return s.Storage.Set(ctx, key, value)
}

func (s *countingStorage) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type brokenStorage struct{}

func (brokenStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}
func (brokenStorage) Set(context.Context, string, string) error { return errors.New("disk on fire") }
func (brokenStorage) Remove(context.Context, string) error      { return errors.New("disk on fire") }

// fakeBackend is a minimal pharmacy API: password "good" logs in and the
// only valid token is "tok".
type fakeBackend struct {
	mu          sync.Mutex
	logoutAuth  string
	logoutFails bool
	meRelease   chan struct{}
	orders      [][]model.OrderLine
	orderFails  bool
	revoked     bool
}

func (b *fakeBackend) revoke() {
	b.mu.Lock()
	b.revoked = true
	b.mu.Unlock()
}

func (b *fakeBackend) lastLogoutAuth() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logoutAuth
}

func (b *fakeBackend) placedOrders() [][]model.OrderLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]model.OrderLine(nil), b.orders...)
}

func (b *fakeBackend) failOrders() {
	b.mu.Lock()
	b.orderFails = true
	b.mu.Unlock()
}

var testUser = &model.User{ID: "u1", Email: "jane@example.com", FullName: "Jane Doe", IsActive: true}

func (b *fakeBackend) start(t *testing.T) *pharmacy.Client {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds model.Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Incorrect email or password"}`))
			return
		}
		json.NewEncoder(w).Encode(model.AuthResponse{AccessToken: "tok", User: testUser})
	})
	mux.HandleFunc("/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var reg model.Registration
		json.NewDecoder(r.Body).Decode(&reg)
		if reg.Email == "taken@example.com" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":"Email already registered"}`))
			return
		}
		json.NewEncoder(w).Encode(model.AuthResponse{AccessToken: "tok", User: testUser})
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.logoutAuth = r.Header.Get("Authorization")
		fails := b.logoutFails
		b.mu.Unlock()
		if fails {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if b.meRelease != nil {
			<-b.meRelease
		}
		b.mu.Lock()
		revoked := b.revoked
		b.mu.Unlock()
		if revoked || r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Could not validate credentials"}`))
			return
		}
		json.NewEncoder(w).Encode(testUser)
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Items []model.OrderLine `json:"items"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		b.orders = append(b.orders, body.Items)
		fails := b.orderFails
		b.mu.Unlock()

		if fails {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"message":"out of stock"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(model.Order{ID: "O1", Status: model.OrderPending})
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return pharmacy.NewClient(pharmacy.Config{APIURL: ts.URL}, quietLogger())
}
