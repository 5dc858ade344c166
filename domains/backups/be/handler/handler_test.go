package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/luminapos/lumina-saas/domains/backups/be/archivestore"
	"github.com/luminapos/lumina-saas/domains/backups/be/repo"
	"github.com/luminapos/lumina-saas/domains/backups/be/service"
	platformauth "github.com/luminapos/lumina-saas/platform/go/auth"
	"github.com/luminapos/lumina-saas/platform/go/couch"
)

type nopStore struct{}

func (nopStore) ListDatabases(ctx context.Context) ([]string, error) { return nil, nil }
func (nopStore) FetchAllDocuments(ctx context.Context, name string) (couch.AllDocs, error) {
	return couch.AllDocs{}, nil
}
func (nopStore) CreateDatabase(ctx context.Context, name string) (couch.CreateState, error) {
	return couch.StateCreated, nil
}
func (nopStore) SetSecurityPolicy(ctx context.Context, name, principal string) error { return nil }
func (nopStore) DeleteDatabase(ctx context.Context, name string) error               { return nil }
func (nopStore) BulkInsert(ctx context.Context, name string, docs []json.RawMessage) error {
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *service.Service, *repo.MemoryRepository) {
	t.Helper()

	archives, err := archivestore.NewLocal(t.TempDir())
	require.NoError(t, err)

	manifest := repo.NewMemoryRepository()
	svc := service.New(service.Config{
		Repo:     manifest,
		Store:    nopStore{},
		Archives: archives,
		Logger:   zaptest.NewLogger(t),
		WorkDir:  t.TempDir(),
	})
	return New(svc, zaptest.NewLogger(t)), svc, manifest
}

func routerFor(h *Handler, p platformauth.Principal) *chi.Mux {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(platformauth.WithPrincipal(req.Context(), p)))
		})
	})
	r.Group(h.Register)
	return r
}

func TestDeleteBackupIsRefused(t *testing.T) {
	t.Parallel()

	h, _, manifest := newTestHandler(t)
	b, err := manifest.Create(context.Background(), service.Backup{
		ID:           uuid.New(),
		DatabaseName: "acme_corp",
		CreatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)

	r := routerFor(h, platformauth.Principal{Subject: "admin", Role: platformauth.RoleSuperuser})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/backups/"+b.ID.String(), nil))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "immutable")
}

func TestListBackupsTenantScoping(t *testing.T) {
	t.Parallel()

	h, _, manifest := newTestHandler(t)
	ownID := uuid.New()
	otherID := uuid.New()

	_, err := manifest.Create(context.Background(), service.Backup{
		ID: uuid.New(), DatabaseName: "own_db", CompanyID: &ownID, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	_, err = manifest.Create(context.Background(), service.Backup{
		ID: uuid.New(), DatabaseName: "other_db", CompanyID: &otherID, CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	r := routerFor(h, platformauth.Principal{
		Subject:   "tenant-user",
		Role:      platformauth.RoleTenant,
		CompanyID: &ownID,
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/backups", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []struct {
			DatabaseName string `json:"database_name"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	require.Equal(t, "own_db", body.Items[0].DatabaseName)
}

func TestRestoreRequiresSuperuser(t *testing.T) {
	t.Parallel()

	h, _, _ := newTestHandler(t)
	companyID := uuid.New()
	r := routerFor(h, platformauth.Principal{
		Subject:   "tenant-user",
		Role:      platformauth.RoleTenant,
		CompanyID: &companyID,
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/backups/"+uuid.NewString()+"/restore", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBackupSystemDatabaseIsOwnerless(t *testing.T) {
	t.Parallel()

	h, _, _ := newTestHandler(t)
	r := routerFor(h, platformauth.Principal{Subject: "admin", Role: platformauth.RoleSuperuser})

	req := httptest.NewRequest(http.MethodPost, "/backups", strings.NewReader(`{"database_name":"_users"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "_users", got["database_name"])
	require.NotContains(t, got, "company_id")
}

func TestRestoreWarnsAboutPolicyReset(t *testing.T) {
	t.Parallel()

	h, svc, _ := newTestHandler(t)
	b, err := svc.BackupOne(context.Background(), "acme_corp", "")
	require.NoError(t, err)

	r := routerFor(h, platformauth.Principal{Subject: "admin", Role: platformauth.RoleSuperuser})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/backups/"+b.ID.String()+"/restore", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Contains(t, got["warning"], "security policy reset to acme_corp_user")
}
