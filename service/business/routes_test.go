package business

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/KAsare1/commonthread-server/cmd/models"
	"github.com/KAsare1/commonthread-server/cmd/utils"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type memoryStore struct {
	businesses map[uint]models.Business
	nextID     uint
	updateErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{businesses: map[uint]models.Business{}}
}

func (s *memoryStore) ListBusinesses(ctx context.Context, f Filter) ([]models.Business, error) {
	var out []models.Business
	for _, b := range s.businesses {
		if f.Category != "" && b.Category != f.Category {
			continue
		}
		if f.OwnerID != 0 && b.OwnerID != f.OwnerID {
			continue
		}
		if f.Name != "" && !strings.Contains(strings.ToLower(b.Name), strings.ToLower(f.Name)) {
			continue
		}
		if b.AverageRating < f.MinRating {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memoryStore) GetBusiness(ctx context.Context, id uint) (*models.Business, error) {
	b, ok := s.businesses[id]
	if !ok {
		return nil, ErrBusinessNotFound
	}
	return &b, nil
}

func (s *memoryStore) GetBusinessByOwner(ctx context.Context, ownerID uint) (*models.Business, error) {
	for _, b := range s.businesses {
		if b.OwnerID == ownerID {
			return &b, nil
		}
	}
	return nil, ErrBusinessNotFound
}

func (s *memoryStore) CreateBusiness(ctx context.Context, b *models.Business) error {
	s.nextID++
	b.ID = s.nextID
	s.businesses[b.ID] = *b
	return nil
}

func (s *memoryStore) UpdateBusiness(ctx context.Context, b *models.Business) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	existing, ok := s.businesses[b.ID]
	if !ok {
		return ErrBusinessNotFound
	}
	b.AverageRating, b.TotalReviews, b.OwnerID = existing.AverageRating, existing.TotalReviews, existing.OwnerID
	s.businesses[b.ID] = *b
	return nil
}

func (s *memoryStore) DeleteBusiness(ctx context.Context, id uint) error {
	if _, ok := s.businesses[id]; !ok {
		return ErrBusinessNotFound
	}
	delete(s.businesses, id)
	return nil
}

type testEnv struct {
	router    *mux.Router
	store     *memoryStore
	auth      *utils.Auth
	uploadDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		router:    mux.NewRouter(),
		store:     newMemoryStore(),
		auth:      utils.NewAuth("test-secret", time.Hour),
		uploadDir: t.TempDir(),
	}
	NewBusinessHandler(env.store, env.auth, env.uploadDir, zap.NewNop()).RegisterRoutes(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request, userID uint) *httptest.ResponseRecorder {
	t.Helper()
	if userID != 0 {
		token, err := e.auth.GenerateToken(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) send(t *testing.T, method, path string, userID uint, body string) *httptest.ResponseRecorder {
	return e.do(t, httptest.NewRequest(method, path, strings.NewReader(body)), userID)
}

func TestCreateBusiness_OnePerOwner(t *testing.T) {
	env := newTestEnv(t)

	rec := env.send(t, http.MethodPost, "/businesses", 1, `{"name": "Community Pantry", "category": "food", "min_volunteer_age": 16}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created models.Business
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, uint(1), created.OwnerID)
	assert.Equal(t, 16, created.MinVolunteerAge)

	rec = env.send(t, http.MethodPost, "/businesses", 1, `{"name": "Second"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.send(t, http.MethodPost, "/businesses", 2, `{"category": "food"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "name is required")

	rec = env.send(t, http.MethodPost, "/businesses", 2, `{"name": "Kids Club", "min_volunteer_age": -1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.send(t, http.MethodGet, "/businesses/owner/me", 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Community Pantry")

	rec = env.send(t, http.MethodGet, "/businesses/owner/me", 2, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateAndDeleteBusiness_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)
	env.store.businesses[5] = models.Business{Model: gorm.Model{ID: 5}, OwnerID: 1, Name: "Pantry", AverageRating: 4.5, TotalReviews: 2}

	rec := env.send(t, http.MethodPut, "/businesses/5", 2, `{"name": "Hijacked"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.send(t, http.MethodPut, "/businesses/5", 1, `{"description": "We feed people", "average_rating": 1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	saved := env.store.businesses[5]
	assert.Equal(t, "We feed people", saved.Description)
	assert.Equal(t, "Pantry", saved.Name)
	assert.Equal(t, 4.5, saved.AverageRating, "ratings are not client editable")

	assert.Equal(t, http.StatusNotFound, env.send(t, http.MethodPut, "/businesses/99", 1, `{}`).Code)
	assert.Equal(t, http.StatusForbidden, env.send(t, http.MethodDelete, "/businesses/5", 2, "").Code)
	assert.Equal(t, http.StatusOK, env.send(t, http.MethodDelete, "/businesses/5", 1, "").Code)
	assert.Empty(t, env.store.businesses)
}

func TestListAndFilterBusinesses(t *testing.T) {
	env := newTestEnv(t)
	env.store.businesses[1] = models.Business{Model: gorm.Model{ID: 1}, Name: "Green Garden", Category: "environment", AverageRating: 4.8}
	env.store.businesses[2] = models.Business{Model: gorm.Model{ID: 2}, Name: "Pantry", Category: "food", AverageRating: 3.9}
	env.store.businesses[3] = models.Business{Model: gorm.Model{ID: 3}, Name: "Garden Club", Category: "environment", AverageRating: 3.0}

	var got []models.Business
	rec := env.send(t, http.MethodGet, "/businesses?category=environment", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)

	rec = env.send(t, http.MethodPost, "/businesses/filter", 0, `{"filters": {"name": "garden", "min_rating": 4}, "limit": 10}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Green Garden", got[0].Name)

	rec = env.send(t, http.MethodGet, "/businesses/2", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, env.send(t, http.MethodGet, "/businesses/42", 0, "").Code)
}

func logoRequest(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("logo", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadLogo(t *testing.T) {
	env := newTestEnv(t)
	env.store.businesses[5] = models.Business{Model: gorm.Model{ID: 5}, OwnerID: 1, Name: "Pantry"}

	rec := env.do(t, logoRequest(t, "/businesses/5/logo", "logo.png", []byte("png-bytes")), 1)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := env.store.businesses[5].LogoURL
	require.True(t, strings.HasPrefix(first, "/images/"))
	_, err := os.Stat(filepath.Join(env.uploadDir, utils.ImageSubdir, filepath.Base(first)))
	require.NoError(t, err)

	rec = env.do(t, logoRequest(t, "/businesses/5/logo", "logo.webp", []byte("webp-bytes")), 1)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = os.Stat(filepath.Join(env.uploadDir, utils.ImageSubdir, filepath.Base(first)))
	assert.True(t, os.IsNotExist(err), "the replaced logo is removed")

	rec = env.do(t, logoRequest(t, "/businesses/5/logo", "logo.exe", []byte("nope")), 1)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, logoRequest(t, "/businesses/5/logo", "logo.png", []byte("png")), 2)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUploadLogo_StoreFailureRemovesUpload(t *testing.T) {
	env := newTestEnv(t)
	env.store.businesses[5] = models.Business{Model: gorm.Model{ID: 5}, OwnerID: 1, Name: "Pantry"}
	env.store.updateErr = errors.New("db down")

	rec := env.do(t, logoRequest(t, "/businesses/5/logo", "logo.png", []byte("png-bytes")), 1)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, env.store.businesses[5].LogoURL)

	entries, err := os.ReadDir(filepath.Join(env.uploadDir, utils.ImageSubdir))
	require.NoError(t, err)
	assert.Empty(t, entries, "the orphaned upload is deleted")
}
