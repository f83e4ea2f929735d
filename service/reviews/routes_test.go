package reviews

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
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
	users      map[uint]models.User
	businesses map[uint]models.Business
	reviews    map[uint]models.Review
	nextID     uint
	refreshErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users: map[uint]models.User{
			1: {Model: gorm.Model{ID: 1}, FullName: "Owner"},
			2: {Model: gorm.Model{ID: 2}, FullName: "Vera"},
			3: {Model: gorm.Model{ID: 3}, FullName: "Sam"},
		},
		businesses: map[uint]models.Business{10: {Model: gorm.Model{ID: 10}, OwnerID: 1}},
		reviews:    map[uint]models.Review{},
		nextID:     100,
	}
}

func (s *memoryStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *memoryStore) GetBusiness(ctx context.Context, id uint) (*models.Business, error) {
	b, ok := s.businesses[id]
	if !ok {
		return nil, ErrBusinessNotFound
	}
	return &b, nil
}

func (s *memoryStore) GetReview(ctx context.Context, id uint) (*models.Review, error) {
	r, ok := s.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}
	return &r, nil
}

// ListReviews orders by id, standing in for created_at.
func (s *memoryStore) ListReviews(ctx context.Context, f Filter) ([]models.Review, error) {
	out := []models.Review{}
	for _, r := range s.reviews {
		if (f.BusinessID != 0 && r.BusinessID != f.BusinessID) || (f.UserID != 0 && r.UserID != f.UserID) || r.Rating < f.MinRating {
			continue
		}
		out = append(out, r)
	}
	byRating := strings.TrimPrefix(f.Sort, "-") == "rating"
	sort.Slice(out, func(i, j int) bool {
		if byRating && out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].ID > out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *memoryStore) CreateReview(ctx context.Context, r *models.Review) error {
	for _, existing := range s.reviews {
		if existing.UserID == r.UserID && existing.BusinessID == r.BusinessID {
			return ErrAlreadyReviewed
		}
	}
	s.nextID++
	r.ID = s.nextID
	s.reviews[r.ID] = *r
	return nil
}

func (s *memoryStore) UpdateReview(ctx context.Context, r *models.Review) error {
	s.reviews[r.ID] = *r
	return nil
}

func (s *memoryStore) DeleteReview(ctx context.Context, id uint) error {
	delete(s.reviews, id)
	return nil
}

func (s *memoryStore) RefreshRating(ctx context.Context, businessID uint) error {
	if s.refreshErr != nil {
		return s.refreshErr
	}
	total, sum := 0, 0
	for _, r := range s.reviews {
		if r.BusinessID == businessID {
			total++
			sum += r.Rating
		}
	}
	b := s.businesses[businessID]
	b.TotalReviews = total
	b.AverageRating = 0
	if total > 0 {
		b.AverageRating = RoundRating(float64(sum) / float64(total))
	}
	s.businesses[businessID] = b
	return nil
}

// Transaction restores the review set when fn fails.
func (s *memoryStore) Transaction(ctx context.Context, fn func(Store) error) error {
	snapshot := make(map[uint]models.Review, len(s.reviews))
	for id, r := range s.reviews {
		snapshot[id] = r
	}
	if err := fn(s); err != nil {
		s.reviews = snapshot
		return err
	}
	return nil
}

func newTestRouter(store Store) (*mux.Router, func(uint) string) {
	auth := utils.NewAuth("test-secret", time.Hour)
	router := mux.NewRouter()
	NewReviewHandler(store, auth, zap.NewNop()).RegisterRoutes(router)
	return router, func(userID uint) string {
		token, _ := auth.GenerateToken(userID)
		return "Bearer " + token
	}
}

func send(router *mux.Router, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", auth)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestReviewsRecomputeRating(t *testing.T) {
	store := newMemoryStore()
	router, bearer := newTestRouter(store)

	rec := send(router, http.MethodPost, "/reviews", bearer(2), `{"business_id": 10, "rating": 5, "comment": "Lovely team"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"user_name":"Vera"`)

	rec = send(router, http.MethodPost, "/reviews", bearer(3), `{"business_id": 10, "rating": 4}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 4.5, store.businesses[10].AverageRating)
	assert.Equal(t, 2, store.businesses[10].TotalReviews)

	rec = send(router, http.MethodPost, "/reviews", bearer(2), `{"business_id": 10, "rating": 1}`)
	assert.Equal(t, http.StatusConflict, rec.Code, "one review per user and business")

	rec = send(router, http.MethodPut, "/reviews/102", bearer(2), `{"rating": 1}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = send(router, http.MethodPut, "/reviews/102", bearer(3), `{"rating": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3.5, store.businesses[10].AverageRating)

	rec = send(router, http.MethodDelete, "/reviews/101", bearer(2), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, store.businesses[10].AverageRating)
	assert.Equal(t, 1, store.businesses[10].TotalReviews)

	rec = send(router, http.MethodDelete, "/reviews/102", bearer(3), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.0, store.businesses[10].AverageRating)
	assert.Equal(t, 0, store.businesses[10].TotalReviews)

	rec = send(router, http.MethodGet, "/reviews/business/10", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCreateReview_Validation(t *testing.T) {
	router, bearer := newTestRouter(newMemoryStore())

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"rating too high", `{"business_id": 10, "rating": 6}`, http.StatusBadRequest},
		{"rating missing", `{"business_id": 10}`, http.StatusBadRequest},
		{"business missing", `{"rating": 3}`, http.StatusBadRequest},
		{"unknown business", `{"business_id": 99, "rating": 3}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, send(router, http.MethodPost, "/reviews", bearer(2), tt.body).Code)
		})
	}
}

func TestCreateReview_RollsBackWhenRatingFails(t *testing.T) {
	store := newMemoryStore()
	store.refreshErr = errors.New("db down")
	router, bearer := newTestRouter(store)

	rec := send(router, http.MethodPost, "/reviews", bearer(2), `{"business_id": 10, "rating": 5}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, store.reviews)
}

func TestFilterReviews(t *testing.T) {
	store := newMemoryStore()
	store.businesses[11] = models.Business{Model: gorm.Model{ID: 11}, OwnerID: 1}
	store.reviews[1] = models.Review{Model: gorm.Model{ID: 1}, UserID: 2, BusinessID: 10, Rating: 3}
	store.reviews[2] = models.Review{Model: gorm.Model{ID: 2}, UserID: 3, BusinessID: 10, Rating: 5}
	store.reviews[3] = models.Review{Model: gorm.Model{ID: 3}, UserID: 2, BusinessID: 11, Rating: 4}
	store.reviews[4] = models.Review{Model: gorm.Model{ID: 4}, UserID: 1, BusinessID: 10, Rating: 4}
	router, _ := newTestRouter(store)

	ids := func(body string) []uint {
		t.Helper()
		rec := send(router, http.MethodPost, "/reviews/filter", "", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var listed []models.Review
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
		out := []uint{}
		for _, r := range listed {
			out = append(out, r.ID)
		}
		return out
	}

	assert.Equal(t, []uint{4, 2, 1}, ids(`{"filters": {"business_id": 10}}`), "newest first")
	assert.Equal(t, []uint{2, 4, 1}, ids(`{"filters": {"business_id": 10}, "sort": "-rating"}`))
	assert.Equal(t, []uint{3, 1}, ids(`{"filters": {"user_id": 2}}`))
	assert.Equal(t, []uint{4, 3, 2}, ids(`{"filters": {"min_rating": 4}}`))
	assert.Equal(t, []uint{2}, ids(`{"filters": {"business_id": 10, "min_rating": 4}, "sort": "-rating", "limit": 1}`))

	assert.Equal(t, http.StatusBadRequest, send(router, http.MethodPost, "/reviews/filter", "", `[1, 2]`).Code)
}

func TestRoundRating(t *testing.T) {
	assert.Equal(t, 4.3, RoundRating(13.0/3.0))
	assert.Equal(t, 4.7, RoundRating(14.0/3.0))
	assert.Equal(t, 0.0, RoundRating(0))
}
