package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vitaly-zn/coupons-project-back-end/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCatalogService is a mock implementation of CatalogService.
type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) Get(ctx context.Context, couponID int64) (*model.Coupon, error) {
	args := m.Called(ctx, couponID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}

func (m *MockCatalogService) ListAvailable(ctx context.Context, q model.ListQuery) ([]model.Coupon, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Coupon), args.Error(1)
}

func (m *MockCatalogService) ListByCompany(ctx context.Context, companyID int64, q model.ListQuery) ([]model.Coupon, error) {
	args := m.Called(ctx, companyID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Coupon), args.Error(1)
}

func (m *MockCatalogService) ListByCustomer(ctx context.Context, customerID int64, q model.ListQuery) ([]model.Coupon, error) {
	args := m.Called(ctx, customerID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Coupon), args.Error(1)
}

// MockCouponService is a mock implementation of CouponService.
type MockCouponService struct {
	mock.Mock
}

func (m *MockCouponService) Add(ctx context.Context, companyID int64, coupon *model.Coupon) (*model.Coupon, error) {
	args := m.Called(ctx, companyID, coupon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}

func (m *MockCouponService) Update(ctx context.Context, companyID int64, coupon *model.Coupon) (*model.Coupon, error) {
	args := m.Called(ctx, companyID, coupon)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Coupon), args.Error(1)
}

func (m *MockCouponService) Delete(ctx context.Context, companyID, couponID int64) error {
	args := m.Called(ctx, companyID, couponID)
	return args.Error(0)
}

// withParams attaches chi URL parameters to the request.
func withParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var body model.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func sampleCoupon(id int64) model.Coupon {
	return model.Coupon{
		ID:          id,
		CompanyID:   1,
		Category:    model.CategoryRestaurant,
		Title:       "Dinner for two",
		Description: "Three courses",
		StartDate:   model.NewDate(2025, time.May, 1),
		EndDate:     model.NewDate(2025, time.July, 1),
		Amount:      12,
		Price:       decimal.RequireFromString("59.90"),
		Image:       "dinner.png",
	}
}

func TestCouponHandler_ListAvailable(t *testing.T) {
	coupons := []model.Coupon{sampleCoupon(1), sampleCoupon(2)}
	restaurant := model.CategoryRestaurant
	maxPrice := decimal.RequireFromString("60")

	tests := []struct {
		name           string
		query          string
		expectQuery    *model.ListQuery
		mockReturn     []model.Coupon
		mockError      error
		expectedStatus int
		expectedCode   model.Code
	}{
		{
			name:           "no filters",
			expectQuery:    &model.ListQuery{},
			mockReturn:     coupons,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "category and max price",
			query:          "?category=restaurant&maxPrice=60",
			expectQuery:    &model.ListQuery{Category: &restaurant, MaxPrice: &maxPrice},
			mockReturn:     coupons[:1],
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown category",
			query:          "?category=CASINO",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidation,
		},
		{
			name:           "malformed max price",
			query:          "?maxPrice=cheap",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeValidation,
		},
		{
			name:           "store unavailable",
			expectQuery:    &model.ListQuery{},
			mockError:      model.WrapDomainError(model.ErrCodeStoreUnavailable, "store unavailable", errors.New("dial tcp: refused")),
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   model.ErrCodeStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := new(MockCatalogService)
			if tt.expectQuery != nil {
				catalog.On("ListAvailable", mock.Anything, mock.MatchedBy(func(q model.ListQuery) bool {
					return sameQuery(*tt.expectQuery, q)
				})).Return(tt.mockReturn, tt.mockError)
			}
			h := NewCouponHandler(catalog, new(MockCouponService), zerolog.Nop())

			req := httptest.NewRequest(http.MethodGet, "/api/coupons"+tt.query, nil)
			w := httptest.NewRecorder()
			h.ListAvailable(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				body := decodeError(t, w)
				assert.Equal(t, string(tt.expectedCode), body.Error)
				assert.NotContains(t, body.Message, "dial tcp", "internal causes stay out of responses")
			} else {
				var got []model.Coupon
				require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
				assert.Len(t, got, len(tt.mockReturn))
			}
			catalog.AssertExpectations(t)
		})
	}
}

func sameQuery(a, b model.ListQuery) bool {
	if (a.Category == nil) != (b.Category == nil) || (a.MaxPrice == nil) != (b.MaxPrice == nil) {
		return false
	}
	if a.Category != nil && *a.Category != *b.Category {
		return false
	}
	return a.MaxPrice == nil || a.MaxPrice.Equal(*b.MaxPrice)
}

func TestCouponHandler_ListEmptyIsArray(t *testing.T) {
	catalog := new(MockCatalogService)
	catalog.On("ListByCustomer", mock.Anything, int64(3), mock.Anything).Return(nil, nil)
	h := NewCouponHandler(catalog, new(MockCouponService), zerolog.Nop())

	req := withParams(httptest.NewRequest(http.MethodGet, "/api/customers/3/coupons", nil), map[string]string{"customerID": "3"})
	w := httptest.NewRecorder()
	h.ListByCustomer(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestCouponHandler_Get(t *testing.T) {
	coupon := sampleCoupon(7)

	tests := []struct {
		name           string
		id             string
		mockReturn     *model.Coupon
		mockError      error
		expectService  bool
		expectedStatus int
	}{
		{name: "found", id: "7", mockReturn: &coupon, expectService: true, expectedStatus: http.StatusOK},
		{name: "not found", id: "8", mockError: model.NewDomainError(model.ErrCodeNotFound, "coupon 8 not found"), expectService: true, expectedStatus: http.StatusNotFound},
		{name: "non numeric id", id: "abc", expectedStatus: http.StatusBadRequest},
		{name: "zero id", id: "0", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := new(MockCatalogService)
			if tt.expectService {
				catalog.On("Get", mock.Anything, mock.AnythingOfType("int64")).Return(tt.mockReturn, tt.mockError)
			}
			h := NewCouponHandler(catalog, new(MockCouponService), zerolog.Nop())

			req := withParams(httptest.NewRequest(http.MethodGet, "/api/coupons/"+tt.id, nil), map[string]string{"couponID": tt.id})
			w := httptest.NewRecorder()
			h.Get(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var got model.Coupon
				require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
				assert.Equal(t, coupon.Title, got.Title)
				assert.True(t, coupon.Price.Equal(got.Price))
			}
			catalog.AssertExpectations(t)
		})
	}
}

const couponBody = `{"category":"SPORT","title":"Climbing","description":"Day pass","startDate":"2025-06-01","endDate":"2025-09-01","amount":10,"price":"25.00","image":"climb.png"}`

func TestCouponHandler_Add(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		coupons := new(MockCouponService)
		created := sampleCoupon(11)
		coupons.On("Add", mock.Anything, int64(1), mock.MatchedBy(func(c *model.Coupon) bool {
			return c.Title == "Climbing" && c.Category == model.CategorySport && c.Amount == 10
		})).Return(&created, nil)
		h := NewCouponHandler(new(MockCatalogService), coupons, zerolog.Nop())

		req := withParams(httptest.NewRequest(http.MethodPost, "/api/companies/1/coupons", strings.NewReader(couponBody)), map[string]string{"companyID": "1"})
		w := httptest.NewRecorder()
		h.Add(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		coupons.AssertExpectations(t)
	})

	t.Run("title taken", func(t *testing.T) {
		coupons := new(MockCouponService)
		coupons.On("Add", mock.Anything, int64(1), mock.Anything).Return(nil, model.ErrTitleTaken)
		h := NewCouponHandler(new(MockCatalogService), coupons, zerolog.Nop())

		req := withParams(httptest.NewRequest(http.MethodPost, "/api/companies/1/coupons", strings.NewReader(couponBody)), map[string]string{"companyID": "1"})
		w := httptest.NewRecorder()
		h.Add(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, string(model.ErrCodeConflict), decodeError(t, w).Error)
	})

	t.Run("malformed body", func(t *testing.T) {
		coupons := new(MockCouponService)
		h := NewCouponHandler(new(MockCatalogService), coupons, zerolog.Nop())

		req := withParams(httptest.NewRequest(http.MethodPost, "/api/companies/1/coupons", strings.NewReader(`{"title":`)), map[string]string{"companyID": "1"})
		w := httptest.NewRecorder()
		h.Add(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		coupons.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown field", func(t *testing.T) {
		h := NewCouponHandler(new(MockCatalogService), new(MockCouponService), zerolog.Nop())

		req := withParams(httptest.NewRequest(http.MethodPost, "/api/companies/1/coupons", strings.NewReader(`{"discount":5}`)), map[string]string{"companyID": "1"})
		w := httptest.NewRecorder()
		h.Add(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCouponHandler_Update(t *testing.T) {
	t.Run("path id wins", func(t *testing.T) {
		coupons := new(MockCouponService)
		updated := sampleCoupon(5)
		coupons.On("Update", mock.Anything, int64(1), mock.MatchedBy(func(c *model.Coupon) bool {
			return c.ID == 5
		})).Return(&updated, nil)
		h := NewCouponHandler(new(MockCatalogService), coupons, zerolog.Nop())

		req := withParams(httptest.NewRequest(http.MethodPut, "/api/companies/1/coupons/5", strings.NewReader(couponBody)),
			map[string]string{"companyID": "1", "couponID": "5"})
		w := httptest.NewRecorder()
		h.Update(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		coupons.AssertExpectations(t)
	})

	t.Run("mismatched ids", func(t *testing.T) {
		h := NewCouponHandler(new(MockCatalogService), new(MockCouponService), zerolog.Nop())
		body := strings.Replace(couponBody, `{"category"`, `{"id":9,"category"`, 1)

		req := withParams(httptest.NewRequest(http.MethodPut, "/api/companies/1/coupons/5", strings.NewReader(body)),
			map[string]string{"companyID": "1", "couponID": "5"})
		w := httptest.NewRecorder()
		h.Update(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("other company", func(t *testing.T) {
		coupons := new(MockCouponService)
		coupons.On("Update", mock.Anything, int64(2), mock.Anything).Return(nil, model.ErrNotOwner)
		h := NewCouponHandler(new(MockCatalogService), coupons, zerolog.Nop())

		req := withParams(httptest.NewRequest(http.MethodPut, "/api/companies/2/coupons/5", strings.NewReader(couponBody)),
			map[string]string{"companyID": "2", "couponID": "5"})
		w := httptest.NewRecorder()
		h.Update(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCouponHandler_Delete(t *testing.T) {
	coupons := new(MockCouponService)
	coupons.On("Delete", mock.Anything, int64(1), int64(5)).Return(nil)
	coupons.On("Delete", mock.Anything, int64(1), int64(6)).Return(model.ErrNotFound)
	h := NewCouponHandler(new(MockCatalogService), coupons, zerolog.Nop())

	req := withParams(httptest.NewRequest(http.MethodDelete, "/api/companies/1/coupons/5", nil), map[string]string{"companyID": "1", "couponID": "5"})
	w := httptest.NewRecorder()
	h.Delete(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = withParams(httptest.NewRequest(http.MethodDelete, "/api/companies/1/coupons/6", nil), map[string]string{"companyID": "1", "couponID": "6"})
	w = httptest.NewRecorder()
	h.Delete(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	coupons.AssertExpectations(t)
}
