package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecover_ReturnsInternalServerError(t *testing.T) {
	h := Recover(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), mw("a"), mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRespWriter_RecordsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	w := wrapResponseWriter(rec)
	assert.Same(t, w, wrapResponseWriter(w))

	w.WriteHeader(http.StatusTeapot)
	w.WriteHeader(http.StatusOK)
	assert.Equal(t, http.StatusTeapot, w.status)
	assert.Equal(t, rec, w.Unwrap())
}

func TestParseDurationQuery(t *testing.T) {
	tests := []struct {
		query   string
		want    time.Duration
		wantErr bool
	}{
		{query: "", want: 0},
		{query: "wait=30", want: 30 * time.Second},
		{query: "wait=1m30s", want: 90 * time.Second},
		{query: "wait=-1", wantErr: true},
		{query: "wait=-5s", wantErr: true},
		{query: "wait=later", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			got, err := parseDurationQuery(r, "wait")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLimitOffset(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=5000&offset=-3", nil)
	limit, offset := ParseLimitOffset(r, defaultListLimit, maxListLimit)
	assert.Equal(t, maxListLimit, limit)
	assert.Zero(t, offset)

	r = httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
	assert.Equal(t, defaultListLimit, ParseLimit(r, defaultListLimit, maxListLimit))
}
