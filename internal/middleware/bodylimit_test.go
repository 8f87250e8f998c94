package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBodyLimitAnswersBadRequest(t *testing.T) {
	e := quietEcho()
	e.POST("/purchase", func(c echo.Context) error {
		b, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, string(b))
	}, BodyLimit("16B"))

	small := `{"quantity":1}`
	req := httptest.NewRequest(http.MethodPost, "/purchase", strings.NewReader(small))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, small, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/purchase", strings.NewReader(`{"concertId":5,"quantity":2,"name":"Ada"}`))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Error: request body exceeds 16B", rec.Body.String())
}
