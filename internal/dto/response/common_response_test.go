package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	apperrors "github.com/go-demo/matchroom/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, requestID string, fn func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if requestID != "" {
		c.Set(RequestIDKey, requestID)
	}
	fn(c)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func TestError_AppError(t *testing.T) {
	w, resp := render(t, "req-1", func(c *gin.Context) {
		Error(c, apperrors.ErrRoomFull.WithDetails("4/4"))
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, apperrors.ErrRoomFull.Message, resp.Error.Message)
	assert.Equal(t, "4/4", resp.Error.Details)
	assert.Equal(t, "req-1", resp.Error.RequestID)
}

func TestError_PlainErrorIsInternal(t *testing.T) {
	w, resp := render(t, "", func(c *gin.Context) {
		Error(c, errors.New("pq: connection refused"))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, apperrors.ErrInternal.Message, resp.Error.Message)
	assert.Empty(t, resp.Error.RequestID)
}

func TestAccepted(t *testing.T) {
	w, resp := render(t, "", func(c *gin.Context) {
		Accepted(c, map[string]string{"search_id": "abc"})
	})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}
