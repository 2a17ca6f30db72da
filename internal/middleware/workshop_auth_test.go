package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/harusame/workshop-live-api/internal/models"
	"github.com/stretchr/testify/require"
)

func TestRequireWorkshopAccess_LoadsWorkshopIntoContext(t *testing.T) {
	db := setupMiddlewareDB(t)
	workshop := &models.Workshop{Title: "Intro", Active: true}
	require.NoError(t, db.Create(workshop).Error)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	var loaded models.Workshop
	var ok bool
	r.GET("/workshops/:id", RequireWorkshopAccess(), func(c *gin.Context) {
		loaded, ok = GetWorkshop(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	url := fmt.Sprintf("/workshops/%d", workshop.ID)
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, url, nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, ok)
	require.Equal(t, workshop.ID, loaded.ID)
	require.Equal(t, "Intro", loaded.Title)
}

func TestRequireWorkshopAccess_UnknownWorkshop(t *testing.T) {
	setupMiddlewareDB(t)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/workshops/:id", RequireWorkshopAccess(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workshops/9999", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequireWorkshopAccess_InvalidID(t *testing.T) {
	setupMiddlewareDB(t)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/workshops/:id", RequireWorkshopAccess(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/workshops/abc", nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
}
