package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/internal/utils"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/pkg/history"
)

// historyRouter serves the thread history CRUD on its own gin engine,
// mounted by the mux router under /api/history.
func historyRouter(store history.Store, log utils.ExtendedLogger) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api/history")
	{
		api.POST("/threads", createThread(store))
		api.GET("/threads", listThreads(store))
		api.GET("/threads/:thread_id", getThread(store))
		api.DELETE("/threads/:thread_id", deleteThread(store))
		api.GET("/threads/:thread_id/messages", listMessages(store))
		api.GET("/threads/:thread_id/events", listThreadEvents(store))
		api.GET("/health", historyHealth(store))
	}

	log.Debugf("server: history routes mounted at /api/history")
	return router
}

func createThread(store history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req history.CreateThreadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.AgentName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "agent_name is required"})
			return
		}

		thread, err := store.CreateThread(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, thread)
	}
}

func listThreads(store history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
			return
		}
		offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset parameter"})
			return
		}

		threads, err := store.ListThreads(c.Request.Context(), limit, offset)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if threads == nil {
			threads = []*history.Thread{}
		}

		c.JSON(http.StatusOK, gin.H{
			"threads": threads,
			"limit":   limit,
			"offset":  offset,
		})
	}
}

func getThread(store history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		thread, err := store.GetThread(c.Request.Context(), c.Param("thread_id"))
		if errors.Is(err, history.ErrThreadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, thread)
	}
}

func deleteThread(store history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := store.DeleteThread(c.Request.Context(), c.Param("thread_id"))
		if errors.Is(err, history.ErrThreadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

func listMessages(store history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		threadID := c.Param("thread_id")
		msgs, err := store.ListMessages(c.Request.Context(), threadID)
		if errors.Is(err, history.ErrThreadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"thread_id": threadID,
			"messages":  msgs,
			"total":     len(msgs),
		})
	}
}

func listThreadEvents(store history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
			return
		}

		threadID := c.Param("thread_id")
		runEvents, err := store.ListRunEvents(c.Request.Context(), threadID, limit)
		if errors.Is(err, history.ErrThreadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"thread_id": threadID,
			"events":    runEvents,
			"total":     len(runEvents),
		})
	}
}

func historyHealth(store history.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "history",
		})
	}
}
