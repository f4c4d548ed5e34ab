package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"muhabet/internal/history"
	"muhabet/internal/models"
)

type Realtime interface {
	ActiveUsers() []models.Identity
	ServeConn(ctx context.Context, ws *websocket.Conn)
}

type History interface {
	Recent(ctx context.Context, limit int, before *time.Time) ([]*models.Message, error)
}

// Handler wires HTTP routes to presence, history and the realtime endpoint.
type Handler struct {
	realtime Realtime
	history  History
	origin   string
	upgrader websocket.Upgrader
}

// NewHandler constructs a Handler instance. frontendOrigin is the only browser origin allowed.
func NewHandler(rt Realtime, hist History, frontendOrigin string) *Handler {
	h := &Handler{
		realtime: rt,
		history:  hist,
		origin:   strings.TrimRight(frontendOrigin, "/"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{h.origin},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.GET("/healthz", h.healthz)
	router.GET("/ws", h.serveWS)

	api := router.Group("/api")
	api.GET("/users/active", h.listActiveUsers)
	api.GET("/messages", h.listMessages)
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) listActiveUsers(c *gin.Context) {
	users := h.realtime.ActiveUsers()
	if users == nil {
		users = []models.Identity{}
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handler) listMessages(c *gin.Context) {
	limit := history.ParseLimit(c.Query("limit"))
	before := history.ParseBefore(c.Query("before"))
	messages, err := h.history.Recent(c.Request.Context(), limit, before)
	if err != nil {
		log.Printf("api fetch messages failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed_to_fetch_messages"})
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *Handler) serveWS(c *gin.Context) {
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader has already written the error response
		log.Printf("api websocket upgrade failed: %v", err)
		return
	}
	h.realtime.ServeConn(c.Request.Context(), ws)
}

// checkOrigin admits non-browser clients (no Origin header) and the configured frontend.
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || strings.EqualFold(strings.TrimRight(origin, "/"), h.origin)
}
