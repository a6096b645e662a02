package feed

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"gueststay/internal/domain/stay"
	"gueststay/internal/pkg/dates"
	"gueststay/internal/pkg/response"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

type WSHandler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWSHandler accepts connections from allowedOrigins only. Requests
// without an Origin header (non-browser clients) are always accepted.
func NewWSHandler(hub *Hub, allowedOrigins map[string]bool, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigins[origin]
			},
		},
	}
}

func (h *WSHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ws/guests/:guestId/stays/:roomId/periods/:checkInDate", h.Subscribe)
}

// Subscribe streams every event appended to one guest stay account.
//
// Endpoint: GET /ws/guests/:guestId/stays/:roomId/periods/:checkInDate
func (h *WSHandler) Subscribe(c *gin.Context) {
	day, err := dates.ParseUTCDay(c.Param("checkInDate"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "checkInDate must be YYYY-MM-DD")
		return
	}
	accountID := stay.AccountID(c.Param("guestId"), c.Param("roomId"), day)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	cl := &client{accountID: accountID, conn: conn, send: make(chan Message, sendBuffer)}
	h.hub.register(cl)
	h.logger.Info("feed subscriber connected", slog.String("account_id", accountID))

	go h.writeLoop(cl)
	h.readLoop(cl)

	h.hub.unregister(cl)
	_ = conn.Close()
	h.logger.Info("feed subscriber disconnected", slog.String("account_id", accountID))
}

// readLoop drains client frames so control messages are processed; the
// feed is one-way.
func (h *WSHandler) readLoop(cl *client) {
	cl.conn.SetReadLimit(512)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("feed read error", slog.String("account_id", cl.accountID), slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (h *WSHandler) writeLoop(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
