package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/helpora/partnercall/internal/app"
	"github.com/helpora/partnercall/internal/core"
	"github.com/helpora/partnercall/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type CallController struct {
	Host    *app.Host
	CallLog core.CallLogger
	Ctx     context.Context
}

type identityRequest struct {
	ProviderID string `json:"provider_id"`
}

func (ctl *CallController) HandleIdentity(c *gin.Context) {
	var req identityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProviderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid provider_id"})
		return
	}
	ctl.Host.SetIdentity(ctl.Ctx, domain.PartyID(req.ProviderID))
	c.JSON(http.StatusOK, gin.H{"provider_id": req.ProviderID})
}

type setupRequest struct {
	BookingID string `json:"booking_id"`
}

func (ctl *CallController) HandleStartSetup(c *gin.Context) {
	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BookingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid booking_id"})
		return
	}
	ctl.Host.Orch.StartSetup(domain.BookingID(req.BookingID))
	c.JSON(http.StatusAccepted, gin.H{"booking_id": req.BookingID})
}

func (ctl *CallController) HandleEndSetup(c *gin.Context) {
	ctl.Host.Orch.EndSetup()
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

type endCallRequest struct {
	BookingID       string `json:"booking_id"`
	DurationSeconds int    `json:"duration_seconds"`
}

func (ctl *CallController) HandleEndCallAndLog(c *gin.Context) {
	var req endCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BookingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid booking_id"})
		return
	}
	ctl.Host.Orch.EndCallAndLog(req.DurationSeconds, domain.BookingID(req.BookingID))
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func (ctl *CallController) HandleToggleMute(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"muted": ctl.Host.Media.ToggleMute()})
}

func (ctl *CallController) HandleToggleSpeaker(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"speaker": ctl.Host.Media.ToggleSpeaker()})
}

func (ctl *CallController) HandleDuration(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"duration_seconds": ctl.Host.Media.CallDuration()})
}

func (ctl *CallController) HandleHistory(c *gin.Context) {
	if ctl.CallLog == nil {
		c.JSON(http.StatusOK, gin.H{"calls": []core.CallLogEntry{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := ctl.CallLog.Recent(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("call history read")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	if entries == nil {
		entries = []core.CallLogEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"calls": entries})
}

// HandleStateStream pushes orchestrator states over a websocket. The
// client passes from_seq to replay what it missed while detached.
func (ctl *CallController) HandleStateStream(c *gin.Context) {
	fromSeq, _ := strconv.ParseInt(c.DefaultQuery("from_seq", "0"), 10, 64)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("state stream upgrade")
		return
	}
	defer ws.Close()

	backlog, events, cancel := ctl.Host.Orch.Watch(fromSeq)
	defer cancel()

	for _, ev := range backlog {
		if err := writeJSON(ws, ev); err != nil {
			return
		}
	}
	for {
		select {
		case <-ctl.Ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeJSON(ws, ev); err != nil {
				return
			}
		}
	}
}

// HandleInviteStream pushes incoming-call invites over a websocket.
func (ctl *CallController) HandleInviteStream(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("invite stream upgrade")
		return
	}
	defer ws.Close()

	invites, cancel := ctl.Host.SubscribeInvites()
	defer cancel()

	for {
		select {
		case <-ctl.Ctx.Done():
			return
		case inv, ok := <-invites:
			if !ok {
				return
			}
			if err := writeJSON(ws, inv); err != nil {
				return
			}
		}
	}
}

func writeJSON(ws *websocket.Conn, v any) error {
	if err := ws.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return err
	}
	if err := ws.WriteJSON(v); err != nil {
		log.Debug().Err(err).Str("module", "adapters.http").Msg("stream write, client gone")
		return err
	}
	return nil
}
