package rest

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/axolotlclient/axolotlclient-api/internal/api"
)

// handleStatus reports session state plus basic system information.
func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{
		"state":     string(s.session.State()),
		"connected": s.session.Connected(),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}

	if self := s.session.Self(); self != nil {
		status["self"] = gin.H{
			"uuid":   self.UUID,
			"name":   self.Name,
			"status": string(self.Status),
			"system": self.IsSystem(),
		}
	}

	system := gin.H{
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"goroutines": runtime.NumGoroutine(),
	}
	if percent, err := cpu.Percent(0, false); err == nil && len(percent) > 0 {
		system["cpu_percent"] = percent[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		system["mem_percent"] = vm.UsedPercent
	}
	status["system"] = system

	c.JSON(http.StatusOK, status)
}

// handleFriends returns the friend list from the backend.
func (s *Server) handleFriends(c *gin.Context) {
	if !s.session.Connected() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session not connected"})
		return
	}

	friends, err := s.session.Friends().Friends(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(friends))
	for _, f := range friends {
		out = append(out, gin.H{
			"uuid":   f.UUID,
			"name":   f.Name,
			"status": string(f.Status),
		})
	}
	c.JSON(http.StatusOK, out)
}

// handleChannels lists channels with locally cached history.
func (s *Server) handleChannels(c *gin.Context) {
	channels, err := s.session.Chat().LocalChannels()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// handleChannelMessages serves locally cached messages of one channel.
func (s *Server) handleChannelMessages(c *gin.Context) {
	before := time.Now()
	if raw := c.Query("before"); raw != "" {
		epoch, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before must be an epoch second"})
			return
		}
		before = time.Unix(epoch, 0)
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	messages, err := s.session.Chat().LocalHistory(c.Param("id"), before, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type sendChatRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
	Content   string `json:"content" binding:"required"`
}

// handleSendChat posts a chat message through the session.
func (s *Server) handleSendChat(c *gin.Context) {
	var req sendChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.session.Connected() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session not connected"})
		return
	}

	s.session.Chat().SendMessage(api.Channel{ID: req.ChannelID}, req.Content)
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

// handleRestart restarts the backend session.
func (s *Server) handleRestart(c *gin.Context) {
	go s.session.Restart()
	c.JSON(http.StatusAccepted, gin.H{"restarting": true})
}
