package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/buffermesh/buffermesh/internal/server/models"
)

type addMessageRequest struct {
	Content       string `json:"content" binding:"required"`
	ContentType   string `json:"content_type" binding:"required"`
	AttachmentKey string `json:"attachment_key"`
}

type messageResponse struct {
	UID           string    `json:"uid"`
	BufferUID     string    `json:"buffer_uid"`
	Content       string    `json:"content"`
	ContentType   string    `json:"content_type"`
	AttachmentKey string    `json:"attachment_key,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toMessageResponse(m *models.Message) messageResponse {
	return messageResponse{
		UID:           m.UID,
		BufferUID:     m.BufferUID,
		Content:       m.Content,
		ContentType:   m.ContentType,
		AttachmentKey: m.AttachmentKey,
		CreatedAt:     m.CreatedAt,
	}
}

// pageParams reads the delete/offset/limit query parameters. limit
// defaults to -1, meaning the whole selection.
func pageParams(c *gin.Context) (deleteOnGet bool, offset, limit int, err error) {
	deleteOnGet, err = strconv.ParseBool(c.DefaultQuery("delete", "false"))
	if err != nil {
		return false, 0, 0, err
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		return false, 0, 0, err
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "-1"))
	if err != nil {
		return false, 0, 0, err
	}
	return deleteOnGet, offset, limit, nil
}

func (s *Server) handleAddMessage(c *gin.Context) {
	var req addMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortBadRequest(c, err)
		return
	}

	message, err := s.messages.AddMessage(c.Request.Context(), clientUID(c), c.Param("uid"),
		req.Content, req.ContentType, req.AttachmentKey)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toMessageResponse(message))
}

func (s *Server) writeMessagePage(c *gin.Context, page []*models.Message, err error) {
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]messageResponse, 0, len(page))
	for _, m := range page {
		out = append(out, toMessageResponse(m))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleMessagesByBuffer(c *gin.Context) {
	deleteOnGet, offset, limit, err := pageParams(c)
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	page, err := s.messages.GetMessagesByBuffer(c.Request.Context(), clientUID(c), c.Param("uid"), deleteOnGet, offset, limit)
	s.writeMessagePage(c, page, err)
}

func (s *Server) handleMessagesByScheme(c *gin.Context) {
	deleteOnGet, offset, limit, err := pageParams(c)
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	page, err := s.messages.GetMessagesByScheme(c.Request.Context(), clientUID(c), c.Param("uid"), deleteOnGet, offset, limit)
	s.writeMessagePage(c, page, err)
}

func (s *Server) handleMessagesByDevice(c *gin.Context) {
	deleteOnGet, offset, limit, err := pageParams(c)
	if err != nil {
		abortBadRequest(c, err)
		return
	}
	page, err := s.messages.GetMessagesByDevice(c.Request.Context(), clientUID(c), c.Param("uid"), deleteOnGet, offset, limit)
	s.writeMessagePage(c, page, err)
}

func (s *Server) handleAttachmentUploadURL(c *gin.Context) {
	key, url, err := s.messages.GetAttachmentUploadURL(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "url": url})
}

func (s *Server) handleAttachmentDownloadURL(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "key is required"})
		return
	}

	url, err := s.messages.GetAttachmentDownloadURL(c.Request.Context(), key)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
