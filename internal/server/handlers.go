package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dyike/StockBot/internal/service"
	"github.com/dyike/StockBot/internal/storage"
)

// Response is the envelope of every JSON answer.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

type conversationPage struct {
	Conversations []storage.Conversation `json:"conversations"`
	NextCursor    int64                  `json:"next_cursor,omitempty"`
}

func respond(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Msg: "Ok", Data: data})
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, Response{Code: code, Msg: msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	respond(c, gin.H{"status": "ok"})
}

// handleMessage answers a command. Command failures are a successful HTTP
// exchange carrying an unsuccessful Reply.
func (s *Server) handleMessage(c *gin.Context) {
	var q service.Query
	if err := c.ShouldBindJSON(&q); err != nil {
		_ = c.Error(err)
		abort(c, http.StatusBadRequest, "invalid request body")
		return
	}
	respond(c, s.bot.Load().Handle(c.Request.Context(), q))
}

func (s *Server) handleKeywords(c *gin.Context) {
	respond(c, s.bot.Load().Catalog())
}

func (s *Server) requireStore(c *gin.Context) {
	if s.store == nil {
		abort(c, http.StatusServiceUnavailable, "history is disabled")
		return
	}
	c.Next()
}

func (s *Server) handleListConversations(c *gin.Context) {
	cursor, err := queryInt(c, "cursor")
	if err != nil || cursor < 0 {
		abort(c, http.StatusBadRequest, "invalid cursor")
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil || limit < 0 {
		abort(c, http.StatusBadRequest, "invalid limit")
		return
	}

	convs, err := s.store.ListConversations(c.Request.Context(), cursor, int(limit))
	if err != nil {
		_ = c.Error(err)
		abort(c, http.StatusInternalServerError, "list conversations failed")
		return
	}
	page := conversationPage{Conversations: convs}
	// An empty page ends the listing.
	if n := len(convs); n > 0 {
		page.NextCursor = convs[n-1].RowID
	}
	respond(c, page)
}

func (s *Server) handleListMessages(c *gin.Context) {
	msgs, err := s.store.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	respond(c, msgs)
}

func (s *Server) handleDeleteConversation(c *gin.Context) {
	if err := s.store.DeleteConversation(c.Request.Context(), c.Param("id")); err != nil {
		s.storeError(c, err)
		return
	}
	respond(c, nil)
}

func (s *Server) storeError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		abort(c, http.StatusNotFound, "conversation not found")
		return
	}
	_ = c.Error(err)
	abort(c, http.StatusInternalServerError, "history lookup failed")
}

func queryInt(c *gin.Context, key string) (int64, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
