package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ragbot/ragchat/internal/conversation"
	"github.com/ragbot/ragchat/internal/httpapi/middleware"
)

func (h *Handler) ListConversations(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}

	convs, err := h.Convs.List(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h *Handler) CreateConversation(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}

	conv, err := h.Convs.Create(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

func (h *Handler) GetConversation(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}

	conv, err := h.Convs.Get(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation non trouvée"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

type appendMessageReq struct {
	Message *conversation.Message `json:"message" binding:"required"`
}

// AppendMessage adds one message to an owned conversation. Clients use it to
// persist what they already rendered; the ask flow persists on its own.
func (h *Handler) AppendMessage(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}

	var req appendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message requis"})
		return
	}
	if req.Message.Role != conversation.RoleUser && req.Message.Role != conversation.RoleAssistant {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rôle de message invalide"})
		return
	}

	if err := h.Convs.Append(c.Request.Context(), c.Param("id"), uid, req.Message); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation non trouvée"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": req.Message})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}

	if err := h.Convs.Delete(c.Request.Context(), c.Param("id"), uid); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation non trouvée"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
