package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ragbot/ragchat/internal/common"
	"github.com/ragbot/ragchat/internal/conversation"
	"github.com/ragbot/ragchat/internal/httpapi/middleware"
)

type askReq struct {
	Question       string `json:"question" binding:"required"`
	ConversationID string `json:"conversationId"`
}

// Ask runs the synchronous chat flow: persist the question, query the RAG
// backend, persist the reply (real or synthetic failure). With no
// conversationId a conversation is created first and its id is only
// reported once it holds the first message.
func (h *Handler) Ask(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}

	var req askReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question requise"})
		return
	}

	res, err := h.Flow.Ask(c.Request.Context(), uid, req.ConversationID, req.Question)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation non trouvée"})
			return
		}
		logrus.WithError(err).Error("ask flow failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversationId":   res.ConversationID,
		"created":          res.CreatedConv,
		"state":            res.State,
		"noDocuments":      res.NoDocuments,
		"userMessage":      res.UserMessage,
		"assistantMessage": res.AssistantMessage,
	})
}

type askAsyncReq struct {
	Question       string `json:"question" binding:"required"`
	ConversationID string `json:"conversationId" binding:"required"`
}

// AskAsync enqueues the question as a job for the worker. An optional
// Idempotency-Key header makes retried submissions collapse onto the
// existing job instead of asking twice.
func (h *Handler) AskAsync(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}
	if h.Rabbit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Le traitement asynchrone est indisponible"})
		return
	}

	var req askAsyncReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Question et conversation requises"})
		return
	}

	// conversation must exist and be owned before enqueueing
	if _, err := h.Convs.Get(c.Request.Context(), req.ConversationID, uid); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversation non trouvée"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Clé d'idempotence trop longue"})
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	jobID, err := common.NewULID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	job := &conversation.AskJob{
		ID:             jobID,
		UserID:         uid,
		ConversationID: req.ConversationID,
		Question:       req.Question,
		IdempotencyKey: idempoKeyPtr,
		Status:         conversation.JobQueued,
	}

	job, created, err := h.Convs.CreateJobOrGetExisting(c.Request.Context(), job)
	if err != nil {
		logrus.WithError(err).Error("ask job create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), job.ID); err != nil {
			logrus.WithError(err).WithField("job_id", job.ID).Error("ask job publish failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"jobId": job.ID})
}

func (h *Handler) GetAskJob(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}

	j, err := h.Convs.GetJob(c.Request.Context(), c.Param("job_id"), uid)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tâche non trouvée"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job": gin.H{
			"id":              j.ID,
			"conversationId":  j.ConversationID,
			"status":          j.Status,
			"resultMessageId": j.ResultMessageID,
			"error":           j.Error,
			"createdAt":       j.CreatedAt,
			"updatedAt":       j.UpdatedAt,
		},
	})
}

// MessageContext returns the rendered context view of an assistant message:
// ranked excerpts, highlighted segments, disclosure state applied.
func (h *Handler) MessageContext(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}

	view, err := h.Flow.RenderContext(c.Request.Context(), uid, c.Param("id"), c.Param("message_id"), h.Disclosure)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Message non trouvé"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": view})
}

type toggleReq struct {
	Index int `json:"index"`
}

// ToggleExcerpt flips one excerpt between segment view and full view.
func (h *Handler) ToggleExcerpt(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}

	// ownership check before touching disclosure state
	msg, err := h.Convs.GetMessage(c.Request.Context(), c.Param("id"), uid, c.Param("message_id"))
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Message non trouvé"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}

	var req toggleReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Index < 0 || req.Index >= len(msg.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Index d'extrait invalide"})
		return
	}

	expanded := h.Disclosure.Toggle(c.Param("message_id"), req.Index)
	c.JSON(http.StatusOK, gin.H{"expanded": expanded})
}
