package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ragbot/ragchat/internal/chatflow"
	"github.com/ragbot/ragchat/internal/httpapi/middleware"
)

// UploadDocuments accepts a multipart batch, runs it through the orchestrator
// (type/size checks, 3-document quota, per-file history messages) and
// reports each file's outcome.
func (h *Handler) UploadDocuments(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fichier requis"})
		return
	}
	fhs := form.File["files"]
	if len(fhs) == 0 {
		fhs = form.File["file"]
	}
	if len(fhs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Fichier requis"})
		return
	}

	uploads := make([]chatflow.Upload, 0, len(fhs))
	opened := make([]interface{ Close() error }, 0, len(fhs))
	defer func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}()

	for _, fh := range fhs {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
			return
		}
		opened = append(opened, f)
		uploads = append(uploads, chatflow.Upload{
			Name:    fh.Filename,
			Size:    fh.Size,
			Content: f,
		})
	}

	res, err := h.Flow.UploadDocuments(c.Request.Context(), uid, c.PostForm("conversationId"), uploads, h.uploadPolicy())
	if err != nil {
		logrus.WithError(err).Error("upload flow failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Le service de documents est indisponible"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": res.Outcomes})
}

func (h *Handler) ListDocuments(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}

	files, err := h.Flow.ListDocuments(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Le service de documents est indisponible"})
		return
	}
	if files == nil {
		// 404 upstream means nothing uploaded yet
		c.JSON(http.StatusOK, gin.H{"files": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (h *Handler) DeleteDocument(c *gin.Context) {
	uid, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}

	filename := c.Param("filename")
	if filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nom de fichier requis"})
		return
	}

	if err := h.Flow.DeleteDocument(c.Request.Context(), uid, filename); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Le service de documents est indisponible"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
