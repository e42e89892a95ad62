package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ragbot/ragchat/internal/auth"
	"github.com/ragbot/ragchat/internal/httpapi/middleware"
)

type signupReq struct {
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Tous les champs sont requis"})
		return
	}

	sess, err := h.Auth.Signup(c.Request.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Cet email est déjà utilisé"})
		case errors.Is(err, auth.ErrPasswordComplexity):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Le mot de passe doit contenir au moins 8 caractères, une majuscule, une minuscule, un chiffre et un caractère spécial"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Une erreur s'est produite lors de l'inscription"})
		}
		return
	}

	if err := auth.SetSessionCookie(c, sess, h.Cfg.SessionMaxAgeSeconds, h.Cfg.SecureCookies); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Une erreur s'est produite lors de l'inscription"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Email et mot de passe requis"})
		return
	}

	sess, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Email ou mot de passe incorrect"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Une erreur s'est produite lors de la connexion"})
		return
	}

	if err := auth.SetSessionCookie(c, sess, h.Cfg.SessionMaxAgeSeconds, h.Cfg.SecureCookies); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Une erreur s'est produite lors de la connexion"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Logout clears the cookie and revokes the session id server-side. It
// succeeds even without a valid session; logging out twice is harmless.
func (h *Handler) Logout(c *gin.Context) {
	if cookie, err := c.Cookie(auth.CookieName); err == nil {
		if sess, ok := auth.DecodeSession(cookie); ok {
			h.Auth.Logout(c.Request.Context(), sess)
		}
	}
	auth.ClearSessionCookie(c, h.Cfg.SecureCookies)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type checkEmailReq struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handler) CheckEmail(c *gin.Context) {
	var req checkEmailReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email requis"})
		return
	}

	exists, err := h.Auth.CheckEmail(c.Request.Context(), req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

// Me returns the fresh session user; the middleware already re-read the row.
func (h *Handler) Me(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Non autorisé"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": sess.User})
}
