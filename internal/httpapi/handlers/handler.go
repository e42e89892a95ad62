package handlers

import (
	"time"

	"gorm.io/gorm"

	"github.com/ragbot/ragchat/internal/auth"
	"github.com/ragbot/ragchat/internal/chatflow"
	"github.com/ragbot/ragchat/internal/config"
	"github.com/ragbot/ragchat/internal/conversation"
	"github.com/ragbot/ragchat/internal/rag"
	"github.com/ragbot/ragchat/internal/relevance"
	"github.com/ragbot/ragchat/internal/store/rabbitmq"
	"github.com/ragbot/ragchat/internal/store/redisstore"
)

type Handler struct {
	Cfg        config.Config
	Auth       *auth.Service
	Convs      *conversation.Service
	Flow       *chatflow.Orchestrator
	Rabbit     *rabbitmq.Publisher
	Disclosure *relevance.Disclosure
}

// NewHandler wires the services from the composition root's connections.
// rds and rabbit may be nil in reduced deployments; logout then loses
// revocation and the async ask endpoint reports unavailable.
func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher) *Handler {
	repo := conversation.NewRepo(db)
	convs := conversation.NewService(repo)

	backend := rag.NewClient(cfg.RAGBaseURL)
	flow := chatflow.New(convs, backend)

	authSvc := auth.NewService(db, rds, time.Duration(cfg.SessionMaxAgeSeconds)*time.Second)

	return &Handler{
		Cfg:        cfg,
		Auth:       authSvc,
		Convs:      convs,
		Flow:       flow,
		Rabbit:     rabbit,
		Disclosure: relevance.NewDisclosure(),
	}
}

func (h *Handler) uploadPolicy() chatflow.UploadPolicy {
	return chatflow.UploadPolicy{
		MaxDocuments: h.Cfg.MaxDocumentsPerUser,
		MaxBytes:     h.Cfg.MaxUploadBytes,
	}
}
