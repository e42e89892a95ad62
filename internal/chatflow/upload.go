package chatflow

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ragbot/ragchat/internal/conversation"
	"github.com/ragbot/ragchat/internal/rag"
)

var allowedExtensions = map[string]struct{}{
	".pdf":  {},
	".docx": {},
	".txt":  {},
	".md":   {},
	".json": {},
}

type Upload struct {
	Name    string
	Size    int64
	Content io.Reader
}

// FileOutcome is one file's fate, also appended to the conversation as an
// assistant message so the history shows what happened.
type FileOutcome struct {
	Filename string `json:"filename"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

type UploadResult struct {
	Outcomes []FileOutcome
}

type UploadPolicy struct {
	MaxDocuments int
	MaxBytes     int64
}

func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{MaxDocuments: 3, MaxBytes: 10 << 20}
}

func uploadSuccessMessage(name string) string {
	return fmt.Sprintf("✅ Fichier %q téléversé avec succès.", name)
}

func uploadFailureMessage(name, reason string) string {
	return fmt.Sprintf("❌ Erreur lors du téléversement du fichier %q : %s", name, reason)
}

// UploadDocuments validates files locally (type, size), then enforces the
// per-user document quota against the backend's existing uploads, and only
// then sends what survived. Every file's outcome lands in the conversation
// as an assistant message. Validation rejections never reach the network.
func (o *Orchestrator) UploadDocuments(ctx context.Context, userID uint64, conversationID string, files []Upload, policy UploadPolicy) (*UploadResult, error) {
	if policy.MaxDocuments <= 0 {
		policy = DefaultUploadPolicy()
	}

	res := &UploadResult{}
	accepted := make([]Upload, 0, len(files))

	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Name))
		if _, ok := allowedExtensions[ext]; !ok {
			res.Outcomes = append(res.Outcomes, FileOutcome{
				Filename: f.Name,
				Reason:   "format non supporté (PDF, DOCX, TXT, MD ou JSON attendu)",
			})
			continue
		}
		if f.Size > policy.MaxBytes {
			res.Outcomes = append(res.Outcomes, FileOutcome{
				Filename: f.Name,
				Reason:   "fichier trop volumineux",
			})
			continue
		}
		accepted = append(accepted, f)
	}

	if len(accepted) > 0 {
		existing, err := o.backend.ListFiles(ctx, strconv.FormatUint(userID, 10))
		if err != nil {
			return nil, err
		}

		free := policy.MaxDocuments - len(existing)
		if free < 0 {
			free = 0
		}
		if len(accepted) > free {
			for _, f := range accepted[free:] {
				res.Outcomes = append(res.Outcomes, FileOutcome{
					Filename: f.Name,
					Reason: fmt.Sprintf("limite de %d documents atteinte, supprimez un document avant d'en téléverser un nouveau",
						policy.MaxDocuments),
				})
			}
			accepted = accepted[:free]
		}
	}

	if len(accepted) > 0 {
		payload := make([]rag.File, 0, len(accepted))
		for _, f := range accepted {
			payload = append(payload, rag.File{Name: f.Name, Content: f.Content})
		}

		statuses, err := o.backend.UploadFiles(ctx, strconv.FormatUint(userID, 10), payload)
		if err != nil {
			logrus.WithError(err).Warn("backend upload failed")
			for _, f := range accepted {
				res.Outcomes = append(res.Outcomes, FileOutcome{
					Filename: f.Name,
					Reason:   "le service de documents est indisponible",
				})
			}
		} else {
			byName := make(map[string]rag.FileStatus, len(statuses))
			for _, st := range statuses {
				byName[st.Filename] = st
			}
			for _, f := range accepted {
				st, ok := byName[f.Name]
				switch {
				case ok && st.Status == "success":
					res.Outcomes = append(res.Outcomes, FileOutcome{Filename: f.Name, Accepted: true})
				case ok:
					res.Outcomes = append(res.Outcomes, FileOutcome{Filename: f.Name, Reason: st.Error})
				default:
					res.Outcomes = append(res.Outcomes, FileOutcome{Filename: f.Name, Reason: "aucun statut renvoyé"})
				}
			}
		}
	}

	if conversationID != "" {
		for _, out := range res.Outcomes {
			content := uploadSuccessMessage(out.Filename)
			if !out.Accepted {
				content = uploadFailureMessage(out.Filename, out.Reason)
			}
			msg := &conversation.Message{
				Role:    conversation.RoleAssistant,
				Content: content,
			}
			if err := o.convs.Append(ctx, conversationID, userID, msg); err != nil {
				return res, err
			}
		}
	}

	return res, nil
}

// ListDocuments proxies the backend's file listing.
func (o *Orchestrator) ListDocuments(ctx context.Context, userID uint64) ([]rag.FileInfo, error) {
	return o.backend.ListFiles(ctx, strconv.FormatUint(userID, 10))
}

// DeleteDocument proxies the backend's file deletion.
func (o *Orchestrator) DeleteDocument(ctx context.Context, userID uint64, filename string) error {
	return o.backend.DeleteFile(ctx, strconv.FormatUint(userID, 10), filename)
}
