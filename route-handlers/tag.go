package routehandlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stickerbin/server/datastore"
	"github.com/stickerbin/server/models"
	"github.com/stickerbin/server/webutil"
)

type TagStore interface {
	CreateTag(ctx context.Context, tag *models.Tag) error
	GetTagByID(ctx context.Context, tagID string) (*models.Tag, error)
	GetTagsForUser(ctx context.Context, userID, imageID string) ([]models.Tag, error)
	RenameTag(ctx context.Context, tagID, text string) error
	DeleteTag(ctx context.Context, tagID string) error
}

type TagHandler struct {
	tags   TagStore
	images ImageStore
}

func NewTagHandler(tags TagStore, images ImageStore) *TagHandler {
	return &TagHandler{tags: tags, images: images}
}

func (h *TagHandler) HandleListTags(w http.ResponseWriter, r *http.Request) error {
	userID, err := currentUserID(r)
	if err != nil {
		return err
	}
	tags, err := h.tags.GetTagsForUser(r.Context(), userID, r.URL.Query().Get("image_id"))
	if err != nil {
		return fmt.Errorf("failed to list tags: %w", err)
	}
	webutil.RespondWithJSON(w, http.StatusOK, map[string]any{"data": tags})
	return nil
}

// HandleAddTag attaches a tag to one of the caller's images.
func (h *TagHandler) HandleAddTag(w http.ResponseWriter, r *http.Request) error {
	userID, err := currentUserID(r)
	if err != nil {
		return err
	}
	var requestData struct {
		ImageID string `json:"image_id"`
		Text    string `json:"text"`
	}
	if err := decodeJSONBody(r, &requestData); err != nil {
		return err
	}
	requestData.Text = strings.TrimSpace(requestData.Text)
	if requestData.Text == "" {
		return webutil.ErrUnprocessableEntity("Tag text is required")
	}

	image, err := h.images.GetImageByID(r.Context(), requestData.ImageID)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return webutil.ErrNotFound("The image does not exist; try refreshing the page")
		}
		return fmt.Errorf("failed to look up image for tagging: %w", err)
	}
	if image.UserID != userID {
		return webutil.ErrForbidden("You do not have permission to tag this image")
	}

	tag := &models.Tag{
		ID:        uuid.NewString(),
		UserID:    userID,
		ImageID:   image.ID,
		CreatedAt: time.Now().UTC(),
		Text:      requestData.Text,
	}
	if err := h.tags.CreateTag(r.Context(), tag); err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}
	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{"id": tag.ID})
	return nil
}

func (h *TagHandler) HandleUpdateTag(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	if err := decodeJSONBody(r, &requestData); err != nil {
		return err
	}
	requestData.Text = strings.TrimSpace(requestData.Text)
	if requestData.Text == "" {
		return webutil.ErrUnprocessableEntity("Tag text is required")
	}
	tag, err := h.ownedTag(r, requestData.ID)
	if err != nil {
		return err
	}
	if err := h.tags.RenameTag(r.Context(), tag.ID, requestData.Text); err != nil {
		return fmt.Errorf("failed to rename tag: %w", err)
	}
	webutil.RespondWithMsg(w, "Tag updated")
	return nil
}

func (h *TagHandler) HandleDeleteTag(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		ID string `json:"id"`
	}
	if err := decodeJSONBody(r, &requestData); err != nil {
		return err
	}
	tag, err := h.ownedTag(r, requestData.ID)
	if err != nil {
		return err
	}
	if err := h.tags.DeleteTag(r.Context(), tag.ID); err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	webutil.RespondWithMsg(w, "Tag deleted")
	return nil
}

func (h *TagHandler) ownedTag(r *http.Request, tagID string) (*models.Tag, error) {
	userID, err := currentUserID(r)
	if err != nil {
		return nil, err
	}
	tag, err := h.tags.GetTagByID(r.Context(), tagID)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil, webutil.ErrNotFound("The tag does not exist; try refreshing the page")
		}
		return nil, fmt.Errorf("failed to look up tag %s: %w", tagID, err)
	}
	if tag.UserID != userID {
		return nil, webutil.ErrForbidden("You do not have permission to access this tag")
	}
	return tag, nil
}
