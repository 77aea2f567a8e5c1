package routehandlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stickerbin/server/auth"
	"github.com/stickerbin/server/datastore"
	"github.com/stickerbin/server/models"
	"github.com/stickerbin/server/webutil"
)

const (
	defaultPerPage = 20

	// recycleBinGroupID is the sentinel group id the front-end sends to
	// list soft-deleted images.
	recycleBinGroupID = "-1"

	// maxImageUploadBytes caps a single sticker upload (same 16MB ceiling
	// the schema's bytea column was sized for historically).
	maxImageUploadBytes = 16 << 20
)

type ImageStore interface {
	CreateImage(ctx context.Context, image *models.Image) error
	GetImageByID(ctx context.Context, imageID string) (*models.Image, error)
	ListImages(ctx context.Context, filter datastore.ImageFilter) ([]models.Image, models.Pagination, error)
	SetImageGroup(ctx context.Context, imageID string, groupID *string) error
	SetImageDeleted(ctx context.Context, imageID string, deleted bool) error
	DeleteImage(ctx context.Context, imageID string) error
	ClearRecycleBin(ctx context.Context, userID string) error
	CountImagesForUser(ctx context.Context, userID string) (active, deleted int, err error)
	GetImagesForExport(ctx context.Context, userID, groupID string) ([]models.Image, error)
}

type GroupStore interface {
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroupByID(ctx context.Context, groupID string) (*models.Group, error)
	GetGroupSummaries(ctx context.Context, userID string) ([]models.GroupSummary, error)
	RenameGroup(ctx context.Context, groupID, name string) error
	DeleteGroups(ctx context.Context, groupIDs []string) error
}

type ImageHandler struct {
	images ImageStore
	groups GroupStore
}

func NewImageHandler(images ImageStore, groups GroupStore) *ImageHandler {
	return &ImageHandler{images: images, groups: groups}
}

// imageResponse is the list-item shape the front-end renders. The binary
// itself is fetched lazily through the URL.
type imageResponse struct {
	ID        string       `json:"id"`
	URL       string       `json:"url"`
	Type      string       `json:"type"`
	Tags      []models.Tag `json:"tags"`
	GroupID   *string      `json:"group_id"`
	IsDeleted bool         `json:"is_deleted"`
}

func (h *ImageHandler) HandleListImages(w http.ResponseWriter, r *http.Request) error {
	userID, err := currentUserID(r)
	if err != nil {
		return err
	}

	filter := datastore.ImageFilter{
		UserID:   userID,
		Tag:      r.URL.Query().Get("tag"),
		Page:     intQueryParam(r, "page", 1),
		PerPage:  intQueryParam(r, "per_page", defaultPerPage),
		AscOrder: r.URL.Query().Get("asc_order") != "",
	}
	if groupID := r.URL.Query().Get("groupId"); groupID != "" {
		if groupID == recycleBinGroupID {
			filter.RecycleBin = true
		} else {
			filter.GroupID = groupID
		}
	}

	images, pagination, err := h.images.ListImages(r.Context(), filter)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}

	data := make([]imageResponse, 0, len(images))
	for _, image := range images {
		data = append(data, imageResponse{
			ID:        image.ID,
			URL:       "/api/images/" + image.ID,
			Type:      image.Type,
			Tags:      image.Tags,
			GroupID:   image.GroupID,
			IsDeleted: image.IsDeleted,
		})
	}
	webutil.RespondWithJSON(w, http.StatusOK, map[string]any{
		"data":       data,
		"pagination": pagination,
	})
	return nil
}

func (h *ImageHandler) HandleGetImage(w http.ResponseWriter, r *http.Request) error {
	image, err := h.ownedImage(r, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}

	// Stickers never change once uploaded, so let clients cache hard.
	w.Header().Set(webutil.HeaderContentType, "image/"+image.Type)
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(image.Data)
	return nil
}

func (h *ImageHandler) HandleAddImage(w http.ResponseWriter, r *http.Request) error {
	userID, err := currentUserID(r)
	if err != nil {
		return err
	}

	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		return webutil.ErrUnprocessableEntity("Invalid multipart form: " + err.Error())
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		return webutil.ErrUnprocessableEntity("An image file is required")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxImageUploadBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read uploaded image: %w", err)
	}
	if len(data) > maxImageUploadBytes {
		return webutil.ErrUnprocessableEntity("Image exceeds the maximum upload size")
	}

	var metadata struct {
		Type    string   `json:"type"`
		Tags    []string `json:"tags"`
		GroupID *string  `json:"group_id"`
	}
	if err := json.Unmarshal([]byte(r.FormValue("metadata")), &metadata); err != nil {
		return webutil.ErrUnprocessableEntity("Invalid metadata JSON: " + err.Error())
	}
	if metadata.Type == "" {
		return webutil.ErrUnprocessableEntity("Image type is required")
	}

	if metadata.GroupID != nil {
		group, err := h.groups.GetGroupByID(r.Context(), *metadata.GroupID)
		if err != nil {
			if errors.Is(err, datastore.ErrNotFound) {
				return webutil.ErrBadRequest("The selected group does not exist")
			}
			return fmt.Errorf("failed to look up group for upload: %w", err)
		}
		if group.UserID != userID {
			return webutil.ErrForbidden("You do not have permission to add images to this group")
		}
	}

	now := time.Now().UTC()
	image := &models.Image{
		ID:        uuid.NewString(),
		UserID:    userID,
		GroupID:   metadata.GroupID,
		CreatedAt: now,
		Type:      metadata.Type,
		Data:      data,
	}
	for _, text := range metadata.Tags {
		image.Tags = append(image.Tags, models.Tag{
			ID:        uuid.NewString(),
			UserID:    userID,
			ImageID:   image.ID,
			CreatedAt: now,
			Text:      text,
		})
	}
	if err := h.images.CreateImage(r.Context(), image); err != nil {
		return fmt.Errorf("failed to store image: %w", err)
	}

	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{"id": image.ID})
	return nil
}

func (h *ImageHandler) HandleDeleteImage(w http.ResponseWriter, r *http.Request) error {
	image, err := h.ownedImageFromBody(r)
	if err != nil {
		return err
	}
	if err := h.images.SetImageDeleted(r.Context(), image.ID, true); err != nil {
		return fmt.Errorf("failed to move image to recycle bin: %w", err)
	}
	webutil.RespondWithMsg(w, "Image moved to the recycle bin")
	return nil
}

func (h *ImageHandler) HandleRestoreImage(w http.ResponseWriter, r *http.Request) error {
	image, err := h.ownedImageFromBody(r)
	if err != nil {
		return err
	}
	if err := h.images.SetImageDeleted(r.Context(), image.ID, false); err != nil {
		return fmt.Errorf("failed to restore image: %w", err)
	}
	webutil.RespondWithMsg(w, "Image restored")
	return nil
}

func (h *ImageHandler) HandlePermanentDeleteImage(w http.ResponseWriter, r *http.Request) error {
	image, err := h.ownedImageFromBody(r)
	if err != nil {
		return err
	}
	if err := h.images.DeleteImage(r.Context(), image.ID); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	webutil.RespondWithMsg(w, "Image deleted")
	return nil
}

func (h *ImageHandler) HandleClearRecycleBin(w http.ResponseWriter, r *http.Request) error {
	userID, err := currentUserID(r)
	if err != nil {
		return err
	}
	if err := h.images.ClearRecycleBin(r.Context(), userID); err != nil {
		return fmt.Errorf("failed to clear recycle bin: %w", err)
	}
	webutil.RespondWithMsg(w, "Recycle bin emptied")
	return nil
}

func (h *ImageHandler) HandleUpdateImage(w http.ResponseWriter, r *http.Request) error {
	userID, err := currentUserID(r)
	if err != nil {
		return err
	}
	var requestData struct {
		ID      string  `json:"id"`
		GroupID *string `json:"group_id"`
	}
	if err := decodeJSONBody(r, &requestData); err != nil {
		return err
	}

	image, err := h.ownedImage(r, requestData.ID)
	if err != nil {
		return err
	}

	if requestData.GroupID != nil {
		group, err := h.groups.GetGroupByID(r.Context(), *requestData.GroupID)
		if err != nil {
			if errors.Is(err, datastore.ErrNotFound) {
				return webutil.ErrNotFound("The selected group does not exist")
			}
			return fmt.Errorf("failed to look up target group: %w", err)
		}
		if group.UserID != userID {
			return webutil.ErrForbidden("You do not have permission to move images into this group")
		}
	}
	if err := h.images.SetImageGroup(r.Context(), image.ID, requestData.GroupID); err != nil {
		return fmt.Errorf("failed to move image: %w", err)
	}
	webutil.RespondWithMsg(w, "Image moved")
	return nil
}

// ownedImage loads the image and enforces ownership: a missing image is
// 404, someone else's image is 403. The two outcomes stay distinct.
func (h *ImageHandler) ownedImage(r *http.Request, imageID string) (*models.Image, error) {
	userID, err := currentUserID(r)
	if err != nil {
		return nil, err
	}
	image, err := h.images.GetImageByID(r.Context(), imageID)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil, webutil.ErrNotFound("The image does not exist; try refreshing the page")
		}
		return nil, fmt.Errorf("failed to look up image %s: %w", imageID, err)
	}
	if image.UserID != userID {
		return nil, webutil.ErrForbidden("You do not have permission to access this image")
	}
	return image, nil
}

func (h *ImageHandler) ownedImageFromBody(r *http.Request) (*models.Image, error) {
	var requestData struct {
		ID string `json:"id"`
	}
	if err := decodeJSONBody(r, &requestData); err != nil {
		return nil, err
	}
	return h.ownedImage(r, requestData.ID)
}

// currentUserID reads the identity the session guard established.
func currentUserID(r *http.Request) (string, error) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return "", webutil.ErrUnauthorized("Please log in first")
	}
	return userID, nil
}

func intQueryParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
