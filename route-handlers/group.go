package routehandlers

import (
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

type GroupHandler struct {
	groups GroupStore
	images ImageStore
}

func NewGroupHandler(groups GroupStore, images ImageStore) *GroupHandler {
	return &GroupHandler{groups: groups, images: images}
}

// groupEntry is one sidebar row. The two synthetic entries use a nil id
// ("all", every non-deleted image) and the recycle-bin sentinel id.
type groupEntry struct {
	ID          *string `json:"id"`
	Name        string  `json:"name"`
	ImageNumber int     `json:"image_number"`
}

func (h *GroupHandler) HandleListGroups(w http.ResponseWriter, r *http.Request) error {
	userID, err := currentUserID(r)
	if err != nil {
		return err
	}
	active, deleted, err := h.images.CountImagesForUser(r.Context(), userID)
	if err != nil {
		return fmt.Errorf("failed to count images for group listing: %w", err)
	}
	summaries, err := h.groups.GetGroupSummaries(r.Context(), userID)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	binID := recycleBinGroupID
	data := []groupEntry{
		{ID: nil, Name: "All", ImageNumber: active},
		{ID: &binID, Name: "Recycle bin", ImageNumber: deleted},
	}
	for _, summary := range summaries {
		id := summary.ID
		data = append(data, groupEntry{ID: &id, Name: summary.Name, ImageNumber: summary.ImageNumber})
	}
	webutil.RespondWithJSON(w, http.StatusOK, map[string]any{"data": data})
	return nil
}

func (h *GroupHandler) HandleAddGroup(w http.ResponseWriter, r *http.Request) error {
	userID, err := currentUserID(r)
	if err != nil {
		return err
	}
	var requestData struct {
		Name string `json:"name"`
	}
	if err := decodeJSONBody(r, &requestData); err != nil {
		return err
	}
	requestData.Name = strings.TrimSpace(requestData.Name)
	if requestData.Name == "" {
		return webutil.ErrUnprocessableEntity("A group name is required")
	}

	group := &models.Group{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		Name:      requestData.Name,
	}
	if err := h.groups.CreateGroup(r.Context(), group); err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	webutil.RespondWithJSON(w, http.StatusOK, map[string]string{"id": group.ID})
	return nil
}

func (h *GroupHandler) HandleUpdateGroup(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := decodeJSONBody(r, &requestData); err != nil {
		return err
	}
	requestData.Name = strings.TrimSpace(requestData.Name)
	if requestData.Name == "" {
		return webutil.ErrUnprocessableEntity("A group name is required")
	}
	group, err := h.ownedGroup(r, requestData.ID)
	if err != nil {
		return err
	}
	if err := h.groups.RenameGroup(r.Context(), group.ID, requestData.Name); err != nil {
		return fmt.Errorf("failed to rename group: %w", err)
	}
	webutil.RespondWithMsg(w, "Group renamed")
	return nil
}

// HandleDeleteGroup removes a batch of groups, taking their images (and the
// images' tags) with them. Ownership of every id is checked before anything
// is deleted, so a bad id anywhere in the batch deletes nothing.
func (h *GroupHandler) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) error {
	var requestData struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSONBody(r, &requestData); err != nil {
		return err
	}
	if len(requestData.IDs) == 0 {
		return webutil.ErrUnprocessableEntity("At least one group id is required")
	}
	for _, groupID := range requestData.IDs {
		if _, err := h.ownedGroup(r, groupID); err != nil {
			return err
		}
	}
	if err := h.groups.DeleteGroups(r.Context(), requestData.IDs); err != nil {
		return fmt.Errorf("failed to delete groups: %w", err)
	}
	webutil.RespondWithMsg(w, "Groups deleted")
	return nil
}

func (h *GroupHandler) ownedGroup(r *http.Request, groupID string) (*models.Group, error) {
	userID, err := currentUserID(r)
	if err != nil {
		return nil, err
	}
	group, err := h.groups.GetGroupByID(r.Context(), groupID)
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return nil, webutil.ErrNotFound("The group does not exist; try refreshing the page")
		}
		return nil, fmt.Errorf("failed to look up group %s: %w", groupID, err)
	}
	if group.UserID != userID {
		return nil, webutil.ErrForbidden("You do not have permission to access this group")
	}
	return group, nil
}
