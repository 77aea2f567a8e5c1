package routehandlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stickerbin/server/models"
)

func TestHandleAddGroup(t *testing.T) {
	t.Run("creates the group and returns its id", func(t *testing.T) {
		groups := newFakeGroupStore()
		h := NewGroupHandler(groups, newFakeImageStore())

		req := authedRequest(http.MethodPost, "/api/groups/add", "user-a", strings.NewReader(`{"name":"memes"}`))
		rec := serveAuthed(h.HandleAddGroup, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, groups.created, 1)
		require.Equal(t, "memes", groups.created[0].Name)
		require.Equal(t, "user-a", groups.created[0].UserID)
		require.Equal(t, groups.created[0].ID, decodeBody(t, rec)["id"])
	})

	t.Run("blank names are rejected", func(t *testing.T) {
		h := NewGroupHandler(newFakeGroupStore(), newFakeImageStore())
		req := authedRequest(http.MethodPost, "/api/groups/add", "user-a", strings.NewReader(`{"name":"   "}`))
		require.Equal(t, http.StatusUnprocessableEntity, serveAuthed(h.HandleAddGroup, req).Code)
	})
}

func TestHandleListGroups(t *testing.T) {
	groups := newFakeGroupStore()
	groups.groups["g-a"] = &models.Group{ID: "g-a", UserID: "user-a", Name: "mine"}
	groups.groups["g-b"] = &models.Group{ID: "g-b", UserID: "user-b", Name: "theirs"}
	groups.imageCounts["g-a"] = 2

	gA := "g-a"
	images := newFakeImageStore()
	images.images["img-1"] = &models.Image{ID: "img-1", UserID: "user-a", GroupID: &gA, Type: "png"}
	images.images["img-2"] = &models.Image{ID: "img-2", UserID: "user-a", GroupID: &gA, Type: "png"}
	images.images["img-3"] = &models.Image{ID: "img-3", UserID: "user-a", Type: "png"}
	images.images["img-4"] = &models.Image{ID: "img-4", UserID: "user-a", Type: "png", IsDeleted: true}
	images.images["img-5"] = &models.Image{ID: "img-5", UserID: "user-b", Type: "png"}
	h := NewGroupHandler(groups, images)

	rec := serveAuthed(h.HandleListGroups, authedRequest(http.MethodGet, "/api/groups/", "user-a", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []struct {
			ID          *string `json:"id"`
			Name        string  `json:"name"`
			ImageNumber int     `json:"image_number"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 3)

	// The synthetic "all" and recycle-bin rows always lead the listing.
	require.Nil(t, body.Data[0].ID)
	require.Equal(t, 3, body.Data[0].ImageNumber)
	require.NotNil(t, body.Data[1].ID)
	require.Equal(t, recycleBinGroupID, *body.Data[1].ID)
	require.Equal(t, 1, body.Data[1].ImageNumber)

	require.Equal(t, "g-a", *body.Data[2].ID)
	require.Equal(t, "mine", body.Data[2].Name)
	require.Equal(t, 2, body.Data[2].ImageNumber)
}

func TestHandleUpdateGroup(t *testing.T) {
	setup := func() (*fakeGroupStore, *GroupHandler) {
		groups := newFakeGroupStore()
		groups.groups["g-a"] = &models.Group{ID: "g-a", UserID: "user-a", Name: "old"}
		return groups, NewGroupHandler(groups, newFakeImageStore())
	}

	t.Run("renames an owned group", func(t *testing.T) {
		groups, h := setup()
		req := authedRequest(http.MethodPost, "/api/groups/update", "user-a", strings.NewReader(`{"id":"g-a","name":"new"}`))
		require.Equal(t, http.StatusOK, serveAuthed(h.HandleUpdateGroup, req).Code)
		require.Equal(t, "new", groups.renames["g-a"])
	})

	t.Run("foreign group is forbidden, missing is not found", func(t *testing.T) {
		_, h := setup()

		foreign := authedRequest(http.MethodPost, "/api/groups/update", "user-b", strings.NewReader(`{"id":"g-a","name":"x"}`))
		require.Equal(t, http.StatusForbidden, serveAuthed(h.HandleUpdateGroup, foreign).Code)

		missing := authedRequest(http.MethodPost, "/api/groups/update", "user-a", strings.NewReader(`{"id":"nope","name":"x"}`))
		require.Equal(t, http.StatusNotFound, serveAuthed(h.HandleUpdateGroup, missing).Code)
	})
}

func TestHandleDeleteGroup(t *testing.T) {
	setup := func() (*fakeGroupStore, *GroupHandler) {
		groups := newFakeGroupStore()
		groups.groups["g-1"] = &models.Group{ID: "g-1", UserID: "user-a"}
		groups.groups["g-2"] = &models.Group{ID: "g-2", UserID: "user-a"}
		groups.groups["g-b"] = &models.Group{ID: "g-b", UserID: "user-b"}
		return groups, NewGroupHandler(groups, newFakeImageStore())
	}

	t.Run("deletes a batch of owned groups", func(t *testing.T) {
		groups, h := setup()
		req := authedRequest(http.MethodPost, "/api/groups/delete", "user-a", strings.NewReader(`{"ids":["g-1","g-2"]}`))
		require.Equal(t, http.StatusOK, serveAuthed(h.HandleDeleteGroup, req).Code)
		require.Equal(t, []string{"g-1", "g-2"}, groups.deleted)
	})

	t.Run("a bad id anywhere in the batch deletes nothing", func(t *testing.T) {
		groups, h := setup()

		foreign := authedRequest(http.MethodPost, "/api/groups/delete", "user-a", strings.NewReader(`{"ids":["g-1","g-b"]}`))
		require.Equal(t, http.StatusForbidden, serveAuthed(h.HandleDeleteGroup, foreign).Code)

		missing := authedRequest(http.MethodPost, "/api/groups/delete", "user-a", strings.NewReader(`{"ids":["g-1","nope"]}`))
		require.Equal(t, http.StatusNotFound, serveAuthed(h.HandleDeleteGroup, missing).Code)

		require.Empty(t, groups.deleted)
	})

	t.Run("an empty batch is rejected", func(t *testing.T) {
		groups, h := setup()
		req := authedRequest(http.MethodPost, "/api/groups/delete", "user-a", strings.NewReader(`{"ids":[]}`))
		require.Equal(t, http.StatusUnprocessableEntity, serveAuthed(h.HandleDeleteGroup, req).Code)
		require.Empty(t, groups.deleted)
	})
}
