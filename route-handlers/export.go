package routehandlers

import (
	"archive/zip"
	"fmt"
	"net/http"
	"strconv"

	"github.com/stickerbin/server/webutil"
)

type ExportHandler struct {
	images ImageStore
}

func NewExportHandler(images ImageStore) *ExportHandler {
	return &ExportHandler{images: images}
}

// HandleExport streams every image that is not in the recycle bin as a zip
// archive, narrowed to one group when `group_id` is given. Entries are
// numbered in upload order so the archive unpacks cleanly regardless of
// the original tags.
func (h *ExportHandler) HandleExport(w http.ResponseWriter, r *http.Request) error {
	userID, err := currentUserID(r)
	if err != nil {
		return err
	}
	images, err := h.images.GetImagesForExport(r.Context(), userID, r.URL.Query().Get("group_id"))
	if err != nil {
		return fmt.Errorf("failed to load images for export: %w", err)
	}

	w.Header().Set(webutil.HeaderContentType, "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="images.zip"`)
	w.WriteHeader(http.StatusOK)

	archive := zip.NewWriter(w)
	for i, image := range images {
		entry, err := archive.Create(strconv.Itoa(i+1) + "." + image.Type)
		if err != nil {
			return fmt.Errorf("failed to create archive entry: %w", err)
		}
		if _, err := entry.Write(image.Data); err != nil {
			return fmt.Errorf("failed to write archive entry: %w", err)
		}
	}
	if err := archive.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}
