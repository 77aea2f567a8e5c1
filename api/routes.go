package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	rh "github.com/stickerbin/server/route-handlers"
	"github.com/stickerbin/server/webutil"
)

const (
	apiBasePath    = "/api"
	imagesBasePath = "/images"
	tagsBasePath   = "/tags"
	groupsBasePath = "/groups"
)

const (
	paramID = "id" // General parameter name for resource IDs
)

func SetupRoutes(
	secret []byte,
	userHandler *rh.UserHandler,
	imageHandler *rh.ImageHandler,
	groupHandler *rh.GroupHandler,
	tagHandler *rh.TagHandler,
	exportHandler *rh.ExportHandler,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)                                                 // Log every request
	r.Use(middleware.Recoverer)                                              // Recover from panics
	r.Use(middleware.Timeout(60 * time.Second))                              // Set a timeout context for requests
	r.Use(SetHeader(webutil.HeaderContentType, webutil.ContentTypeJSONUTF8)) // Default Content-Type

	r.Route(apiBasePath, func(r chi.Router) {
		// Account endpoints reachable without a session
		r.Post("/register", webutil.MakeHandler(userHandler.HandleRegister))
		r.Post("/login", webutil.MakeHandler(userHandler.HandleLogin))
		r.Post("/send-passcode", webutil.MakeHandler(userHandler.HandleSendPasscode))
		r.Post("/reset-password", webutil.MakeHandler(userHandler.HandleResetPassword))

		// Everything below requires a valid session cookie
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(secret))

			r.Get("/logout", webutil.MakeHandler(userHandler.HandleLogout))

			configureImageRoutes(r, imageHandler)
			configureTagRoutes(r, tagHandler)
			configureGroupRoutes(r, groupHandler)

			r.Get("/export", webutil.MakeHandler(exportHandler.HandleExport))
			r.Post("/clearRecycleBin", webutil.MakeHandler(imageHandler.HandleClearRecycleBin))
		})
	})

	// Health check endpoint
	r.Get("/healthz", handleHealthCheck)

	return r
}

func configureImageRoutes(r chi.Router, handler *rh.ImageHandler) {
	r.Route(imagesBasePath, func(r chi.Router) {
		r.Get("/", webutil.MakeHandler(handler.HandleListImages))
		r.Get(pathWithParam("", paramID), webutil.MakeHandler(handler.HandleGetImage))
		r.Post("/add", webutil.MakeHandler(handler.HandleAddImage))
		r.Post("/delete", webutil.MakeHandler(handler.HandleDeleteImage))
		r.Post("/restore", webutil.MakeHandler(handler.HandleRestoreImage))
		r.Post("/permanentDelete", webutil.MakeHandler(handler.HandlePermanentDeleteImage))
		r.Post("/update", webutil.MakeHandler(handler.HandleUpdateImage))
	})
}

func configureTagRoutes(r chi.Router, handler *rh.TagHandler) {
	r.Route(tagsBasePath, func(r chi.Router) {
		r.Get("/", webutil.MakeHandler(handler.HandleListTags))
		r.Post("/add", webutil.MakeHandler(handler.HandleAddTag))
		r.Post("/delete", webutil.MakeHandler(handler.HandleDeleteTag))
		r.Post("/update", webutil.MakeHandler(handler.HandleUpdateTag))
	})
}

func configureGroupRoutes(r chi.Router, handler *rh.GroupHandler) {
	r.Route(groupsBasePath, func(r chi.Router) {
		r.Get("/", webutil.MakeHandler(handler.HandleListGroups))
		r.Post("/add", webutil.MakeHandler(handler.HandleAddGroup))
		r.Post("/delete", webutil.MakeHandler(handler.HandleDeleteGroup))
		r.Post("/update", webutil.MakeHandler(handler.HandleUpdateGroup))
	})
}

// --- Utility Functions ---

// Helper for constructing paths with a parameter
func pathWithParam(basePath string, paramName string) string {
	if basePath == "" {
		return "/{" + paramName + "}"
	}
	return basePath + "/{" + paramName + "}"
}

// handleHealthCheck responds to a health check request.
func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(webutil.HeaderContentType, webutil.ContentTypeTextPlainUTF8)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
