package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes wires every API route onto the router.
func RegisterRoutes(h *Handler, r *mux.Router) {
	// Health check
	r.HandleFunc("/health", h.Health).Methods("GET")

	// Session
	r.HandleFunc("/api/session", h.CreateSession).Methods("POST")

	// Platform auth endpoints
	r.HandleFunc("/api/auth/{platform}/status", h.PlatformStatus).Methods("GET")
	r.HandleFunc("/api/auth/{platform}/login-url", h.PlatformLoginURL).Methods("GET")
	r.HandleFunc("/api/auth/{platform}/connect", h.PlatformConnect).Methods("POST")
	r.HandleFunc("/api/auth/{platform}/disconnect", h.PlatformDisconnect).Methods("POST")
	r.HandleFunc("/api/auth/{platform}/dev-connect", h.PlatformDevConnect).Methods("POST")

	// Pages and posts
	r.HandleFunc("/api/pages", h.ListPages).Methods("GET")
	r.HandleFunc("/api/pages/{pageId}/posts", h.ListPostsForPage).Methods("GET")
	r.HandleFunc("/api/pages/{pageId}/posts", h.CreatePostForPage).Methods("POST")
	r.HandleFunc("/api/pages/{pageId}/posts/{postId}", h.UpdatePost).Methods("PUT", "PATCH")
	r.HandleFunc("/api/pages/{pageId}/posts/{postId}", h.DeletePost).Methods("DELETE")
	r.HandleFunc("/api/posts/{id}", h.GetPost).Methods("GET")
	r.HandleFunc("/api/posts/{id}", h.UpdatePost).Methods("PUT", "PATCH")
	r.HandleFunc("/api/posts/{id}", h.DeletePost).Methods("DELETE")
	r.HandleFunc("/api/posts/{id}/publish-now", h.PublishNowPost).Methods("POST")

	// Analytics
	r.HandleFunc("/api/posts/{id}/analytics", h.GetPostAnalytics).Methods("GET")
	r.HandleFunc("/api/pages/{pageId}/analytics", h.GetPageAnalytics).Methods("GET")
	r.HandleFunc("/api/analytics/sync", h.SyncAnalytics).Methods("POST")

	// Task boards
	r.HandleFunc("/api/marketing-tasks", h.ListMarketingTasks).Methods("GET")
	r.HandleFunc("/api/marketing-tasks", h.CreateMarketingTask).Methods("POST")
	r.HandleFunc("/api/marketing-tasks/{id}", h.UpdateMarketingTask).Methods("PUT", "PATCH")
	r.HandleFunc("/api/marketing-tasks/{id}", h.DeleteMarketingTask).Methods("DELETE")
	r.HandleFunc("/api/operation/tasks", h.ListOperationTasks).Methods("GET")
	r.HandleFunc("/api/operation/tasks", h.CreateOperationTask).Methods("POST")
	r.HandleFunc("/api/operation/tasks/{id}", h.UpdateOperationTask).Methods("PUT", "PATCH")
	r.HandleFunc("/api/operation/tasks/{id}", h.DeleteOperationTask).Methods("DELETE")

	// Calendar and Gantt views
	r.HandleFunc("/api/calendar", h.Calendar).Methods("GET")
	r.HandleFunc("/api/gantt", h.Gantt).Methods("GET")

	// Onelink tracking links
	r.HandleFunc("/api/onelink-fields", h.ListOnelinkFields).Methods("GET")
	r.HandleFunc("/api/onelink-fields", h.CreateOnelinkField).Methods("POST")
	r.HandleFunc("/api/onelink-fields/{id}", h.UpdateOnelinkField).Methods("PUT", "PATCH")
	r.HandleFunc("/api/onelink-fields/{id}", h.DeleteOnelinkField).Methods("DELETE")
	r.HandleFunc("/api/generate-onelink", h.GenerateOnelink).Methods("POST")

	// Vendors
	r.HandleFunc("/api/vendors", h.ListVendors).Methods("GET")
	r.HandleFunc("/api/vendors", h.CreateVendor).Methods("POST")
	r.HandleFunc("/api/vendors/{id}", h.UpdateVendor).Methods("PUT", "PATCH")
	r.HandleFunc("/api/vendors/{id}", h.DeleteVendor).Methods("DELETE")

	// Uploads and static media
	r.HandleFunc("/api/upload", h.Upload).Methods("POST")
	r.HandleFunc("/api/uploads", h.ListUploads).Methods("GET")
	r.HandleFunc("/api/uploads/delete", h.DeleteUploads).Methods("POST")
	r.PathPrefix("/media/").Handler(http.StripPrefix("/media/", http.FileServer(http.Dir("media"))))

	// Realtime events
	r.HandleFunc("/api/events/ping", h.EventsPing).Methods("GET")
	r.HandleFunc("/api/events/ws", h.EventsWebSocket)
}
