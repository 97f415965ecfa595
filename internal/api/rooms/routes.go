package rooms

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/unisonmedia/unison-backend/internal/logger"
)

// RegisterRoutes mounts the room REST surface and the websocket endpoint.
func RegisterRoutes(r *mux.Router, handler *Handler) {
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Log.Debug("[Room] "+req.Method+" "+req.URL.Path, "remote", req.RemoteAddr)
			next.ServeHTTP(w, req)
		})
	})

	r.HandleFunc("/api/v1/queue/fetch", handler.FetchQueue).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/health", handler.Health).Methods(http.MethodGet)
	r.HandleFunc("/ws/rooms", handler.ServeWS).Methods(http.MethodGet)
}
