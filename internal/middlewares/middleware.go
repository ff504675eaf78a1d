package middlewares

import (
	"log"
	"net/http"
	"os"
	"time"
)

type MiddlewareHandler struct {
	Logger *log.Logger
}

func NewMiddlewareHandler(logger *log.Logger) *MiddlewareHandler {
	return &MiddlewareHandler{Logger: logger}
}

func (mh *MiddlewareHandler) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		mh.Logger.Printf("%s %s took %v", r.Method, r.URL.Path, time.Since(start))
	})
}

func (mh *MiddlewareHandler) Cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientURL := os.Getenv("CLIENT_URL")
		if clientURL != "" {
			w.Header().Set("Access-Control-Allow-Origin", clientURL)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
