package server

import (
	"context"
	"net/http"
	"time"

	appkafka "example.com/contextfeed/internal/broker"
	"example.com/contextfeed/internal/logger"
	"example.com/contextfeed/internal/middleware"
	"example.com/contextfeed/internal/store"
)

type Server struct {
	store         store.SocialStore
	kafkaWriter   appkafka.KafkaWriter
	contextID     string
	tokenDecimals int
}

var logg = logger.New()

// contextGuard rejects requests bound to a different context handle than
// the one this node serves. Requests without the header are let through;
// the handle scopes data, it is not a credential.
func (s *Server) contextGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ctxID := r.Header.Get("X-Context-Id"); ctxID != "" && ctxID != s.contextID {
			http.Error(w, "context not authorized", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTPS server with JWT-protected routes and graceful shutdown.
func Run(ctx context.Context, st store.SocialStore, writer appkafka.KafkaWriter, addr, contextID string, tokenDecimals int) {
	s := &Server{
		store:         st,
		kafkaWriter:   writer,
		contextID:     contextID,
		tokenDecimals: tokenDecimals,
	}

	// --- HTTP routes ---
	mux := http.NewServeMux()

	// Protected endpoints with JWT authentication middleware
	mux.Handle("/likes", middleware.JWTAuth(http.HandlerFunc(s.likesHandler)))
	mux.Handle("/tips", middleware.JWTAuth(http.HandlerFunc(s.tipsHandler)))
	mux.Handle("/feed", middleware.JWTAuth(http.HandlerFunc(s.getFeedHandler)))

	// Mixed endpoints: public reads, JWT-protected writes (dispatch inside)
	mux.Handle("/users", http.HandlerFunc(s.usersHandler))
	mux.Handle("/posts", http.HandlerFunc(s.postsHandler))
	mux.Handle("/posts/count", http.HandlerFunc(s.postCountHandler))
	mux.Handle("/follows", http.HandlerFunc(s.followsHandler))
	mux.Handle("/followers", http.HandlerFunc(s.followersHandler))
	mux.Handle("/following", http.HandlerFunc(s.followingHandler))

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.contextGuard(mux),
		ReadTimeout:  10 * time.Second, // prevent slowloris attacks
		WriteTimeout: 10 * time.Second,
	}

	// --- Start server in a goroutine ---
	go func() {
		logg.Info("server", "Starting HTTPS server on "+addr)
		// TLS: cert.pem and key.pem should be valid certificates in specified paths
		if err := srv.ListenAndServeTLS("/certs/cert.pem", "/certs/key.pem"); err != nil && err != http.ErrServerClosed {
			logg.Error("server", "Server stopped unexpectedly", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	logg.Info("server", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("server", "Error during server shutdown", err)
	} else {
		logg.Info("server", "Server stopped gracefully")
	}
}
