package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/roamchat/internal/chat"
	"github.com/npezzotti/roamchat/internal/config"
	"github.com/npezzotti/roamchat/internal/database"
	"github.com/npezzotti/roamchat/internal/server"
	"github.com/npezzotti/roamchat/internal/stats"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const serviceName = "roamchat"

type ChatApp struct {
	log            zerolog.Logger
	db             database.ChatRepository
	chat           *chat.Service
	cs             *server.ChatServer
	srv            *http.Server
	limiter        *rateLimiter
	signingKey     []byte
	allowedOrigins []string
}

type handlerInstrumenter interface {
	InstrumentHandler(next http.Handler) http.Handler
}

func NewChatApp(mux *http.ServeMux, logger zerolog.Logger, cs *server.ChatServer, db database.ChatRepository, svc *chat.Service, su stats.StatsProvider, cfg *config.Config) *ChatApp {
	s := &ChatApp{
		log:            logger.With().Str("component", "http").Logger(),
		db:             db,
		chat:           svc,
		cs:             cs,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	if cfg.MessageRate > 0 {
		s.limiter = newRateLimiter(rate.Limit(cfg.MessageRate), cfg.MessageBurst, limiterTTL)
		go s.limiter.gc()
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/v1/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/v1/auth/login", s.login)
	mux.HandleFunc("GET /api/v1/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/v1/auth/logout", s.authMiddleware(s.logout))

	mux.HandleFunc("POST /api/v1/chats/rooms", s.authMiddleware(s.createRoom))
	mux.HandleFunc("GET /api/v1/chats/rooms", s.authMiddleware(s.listRooms))
	mux.HandleFunc("GET /api/v1/chats/rooms/mine", s.authMiddleware(s.listRoomsForUser))
	mux.HandleFunc("GET /api/v1/chats/rooms/{roomId}", s.authMiddleware(s.getRoomDetails))
	mux.HandleFunc("PATCH /api/v1/chats/rooms/{roomId}", s.authMiddleware(s.updateRoom))
	mux.HandleFunc("PUT /api/v1/chats/rooms/{roomId}/read", s.authMiddleware(s.markRead))
	mux.HandleFunc("GET /api/v1/chats/unread-counts", s.authMiddleware(s.unreadCounts))
	mux.HandleFunc("POST /api/v1/chats/rooms/{roomId}/join", s.authMiddleware(s.joinRoom))
	mux.HandleFunc("GET /api/v1/chats/rooms/{roomId}/join-requests", s.authMiddleware(s.listJoinRequests))
	mux.HandleFunc("POST /api/v1/chats/rooms/{roomId}/join-requests/{userId}", s.authMiddleware(s.handleJoinRequest))
	mux.HandleFunc("DELETE /api/v1/chats/rooms/{roomId}/members/{userId}", s.authMiddleware(s.removeMember))
	mux.HandleFunc("DELETE /api/v1/chats/rooms/{roomId}/leave", s.authMiddleware(s.leaveRoom))
	mux.HandleFunc("PUT /api/v1/chats/rooms/{roomId}/transfer-ownership", s.authMiddleware(s.transferOwnership))
	mux.HandleFunc("GET /api/v1/chats/rooms/{roomId}/messages", s.authMiddleware(s.listMessages))

	mux.HandleFunc("POST /api/v1/chats/messages", s.authMiddleware(s.rateLimit(s.sendMessage)))
	mux.HandleFunc("POST /api/v1/chats/messages/{messageId}/reply", s.authMiddleware(s.rateLimit(s.replyToMessage)))
	mux.HandleFunc("PUT /api/v1/chats/messages/{messageId}", s.authMiddleware(s.editMessage))
	mux.HandleFunc("DELETE /api/v1/chats/messages/{messageId}", s.authMiddleware(s.deleteMessage))

	mux.HandleFunc("POST /api/v1/uploads/generate-upload-url", s.authMiddleware(s.generateUploadUrl))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)
	if inst, ok := su.(handlerInstrumenter); ok {
		h = inst.InstrumentHandler(h)
	}
	h = otelhttp.NewHandler(h, serviceName)

	s.srv = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *ChatApp) Handler() http.Handler {
	return s.srv.Handler
}

func (s *ChatApp) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("starting server")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	if s.limiter != nil {
		s.limiter.Stop()
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
