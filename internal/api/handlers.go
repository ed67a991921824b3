package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/roamchat/internal/database"
	"github.com/npezzotti/roamchat/internal/server"
)

// apiResponse is the envelope of every successful JSON response.
type apiResponse struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
}

func (s *ChatApp) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("json encode")
	}
}

func (s *ChatApp) writeData(w http.ResponseWriter, statusCode int, msg string, data any) {
	s.writeJson(w, statusCode, apiResponse{StatusCode: statusCode, Message: msg, Data: data})
}

func (s *ChatApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError && errResp.Err != nil {
		s.log.Error().Err(errResp.Err).Msg("request failed")
	}

	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *ChatApp) writeChatError(w http.ResponseWriter, err error) {
	s.writeError(w, fromChatError(err))
}

func decodeJson(r *http.Request, v any) *ApiError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return newApiError(http.StatusBadRequest, "invalid request body")
	}

	return nil
}

func pathId(r *http.Request, name string) (int, *ApiError) {
	id, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, newApiError(http.StatusBadRequest, "invalid "+name)
	}

	return id, nil
}

// queryInt returns the integer query parameter name, or def when absent.
func queryInt(r *http.Request, name string, def int) (int, *ApiError) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, newApiError(http.StatusBadRequest, "invalid "+name)
	}

	return n, nil
}

func queryCursor(r *http.Request) (*int, *ApiError) {
	v := r.URL.Query().Get("cursor")
	if v == "" {
		return nil, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, newApiError(http.StatusBadRequest, "invalid cursor")
	}

	return &n, nil
}

// requestUser returns the authenticated user id set by authMiddleware.
func (s *ChatApp) requestUser(w http.ResponseWriter, r *http.Request) (int, bool) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
	}

	return userId, ok
}

func (s *ChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("health check failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *ChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	user, err := s.db.GetAccountById(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewNotFoundError())
		} else {
			s.writeError(w, NewInternalServerError(err))
		}
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Int("user_id", id).Msg("upgrade connection")
		return
	}

	client := server.NewClient(toUser(user), conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
