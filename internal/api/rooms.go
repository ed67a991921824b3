package api

import (
	"net/http"
	"time"

	"github.com/npezzotti/roamchat/internal/chat"
)

const (
	defaultRoomPageSize = 10
	defaultDetailsLimit = chat.DefaultMessagePageSize
)

type CreateRoomRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	State        string `json:"state"`
	City         string `json:"city"`
	IsGroup      *bool  `json:"is_group"`
	IsInviteOnly bool   `json:"is_invite_only"`
	Image        string `json:"image"`
}

type UpdateRoomRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	State        *string `json:"state"`
	City         *string `json:"city"`
	IsGroup      *bool   `json:"is_group"`
	IsInviteOnly *bool   `json:"is_invite_only"`
	Image        *string `json:"image"`
}

type JoinRequestActionRequest struct {
	Action string `json:"action"`
}

type TransferOwnershipRequest struct {
	NewOwnerId int `json:"new_owner_id"`
}

type markReadResponse struct {
	RoomId     int       `json:"room_id"`
	LastReadAt time.Time `json:"last_read_at"`
}

func (s *ChatApp) createRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if errResp := decodeJson(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	room, err := s.chat.CreateRoom(r.Context(), userId, chat.CreateRoomInput{
		Name:         req.Name,
		Description:  req.Description,
		State:        req.State,
		City:         req.City,
		IsGroup:      req.IsGroup,
		IsInviteOnly: req.IsInviteOnly,
		Image:        req.Image,
	})
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusCreated, "chat room created", room)
}

func (s *ChatApp) updateRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	roomId, errResp := pathId(r, "roomId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	var req UpdateRoomRequest
	if errResp := decodeJson(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	room, err := s.chat.UpdateRoom(r.Context(), roomId, userId, chat.UpdateRoomInput{
		Name:         req.Name,
		Description:  req.Description,
		State:        req.State,
		City:         req.City,
		IsGroup:      req.IsGroup,
		IsInviteOnly: req.IsInviteOnly,
		Image:        req.Image,
	})
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "chat room updated", room)
}

func (s *ChatApp) listRoomsForUser(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	page, errResp := queryInt(r, "page", 1)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}
	limit, errResp := queryInt(r, "limit", defaultRoomPageSize)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	rooms, err := s.chat.ListRoomsForUser(r.Context(), userId, page, limit)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "chat rooms retrieved", rooms)
}

func (s *ChatApp) listRooms(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	page, errResp := queryInt(r, "page", 1)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}
	pageSize, errResp := queryInt(r, "pageSize", defaultRoomPageSize)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	rooms, err := s.chat.ListRooms(r.Context(), userId, page, pageSize)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "chat rooms retrieved", rooms)
}

func (s *ChatApp) getRoomDetails(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	roomId, errResp := pathId(r, "roomId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	var q chat.RoomDetailsQuery
	if q.Page, errResp = queryInt(r, "page", 1); errResp != nil {
		s.writeError(w, errResp)
		return
	}
	if q.Limit, errResp = queryInt(r, "limit", defaultDetailsLimit); errResp != nil {
		s.writeError(w, errResp)
		return
	}
	if q.Cursor, errResp = queryCursor(r); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	details, err := s.chat.GetRoomDetails(r.Context(), roomId, userId, q)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "chat room retrieved", details)
}

func (s *ChatApp) markRead(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	roomId, errResp := pathId(r, "roomId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	readAt, err := s.chat.MarkRead(r.Context(), userId, roomId)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "chat room marked as read", markReadResponse{RoomId: roomId, LastReadAt: readAt})
}

func (s *ChatApp) unreadCounts(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	counts, err := s.chat.UnreadCounts(r.Context(), userId)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "unread counts retrieved", counts)
}

func (s *ChatApp) joinRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	roomId, errResp := pathId(r, "roomId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	res, err := s.chat.Join(r.Context(), userId, roomId)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	msg := "joined chat room"
	if res.Status == chat.JoinStatusRequested {
		msg = "join request sent"
	}

	s.writeData(w, http.StatusOK, msg, res)
}

func (s *ChatApp) handleJoinRequest(w http.ResponseWriter, r *http.Request) {
	actorId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	roomId, errResp := pathId(r, "roomId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}
	targetId, errResp := pathId(r, "userId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	var req JoinRequestActionRequest
	if errResp := decodeJson(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	jr, err := s.chat.HandleJoinRequest(r.Context(), actorId, roomId, targetId, req.Action)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "join request "+lower(jr.Status), jr)
}

func (s *ChatApp) listJoinRequests(w http.ResponseWriter, r *http.Request) {
	actorId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	roomId, errResp := pathId(r, "roomId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	requests, err := s.chat.ListJoinRequests(r.Context(), actorId, roomId)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "join requests retrieved", requests)
}

func (s *ChatApp) removeMember(w http.ResponseWriter, r *http.Request) {
	actorId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	roomId, errResp := pathId(r, "roomId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}
	targetId, errResp := pathId(r, "userId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if err := s.chat.RemoveMember(r.Context(), actorId, roomId, targetId); err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "member removed", nil)
}

func (s *ChatApp) leaveRoom(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	roomId, errResp := pathId(r, "roomId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if err := s.chat.Leave(r.Context(), userId, roomId); err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "left chat room", nil)
}

func (s *ChatApp) transferOwnership(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	roomId, errResp := pathId(r, "roomId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	var req TransferOwnershipRequest
	if errResp := decodeJson(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if err := s.chat.TransferOwnership(r.Context(), userId, roomId, req.NewOwnerId); err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "ownership transferred", nil)
}
