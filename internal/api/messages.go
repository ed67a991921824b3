package api

import (
	"net/http"

	"github.com/npezzotti/roamchat/internal/chat"
)

type AttachmentRequest struct {
	Key      string `json:"key"`
	FileType string `json:"file_type"`
}

type SendMessageRequest struct {
	RoomId      int                 `json:"room_id"`
	Content     string              `json:"content"`
	Attachments []AttachmentRequest `json:"attachments"`
}

type ReplyRequest struct {
	Content     string              `json:"content"`
	Attachments []AttachmentRequest `json:"attachments,omitempty"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

type UploadUrlRequest struct {
	FileType string `json:"file_type"`
	Folder   string `json:"folder"`
	FileName string `json:"file_name"`
}

func toAttachmentInputs(in []AttachmentRequest) []chat.AttachmentInput {
	if len(in) == 0 {
		return nil
	}

	out := make([]chat.AttachmentInput, 0, len(in))
	for _, a := range in {
		out = append(out, chat.AttachmentInput{Key: a.Key, FileType: a.FileType})
	}

	return out
}

func (s *ChatApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if errResp := decodeJson(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if req.RoomId <= 0 {
		s.writeError(w, newApiError(http.StatusBadRequest, "room_id is required"))
		return
	}

	msg, err := s.chat.SendMessage(r.Context(), userId, req.RoomId, req.Content, toAttachmentInputs(req.Attachments))
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusCreated, "message sent", msg)
}

func (s *ChatApp) listMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	roomId, errResp := pathId(r, "roomId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}
	pageSize, errResp := queryInt(r, "pageSize", chat.DefaultMessagePageSize)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}
	cursor, errResp := queryCursor(r)
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	page, err := s.chat.ListMessages(r.Context(), roomId, userId, pageSize, cursor)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "messages retrieved", page)
}

func (s *ChatApp) replyToMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	parentId, errResp := pathId(r, "messageId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	var req ReplyRequest
	if errResp := decodeJson(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if len(req.Attachments) > 0 {
		s.writeError(w, newApiError(http.StatusBadRequest, "replies cannot carry attachments"))
		return
	}

	msg, err := s.chat.Reply(r.Context(), userId, parentId, req.Content)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusCreated, "reply sent", msg)
}

func (s *ChatApp) editMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	messageId, errResp := pathId(r, "messageId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	var req EditMessageRequest
	if errResp := decodeJson(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	msg, err := s.chat.EditMessage(r.Context(), userId, messageId, req.Content)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "message updated", msg)
}

func (s *ChatApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	messageId, errResp := pathId(r, "messageId")
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if err := s.chat.DeleteMessage(r.Context(), userId, messageId); err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "message deleted", nil)
}

func (s *ChatApp) generateUploadUrl(w http.ResponseWriter, r *http.Request) {
	userId, ok := s.requestUser(w, r)
	if !ok {
		return
	}

	var req UploadUrlRequest
	if errResp := decodeJson(r, &req); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	if req.FileType == "" {
		s.writeError(w, newApiError(http.StatusBadRequest, "file_type is required"))
		return
	}

	upload, err := s.chat.UploadURL(r.Context(), userId, req.Folder, req.FileName, req.FileType)
	if err != nil {
		s.writeChatError(w, err)
		return
	}

	s.writeData(w, http.StatusOK, "upload url generated", upload)
}
