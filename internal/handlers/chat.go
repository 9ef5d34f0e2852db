package handlers

import (
	"net/http"

	"github.com/HammerMeetNail/lingopair/internal/services"
)

type ChatHandler struct {
	chat   services.ChatServiceInterface
	apiKey string
}

func NewChatHandler(chat services.ChatServiceInterface, apiKey string) *ChatHandler {
	return &ChatHandler{chat: chat, apiKey: apiKey}
}

type ChatTokenResponse struct {
	Token  string `json:"token"`
	APIKey string `json:"api_key,omitempty"`
}

type ChatChannelResponse struct {
	ChannelID string `json:"channel_id"`
}

func (h *ChatHandler) Token(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	token, err := h.chat.Token(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "chat token", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", ChatTokenResponse{Token: token, APIKey: h.apiKey})
}

func (h *ChatHandler) Channel(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	peerID, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	channelID, err := h.chat.ChannelFor(r.Context(), user.ID, peerID)
	if err != nil {
		writeServiceError(w, "chat channel", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", ChatChannelResponse{ChannelID: channelID})
}
