package handlers

import (
	"net/http"

	"github.com/HammerMeetNail/lingopair/internal/models"
	"github.com/HammerMeetNail/lingopair/internal/services"
)

type RelationshipHandler struct {
	relationships services.RelationshipServiceInterface
}

func NewRelationshipHandler(relationships services.RelationshipServiceInterface) *RelationshipHandler {
	return &RelationshipHandler{relationships: relationships}
}

// FriendRequestsResponse is the notifications view: invitations waiting on
// the caller and the caller's invitations that were accepted.
type FriendRequestsResponse struct {
	IncomingRequests []models.FriendRequestWithUser `json:"incoming_requests"`
	AcceptedRequests []models.FriendRequestWithUser `json:"accepted_requests"`
}

func (h *RelationshipHandler) Recommended(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	users, err := h.relationships.GetRecommendedUsers(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "recommended users", err)
		return
	}
	sentTo, err := h.relationships.OutgoingRecipientIDs(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "outgoing recipient ids", err)
		return
	}

	out := make([]models.RecommendedUser, 0, len(users))
	for _, u := range users {
		_, sent := sentTo[u.ID]
		out = append(out, models.RecommendedUser{UserSummary: u.Summary(), RequestSent: sent})
	}
	writeSuccess(w, http.StatusOK, "", out)
}

func (h *RelationshipHandler) Friends(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	friends, err := h.relationships.GetMyFriends(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "my friends", err)
		return
	}
	out := make([]models.UserSummary, 0, len(friends))
	for _, f := range friends {
		out = append(out, f.Summary())
	}
	writeSuccess(w, http.StatusOK, "", out)
}

func (h *RelationshipHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	recipientID, ok := pathID(w, r, "user")
	if !ok {
		return
	}

	request, err := h.relationships.SendFriendRequest(r.Context(), user.ID, recipientID)
	if err != nil {
		writeServiceError(w, "send friend request", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Friend request sent", request)
}

func (h *RelationshipHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	requestID, ok := pathID(w, r, "request")
	if !ok {
		return
	}

	request, err := h.relationships.AcceptFriendRequest(r.Context(), requestID, user.ID)
	if err != nil {
		writeServiceError(w, "accept friend request", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Friend request accepted", request)
}

func (h *RelationshipHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	requestID, ok := pathID(w, r, "request")
	if !ok {
		return
	}

	request, err := h.relationships.DeclineFriendRequest(r.Context(), requestID, user.ID)
	if err != nil {
		writeServiceError(w, "decline friend request", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Friend request declined", request)
}

func (h *RelationshipHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	requestID, ok := pathID(w, r, "request")
	if !ok {
		return
	}

	request, err := h.relationships.CancelFriendRequest(r.Context(), requestID, user.ID)
	if err != nil {
		writeServiceError(w, "cancel friend request", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Friend request cancelled", request)
}

func (h *RelationshipHandler) FriendRequests(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	incoming, err := h.relationships.GetIncomingFriendRequests(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "incoming friend requests", err)
		return
	}
	accepted, err := h.relationships.GetAcceptedOutgoingRequests(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "accepted friend requests", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", FriendRequestsResponse{
		IncomingRequests: incoming,
		AcceptedRequests: accepted,
	})
}

func (h *RelationshipHandler) OutgoingRequests(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	outgoing, err := h.relationships.GetOutgoingFriendRequests(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, "outgoing friend requests", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", outgoing)
}
