package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/HammerMeetNail/lingopair/internal/models"
)

var ErrChatNotConfigured = errors.New("chat provider is not configured")

// ChatTokenIssuer mints a token the chat provider's client SDK accepts.
type ChatTokenIssuer interface {
	IssueToken(userID uuid.UUID) (string, error)
}

// StreamTokenIssuer signs Stream-compatible user tokens: HS256 with the API
// secret and a user_id claim.
type StreamTokenIssuer struct {
	apiKey string
	secret []byte
	now    func() time.Time
}

func NewStreamTokenIssuer(apiKey, secret string) *StreamTokenIssuer {
	return &StreamTokenIssuer{apiKey: apiKey, secret: []byte(secret), now: time.Now}
}

func (i *StreamTokenIssuer) APIKey() string {
	return i.apiKey
}

func (i *StreamTokenIssuer) IssueToken(userID uuid.UUID) (string, error) {
	if len(i.secret) == 0 {
		return "", ErrChatNotConfigured
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"iat":     i.now().Unix(),
	})
	return token.SignedString(i.secret)
}

// ChatPeers is the slice of the relationship manager the chat gate needs.
type ChatPeers interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

type ChatServiceInterface interface {
	Token(ctx context.Context, userID uuid.UUID) (string, error)
	ChannelFor(ctx context.Context, userID, peerID uuid.UUID) (string, error)
}

// ChatService decides who may chat with whom. Messaging itself is the
// provider's job.
type ChatService struct {
	tokens  ChatTokenIssuer
	friends ChatPeers
}

func NewChatService(tokens ChatTokenIssuer, friends ChatPeers) *ChatService {
	return &ChatService{tokens: tokens, friends: friends}
}

func (s *ChatService) Token(ctx context.Context, userID uuid.UUID) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	token, err := s.tokens.IssueToken(userID)
	if err != nil {
		return "", unavailable("issue chat token", err)
	}
	return token, nil
}

func (s *ChatService) ChannelFor(ctx context.Context, userID, peerID uuid.UUID) (string, error) {
	if userID == peerID {
		return "", ErrCannotChatSelf
	}
	peer, err := s.friends.GetProfile(ctx, peerID)
	if err != nil {
		return "", err
	}
	if !peer.HasFriend(userID) {
		return "", ErrNotFriends
	}
	return ChannelID(userID, peerID), nil
}

// ChannelID is the same for both members of a pair. The raw ids are encoded
// rather than joined as text to stay inside the provider's 64 character limit.
func ChannelID(a, b uuid.UUID) string {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	raw := make([]byte, 0, 32)
	raw = append(raw, a[:]...)
	raw = append(raw, b[:]...)
	return base64.RawURLEncoding.EncodeToString(raw)
}
