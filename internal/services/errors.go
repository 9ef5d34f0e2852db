package services

import (
	"errors"
	"fmt"
)

// Error categories. Every specific error below wraps exactly one of these so
// callers can switch on the category with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrForbidden        = errors.New("forbidden")
	ErrAlreadyFriends   = errors.New("already friends with this user")
	ErrDuplicateRequest = errors.New("a friend request already exists between these users")
	ErrUnavailable      = errors.New("service temporarily unavailable")
)

var (
	ErrUserNotFound          = fmt.Errorf("user %w", ErrNotFound)
	ErrFriendRequestNotFound = fmt.Errorf("friend request %w", ErrNotFound)
	ErrCannotFriendSelf      = fmt.Errorf("%w: cannot send a friend request to yourself", ErrInvalidOperation)
	ErrCannotChatSelf        = fmt.Errorf("%w: cannot open a chat with yourself", ErrInvalidOperation)
	ErrRequestNotPending     = fmt.Errorf("%w: friend request is no longer pending", ErrInvalidOperation)
	ErrNotRecipient          = fmt.Errorf("%w: only the recipient can respond to this friend request", ErrForbidden)
	ErrNotSender             = fmt.Errorf("%w: only the sender can cancel this friend request", ErrForbidden)
	ErrNotFriends            = fmt.Errorf("%w: you can only chat with friends", ErrForbidden)
)

func isDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidOperation) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrAlreadyFriends) ||
		errors.Is(err, ErrDuplicateRequest) ||
		errors.Is(err, ErrUnavailable)
}

// unavailable passes domain errors through and tags everything else as a
// collaborator failure.
func unavailable(op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
