package game

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

const (
	// RedactedMessage replaces the text of any post that failed moderation.
	RedactedMessage = "This post has been removed."

	// FirstRound is the round number a fresh simulation starts at.
	FirstRound = 1
)

var (
	ErrUnknownUser   = errors.New("unknown user")
	ErrDuplicateUser = errors.New("username already taken")
	ErrUnknownGroup  = errors.New("group is not configured")
	ErrPostNotFound  = errors.New("post not found")
	ErrInvalidAction = errors.New("invalid action")
)

var (
	usernameRE = regexp.MustCompile(`^[a-zA-Z0-9_]{1,24}$`)
	mentionRE  = regexp.MustCompile(`@(\w+)`)
)

func ValidateUsername(username string) error {
	if !usernameRE.MatchString(strings.TrimSpace(username)) {
		return errors.New("username must be 1-24 word characters")
	}
	return nil
}

// Mentions returns every username token following an '@' in the message.
func Mentions(message string) []string {
	matches := mentionRE.FindAllStringSubmatch(message, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

// Post is one entry in the append-only post collection. Identifiers are
// unique and strictly increasing for the lifetime of the store. After
// creation only the likes set changes, and it only grows.
type Post struct {
	ID        int64     `json:"post_id"`
	Username  string    `json:"username"`
	Group     string    `json:"poster_group"`
	Round     int       `json:"round"`
	Message   string    `json:"message"`
	Likes     []string  `json:"likes"`
	ReplyTo   *int64    `json:"reply_to,omitempty"`
	Blocked   bool      `json:"blocked"`
	CreatedAt time.Time `json:"created_at"`
}

// LikedBy reports whether username is already in the likes set.
func (p Post) LikedBy(username string) bool {
	for _, u := range p.Likes {
		if u == username {
			return true
		}
	}
	return false
}

// Player is a roster entry. Username and group never change once registered.
type Player struct {
	Username string `json:"username"`
	Group    string `json:"group"`
}

type ActionType string

const (
	ActionPost  ActionType = "post"
	ActionLike  ActionType = "like"
	ActionReply ActionType = "reply"
)

// Action is the closed tagged union an actor submits each turn. PostID is
// loosely typed on purpose: decision oracles emit it as a JSON number, a
// string, or null, and the router decides whether it resolves to a post.
type Action struct {
	Type    ActionType `json:"action_type"`
	PostID  any        `json:"post_id"`
	Message string     `json:"message"`
}
