package game

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// AddPostInput carries everything needed to append one post.
type AddPostInput struct {
	Message  string
	Username string
	Group    string
	Round    int
	Likes    []string
	ReplyTo  *int64
	Blocked  bool
}

// Store is the single source of truth for posts. Mutations are atomic with
// respect to concurrent callers: two AddPost calls never assign the same
// identifier and a LikePost racing an AddPost observes a consistent snapshot.
type Store interface {
	AddPost(ctx context.Context, in AddPostInput) (Post, error)
	LikePost(ctx context.Context, postID int64, username string) (bool, error)
	PostsByRound(ctx context.Context, round int) ([]Post, error)
	PostByID(ctx context.Context, postID int64) (Post, error)
}

// MemoryStore keeps the post collection in memory behind a single exclusive
// critical section per mutation, optionally snapshotting the whole ordered
// collection to a JSON file after every write.
type MemoryStore struct {
	mu    sync.RWMutex
	posts []Post
	path  string
	now   func() time.Time
}

// NewMemoryStore opens a store backed by the given snapshot path. An empty
// path keeps the collection purely in memory; an existing file is loaded so
// a run can resume its flat-file collection.
func NewMemoryStore(path string) (*MemoryStore, error) {
	s := &MemoryStore{path: path, now: time.Now}
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read posts file: %w", err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.posts); err != nil {
		return nil, fmt.Errorf("decode posts file: %w", err)
	}
	return s, nil
}

func (s *MemoryStore) AddPost(_ context.Context, in AddPostInput) (Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.ReplyTo != nil {
		if _, ok := s.find(*in.ReplyTo); !ok {
			return Post{}, fmt.Errorf("reply target %d: %w", *in.ReplyTo, ErrPostNotFound)
		}
	}

	message := in.Message
	if in.Blocked {
		message = RedactedMessage
	}
	likes := make([]string, 0, len(in.Likes))
	for _, u := range in.Likes {
		likes = appendUnique(likes, u)
	}

	var maxID int64
	for _, p := range s.posts {
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	post := Post{
		ID:        maxID + 1,
		Username:  in.Username,
		Group:     in.Group,
		Round:     in.Round,
		Message:   message,
		Likes:     likes,
		ReplyTo:   in.ReplyTo,
		Blocked:   in.Blocked,
		CreatedAt: s.now().UTC(),
	}
	s.posts = append(s.posts, post)
	if err := s.persist(); err != nil {
		s.posts = s.posts[:len(s.posts)-1]
		return Post{}, err
	}
	return clonePost(post), nil
}

func (s *MemoryStore) LikePost(_ context.Context, postID int64, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.find(postID)
	if !ok {
		return false, nil
	}
	if s.posts[idx].LikedBy(username) {
		return false, nil
	}
	s.posts[idx].Likes = append(s.posts[idx].Likes, username)
	if err := s.persist(); err != nil {
		s.posts[idx].Likes = s.posts[idx].Likes[:len(s.posts[idx].Likes)-1]
		return false, err
	}
	return true, nil
}

func (s *MemoryStore) PostsByRound(_ context.Context, round int) ([]Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Post, 0)
	for _, p := range s.posts {
		if p.Round == round {
			out = append(out, clonePost(p))
		}
	}
	return out, nil
}

func (s *MemoryStore) PostByID(_ context.Context, postID int64) (Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.find(postID)
	if !ok {
		return Post{}, fmt.Errorf("post %d: %w", postID, ErrPostNotFound)
	}
	return clonePost(s.posts[idx]), nil
}

// find must be called with the lock held.
func (s *MemoryStore) find(postID int64) (int, bool) {
	for i := range s.posts {
		if s.posts[i].ID == postID {
			return i, true
		}
	}
	return 0, false
}

// persist must be called with the write lock held, so the snapshot always
// matches the in-memory collection.
func (s *MemoryStore) persist() error {
	if s.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(s.posts, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write posts file: %w", err)
	}
	return nil
}

func clonePost(p Post) Post {
	out := p
	out.Likes = append([]string(nil), p.Likes...)
	if p.ReplyTo != nil {
		id := *p.ReplyTo
		out.ReplyTo = &id
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
