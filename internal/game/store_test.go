package game

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAssignsSequentialIDs(t *testing.T) {
	store, err := NewMemoryStore("")
	require.NoError(t, err)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		post, err := store.AddPost(ctx, AddPostInput{
			Message:  fmt.Sprintf("post %d", i),
			Username: "alice",
			Group:    "Casual users",
			Round:    1,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(i), post.ID)
	}
}

func TestMemoryStoreConcurrentAddPostGaplessIDs(t *testing.T) {
	store, err := NewMemoryStore("")
	require.NoError(t, err)
	ctx := context.Background()

	const writers = 32
	ids := make(chan int64, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			post, err := store.AddPost(ctx, AddPostInput{
				Message:  fmt.Sprintf("post %d", i),
				Username: fmt.Sprintf("User%d", i),
				Group:    "Casual users",
				Round:    1,
			})
			assert.NoError(t, err)
			ids <- post.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	got := make([]int64, 0, writers)
	for id := range ids {
		got = append(got, id)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i := 0; i < writers; i++ {
		require.Equal(t, int64(i+1), got[i], "ids must be unique and gapless")
	}
}

func TestMemoryStoreRedactsBlockedPosts(t *testing.T) {
	store, err := NewMemoryStore("")
	require.NoError(t, err)

	post, err := store.AddPost(context.Background(), AddPostInput{
		Message:  "the original text",
		Username: "alice",
		Group:    "Casual users",
		Round:    1,
		Blocked:  true,
	})
	require.NoError(t, err)
	assert.True(t, post.Blocked)
	assert.Equal(t, RedactedMessage, post.Message)
}

func TestMemoryStoreRejectsDanglingReply(t *testing.T) {
	store, err := NewMemoryStore("")
	require.NoError(t, err)

	missing := int64(42)
	_, err = store.AddPost(context.Background(), AddPostInput{
		Message:  "to nobody",
		Username: "alice",
		Group:    "Casual users",
		Round:    1,
		ReplyTo:  &missing,
	})
	require.ErrorIs(t, err, ErrPostNotFound)
}

func TestMemoryStoreLikeIsIdempotent(t *testing.T) {
	store, err := NewMemoryStore("")
	require.NoError(t, err)
	ctx := context.Background()

	post, err := store.AddPost(ctx, AddPostInput{
		Message:  "like me",
		Username: "alice",
		Group:    "Casual users",
		Round:    1,
	})
	require.NoError(t, err)

	added, err := store.LikePost(ctx, post.ID, "bob")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.LikePost(ctx, post.ID, "bob")
	require.NoError(t, err)
	assert.False(t, added)

	got, err := store.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got.Likes)
}

func TestMemoryStoreLikeMissingPost(t *testing.T) {
	store, err := NewMemoryStore("")
	require.NoError(t, err)

	added, err := store.LikePost(context.Background(), 99, "bob")
	require.NoError(t, err)
	assert.False(t, added)
}

func TestMemoryStorePostsByRound(t *testing.T) {
	store, err := NewMemoryStore("")
	require.NoError(t, err)
	ctx := context.Background()

	for round := 1; round <= 2; round++ {
		for i := 0; i < 2; i++ {
			_, err := store.AddPost(ctx, AddPostInput{
				Message:  "hello",
				Username: "alice",
				Group:    "Casual users",
				Round:    round,
			})
			require.NoError(t, err)
		}
	}

	posts, err := store.PostsByRound(ctx, 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Less(t, posts[0].ID, posts[1].ID)

	empty, err := store.PostsByRound(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStoreSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	ctx := context.Background()

	store, err := NewMemoryStore(path)
	require.NoError(t, err)
	post, err := store.AddPost(ctx, AddPostInput{
		Message:  "durable",
		Username: "alice",
		Group:    "Casual users",
		Round:    1,
	})
	require.NoError(t, err)
	_, err = store.LikePost(ctx, post.ID, "bob")
	require.NoError(t, err)

	reopened, err := NewMemoryStore(path)
	require.NoError(t, err)
	got, err := reopened.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "durable", got.Message)
	assert.Equal(t, []string{"bob"}, got.Likes)

	next, err := reopened.AddPost(ctx, AddPostInput{
		Message:  "after resume",
		Username: "bob",
		Group:    "Casual users",
		Round:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, post.ID+1, next.ID)
}

func TestMemoryStoreSnapshotFailureRollsBack(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	ctx := context.Background()

	store, err := NewMemoryStore(filepath.Join(dir, "posts.json"))
	require.NoError(t, err)
	post, err := store.AddPost(ctx, AddPostInput{
		Message:  "kept",
		Username: "alice",
		Group:    "Casual users",
		Round:    1,
	})
	require.NoError(t, err)

	// Removing the snapshot directory makes the next write fail.
	require.NoError(t, os.RemoveAll(dir))

	_, err = store.AddPost(ctx, AddPostInput{
		Message:  "lost",
		Username: "bob",
		Group:    "Casual users",
		Round:    1,
	})
	require.Error(t, err)
	posts, err := store.PostsByRound(ctx, 1)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	added, err := store.LikePost(ctx, post.ID, "bob")
	require.Error(t, err)
	assert.False(t, added)

	require.NoError(t, os.MkdirAll(dir, 0o700))
	added, err = store.LikePost(ctx, post.ID, "bob")
	require.NoError(t, err)
	assert.True(t, added, "failed like must not stick")

	next, err := store.AddPost(ctx, AddPostInput{
		Message:  "second",
		Username: "bob",
		Group:    "Casual users",
		Round:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, post.ID+1, next.ID, "failed append must not consume an id")
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store, err := NewMemoryStore("")
	require.NoError(t, err)
	ctx := context.Background()

	post, err := store.AddPost(ctx, AddPostInput{
		Message:  "immutable",
		Username: "alice",
		Group:    "Casual users",
		Round:    1,
	})
	require.NoError(t, err)

	post.Likes = append(post.Likes, "mallory")
	got, err := store.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Likes)
}
