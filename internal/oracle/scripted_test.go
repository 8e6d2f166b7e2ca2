package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slant/internal/game"
	"slant/internal/network"
)

func scriptedView(posts []game.Post) ActorView {
	return ActorView{
		Username:         "User1",
		Group:            "Casual users",
		GroupDescription: "people posting about daily life",
		Rules:            network.Rules,
		Biography:        "a social network for everyday chatter",
		Round:            1,
		Posts:            posts,
		OtherUsers:       []string{"User2", "User3"},
	}
}

func TestScriptedIsAlignedAlwaysTrue(t *testing.T) {
	s := NewScripted(1)
	aligned, err := s.IsAligned(context.Background(), "anything at all", "any network")
	require.NoError(t, err)
	assert.True(t, aligned)
}

func TestScriptedDecideDeterministic(t *testing.T) {
	posts := []game.Post{
		{ID: 1, Username: "User2", Message: "first post", Round: 1},
		{ID: 2, Username: "User3", Message: "second post", Round: 1},
	}

	a := NewScripted(42)
	b := NewScripted(42)
	for i := 0; i < 20; i++ {
		actionA, err := a.Decide(context.Background(), scriptedView(posts))
		require.NoError(t, err)
		actionB, err := b.Decide(context.Background(), scriptedView(posts))
		require.NoError(t, err)
		assert.Equal(t, actionA, actionB)
	}
}

func TestScriptedDecideEmptyFeedAlwaysPosts(t *testing.T) {
	s := NewScripted(7)
	for i := 0; i < 10; i++ {
		action, err := s.Decide(context.Background(), scriptedView(nil))
		require.NoError(t, err)
		assert.Equal(t, game.ActionPost, action.Type)
		assert.NotEmpty(t, action.Message)
	}
}

func TestScriptedDecideEmitsValidActions(t *testing.T) {
	s := NewScripted(99)
	posts := []game.Post{
		{ID: 1, Username: "User2", Message: "hello", Round: 1},
	}
	for i := 0; i < 50; i++ {
		action, err := s.Decide(context.Background(), scriptedView(posts))
		require.NoError(t, err)
		switch action.Type {
		case game.ActionPost:
			assert.NotEmpty(t, action.Message)
		case game.ActionLike:
			assert.Equal(t, int64(1), action.PostID)
		case game.ActionReply:
			assert.Equal(t, int64(1), action.PostID)
			assert.Contains(t, action.Message, "@User2")
		default:
			t.Fatalf("unexpected action type %q", action.Type)
		}
	}
}

func TestScriptedDominantGroupKeywordVote(t *testing.T) {
	s := NewScripted(1)
	groups := map[string]string{
		"Casual users":         "daily life",
		"Conspiracy theorists": "hidden truths",
	}
	messages := []string{
		"another conspiracy unfolding",
		"the theorists were right again",
	}

	got, err := s.DominantGroup(context.Background(), messages, groups)
	require.NoError(t, err)
	assert.Equal(t, "Conspiracy theorists", got)
}

func TestScriptedDominantGroupFallbackIsConfigured(t *testing.T) {
	s := NewScripted(1)
	groups := map[string]string{
		"Casual users":         "daily life",
		"Conspiracy theorists": "hidden truths",
	}

	got, err := s.DominantGroup(context.Background(), []string{"nothing matches"}, groups)
	require.NoError(t, err)
	assert.Contains(t, groups, got)
}
