package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func post(id int64, username, message string, replyTo *int64) Post {
	return Post{ID: id, Username: username, Message: message, ReplyTo: replyTo, Round: 1}
}

func ref(id int64) *int64 { return &id }

func TestCentralityEmptyAndSingle(t *testing.T) {
	assert.Empty(t, Centrality(nil))

	got := Centrality([]Post{post(1, "alice", "just me", nil)})
	assert.Equal(t, map[string]float64{"alice": 0}, got)
}

func TestCentralityRepliesAndMentions(t *testing.T) {
	posts := []Post{
		post(1, "alice", "hello world", nil),
		post(2, "bob", "replying to alice", ref(1)),
		post(3, "carol", "shoutout to @alice", nil),
	}
	got := Centrality(posts)

	// alice has two inbound edges, bob and carol one outbound each; n=3.
	assert.InDelta(t, 1.0, got["alice"], 1e-9)
	assert.InDelta(t, 0.5, got["bob"], 1e-9)
	assert.InDelta(t, 0.5, got["carol"], 1e-9)
}

func TestCentralityMentionOnlyNodeRanks(t *testing.T) {
	posts := []Post{
		post(1, "alice", "have you met @zed", nil),
	}
	got := Centrality(posts)
	assert.Contains(t, got, "zed")
	assert.InDelta(t, 1.0, got["zed"], 1e-9)
	assert.InDelta(t, 1.0, got["alice"], 1e-9)
}

func TestCentralityDuplicateInteractionsCollapse(t *testing.T) {
	posts := []Post{
		post(1, "alice", "@bob @bob @bob", nil),
		post(2, "alice", "again @bob", nil),
	}
	got := Centrality(posts)
	assert.InDelta(t, 1.0, got["alice"], 1e-9)
	assert.InDelta(t, 1.0, got["bob"], 1e-9)
}

func TestCentralityIgnoresReplyOutsideInput(t *testing.T) {
	posts := []Post{
		post(5, "alice", "reply to an older round", ref(1)),
	}
	got := Centrality(posts)
	assert.Equal(t, map[string]float64{"alice": 0}, got)
}

func TestCentralityDeterministic(t *testing.T) {
	posts := []Post{
		post(1, "alice", "hi @bob", nil),
		post(2, "bob", "back at you", ref(1)),
		post(3, "carol", "hmm", nil),
	}
	first := Centrality(posts)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Centrality(posts))
	}
}
