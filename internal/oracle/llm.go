package oracle

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	lru "github.com/hashicorp/golang-lru/v2"

	"slant/internal/config"
	"slant/internal/game"
)

const alignCacheSize = 1024

// LLM talks to an OpenAI-compatible chat-completions endpoint and implements
// all three oracles. Transient transport failures are retried with bounded
// exponential backoff; alignment verdicts are cached because the same
// message/description pair always deserves the same answer.
type LLM struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	log        *slog.Logger
	alignCache *lru.Cache[string, bool]
}

func NewLLM(cfg config.OracleConfig, logger *slog.Logger) (*LLM, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, bool](alignCacheSize)
	if err != nil {
		return nil, err
	}
	return &LLM{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		log:        logger,
		alignCache: cache,
	}, nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// IsAligned asks whether the post is plausible content for the described
// network. Malformed responses surface as errors; the gate's failure policy
// decides what that means.
func (l *LLM) IsAligned(ctx context.Context, message, description string) (bool, error) {
	key := cacheKey(message, description)
	if verdict, ok := l.alignCache.Get(key); ok {
		return verdict, nil
	}

	prompt := fmt.Sprintf(
		"You are given a brief description of a social network and a specific post. "+
			"Your task is to determine whether this post is likely to be found on that "+
			"network, taking into account the network's typical audience, content focus, "+
			"provided description, and the kinds of content commonly shared there. You should "+
			"also consider that generic or broadly acceptable content is usually permissible "+
			"on most platforms. Please be reasonably lenient in your assessment. "+
			"Return a single JSON object of the form "+
			`{"assessment": {"is_post_aligned": true/false, "reason": "..."}}`+
			" and nothing else.\n\nPost: %q\nDescription: %q",
		message, description,
	)

	var out struct {
		Assessment struct {
			Aligned bool   `json:"is_post_aligned"`
			Reason  string `json:"reason"`
		} `json:"assessment"`
	}
	if err := l.chatJSON(ctx, prompt, &out); err != nil {
		return false, err
	}
	l.alignCache.Add(key, out.Assessment.Aligned)
	return out.Assessment.Aligned, nil
}

// DominantGroup judges which configured group's tone dominates the round's
// posts.
func (l *LLM) DominantGroup(ctx context.Context, messages []string, groups map[string]string) (string, error) {
	prompt := fmt.Sprintf(
		"You are an expert in online community analysis and cultural trend recognition. "+
			"Analyze the following social media posts to assess the collective vibe or emotional "+
			"atmosphere they convey. Based on the overall tone, energy, and recurring themes, "+
			"determine which of the listed groups best embodies the current mood. The goal is not "+
			"to identify the most mentioned group, but to find the one whose identity, interests, "+
			"and communication style most closely reflect the prevailing sentiment in the posts. "+
			"Return a single JSON object of the form "+
			`{"assessment": {"dominant_group": "...", "tone_summary": "..."}}`+
			" where dominant_group is exactly one of the listed group names.\n\nPosts: %v\nGroups: %v",
		messages, groups,
	)

	var out struct {
		Assessment struct {
			DominantGroup string `json:"dominant_group"`
			ToneSummary   string `json:"tone_summary"`
		} `json:"assessment"`
	}
	if err := l.chatJSON(ctx, prompt, &out); err != nil {
		return "", err
	}
	if out.Assessment.DominantGroup == "" {
		return "", fmt.Errorf("dominance response named no group")
	}
	return out.Assessment.DominantGroup, nil
}

// Decide asks the model for the actor's next move.
func (l *LLM) Decide(ctx context.Context, view ActorView) (game.Action, error) {
	recent := make([]map[string]any, 0, len(view.Posts))
	for _, p := range view.Posts {
		recent = append(recent, map[string]any{
			"post_id":  p.ID,
			"username": p.Username,
			"message":  p.Message,
			"likes":    p.Likes,
		})
	}
	recentJSON, err := json.Marshal(recent)
	if err != nil {
		return game.Action{}, err
	}

	prompt := fmt.Sprintf(
		"You are a user of a social network in group %s, username: %q.\n\n"+
			"BACKGROUND:\n"+
			"- Share compelling, personal insights to gain influence.\n"+
			"- Use modern language, references to trends, and a casual style.\n"+
			"- Never mention your group or any outside context.\n"+
			"- Engage by liking, posting, or replying to maintain balance.\n\n"+
			"GROUP PERSPECTIVE:\n%s\n\n"+
			"RULES:\n%s\n\n"+
			"SOCIAL NETWORK BIOGRAPHY:\n%s\n\n"+
			"ACTIONS (pick exactly one): post a new text message, like an existing "+
			"post, or reply to an existing post.\n\n"+
			"TECHNICAL DETAILS:\n"+
			"- Output one JSON object of the form "+
			`{"action": {"action_type": "post"|"like"|"reply", "post_id": number or null, "message": string or null}}.`+"\n"+
			"- For a like, message must be null. Mention users with @username.\n"+
			"- Avoid any mention of AI or game context. Keep a human-like tone.\n\n"+
			"OTHER USERS: %v\nCURRENT ROUND: %d  YOUR SCORE: %d\nRECENT POSTS: %s\n\n"+
			"DECIDE YOUR NEXT MOVE.",
		view.Group, view.Username, view.GroupDescription, view.Rules,
		view.Biography, view.OtherUsers, view.Round, view.Score, recentJSON,
	)

	var out struct {
		Action game.Action `json:"action"`
	}
	if err := l.chatJSON(ctx, prompt, &out); err != nil {
		return game.Action{}, err
	}
	if out.Action.Type == "" {
		return game.Action{}, fmt.Errorf("decision response carried no action_type")
	}
	return out.Action, nil
}

// chatJSON sends one prompt and unmarshals the model's JSON reply into out.
func (l *LLM) chatJSON(ctx context.Context, prompt string, out any) error {
	body, err := json.Marshal(chatRequest{
		Model:          l.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		Temperature:    0.7,
		ResponseFormat: &chatFormat{Type: "json_object"},
	})
	if err != nil {
		return err
	}

	var content string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if l.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+l.apiKey)
		}
		resp, err := l.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("oracle request: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("oracle status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
		if resp.StatusCode >= 300 {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return backoff.Permanent(fmt.Errorf("oracle status %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
		}
		var decoded chatResponse
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return backoff.Permanent(fmt.Errorf("decode oracle response: %w", err))
		}
		if len(decoded.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("oracle returned no choices"))
		}
		content = decoded.Choices[0].Message.Content
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), out); err != nil {
		return fmt.Errorf("malformed oracle reply %q: %w", content, err)
	}
	return nil
}

// extractJSON trims chatter some models wrap around the JSON object.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return content
	}
	return content[start : end+1]
}

func cacheKey(message, description string) string {
	h := sha256.New()
	h.Write([]byte(message))
	h.Write([]byte{0})
	h.Write([]byte(description))
	return hex.EncodeToString(h.Sum(nil))
}
