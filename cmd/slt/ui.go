package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"slant/internal/game"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type feedPayload struct {
	Round int         `json:"round"`
	Posts []game.Post `json:"posts"`
}

type playersPayload struct {
	Players []game.Player `json:"players"`
}

type statePayload struct {
	CurrentRound int               `json:"current_round"`
	Players      []game.Player     `json:"players"`
	Groups       map[string]string `json:"groups"`
	Scores       map[string]int    `json:"scores"`
}

type roundScoresPayload struct {
	Round  int            `json:"round"`
	Scores map[string]int `json:"scores"`
}

type allScoresPayload struct {
	Scores map[string]map[int]int `json:"scores"`
	Totals map[string]int         `json:"totals"`
}

type advancePayload struct {
	FinishedRound int            `json:"finished_round"`
	CurrentRound  int            `json:"current_round"`
	DominantGroup string         `json:"dominant_group"`
	Scores        map[string]int `json:"scores"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func renderOutcome(raw map[string]any) {
	outcome, _ := raw["outcome"].(string)
	if outcome == "blocked" {
		danger.Println("Post blocked by moderation.")
		return
	}
	printSuccess("Post published.")
}

func renderFeed(raw map[string]any) error {
	payload, err := decodeInto[feedPayload](raw)
	if err != nil {
		return err
	}

	accent.Printf("\n== FEED (Round %d) ==\n", payload.Round)
	if len(payload.Posts) == 0 {
		printInfo("No posts yet.")
		return nil
	}
	for _, p := range payload.Posts {
		header := fmt.Sprintf("#%d %s", p.ID, p.Username)
		if p.ReplyTo != nil {
			header += fmt.Sprintf(" -> #%d", *p.ReplyTo)
		}
		if p.Blocked {
			danger.Println(header + " [blocked]")
		} else {
			accent.Println(header)
		}
		fmt.Printf("   %s\n", p.Message)
		fmt.Printf("   likes: %d\n", len(p.Likes))
	}
	return nil
}

func renderPlayers(raw map[string]any) error {
	payload, err := decodeInto[playersPayload](raw)
	if err != nil {
		return err
	}

	accent.Println("\n== PLAYERS ==")
	if len(payload.Players) == 0 {
		printInfo("No players registered.")
		return nil
	}
	fmt.Printf("%-24s %s\n", "USERNAME", "GROUP")
	for _, p := range payload.Players {
		fmt.Printf("%-24s %s\n", p.Username, p.Group)
	}
	return nil
}

func renderState(raw map[string]any) error {
	payload, err := decodeInto[statePayload](raw)
	if err != nil {
		return err
	}

	accent.Printf("\n== STATE (Round %d) ==\n", payload.CurrentRound)
	fmt.Printf("Players: %d\n", len(payload.Players))
	fmt.Println()
	accent.Println("Groups")
	for _, name := range sortedKeys(payload.Groups) {
		fmt.Printf("  %s\n", name)
	}
	fmt.Println()
	accent.Println("Round scores")
	renderScoreTable(payload.Scores)
	return nil
}

func renderRoundScores(raw map[string]any) error {
	payload, err := decodeInto[roundScoresPayload](raw)
	if err != nil {
		return err
	}

	accent.Printf("\n== SCORES (Round %d) ==\n", payload.Round)
	renderScoreTable(payload.Scores)
	return nil
}

func renderTotals(raw map[string]any) error {
	payload, err := decodeInto[allScoresPayload](raw)
	if err != nil {
		return err
	}

	accent.Println("\n== TOTALS ==")
	renderScoreTable(payload.Totals)
	return nil
}

func renderAdvance(raw map[string]any) error {
	payload, err := decodeInto[advancePayload](raw)
	if err != nil {
		return err
	}

	accent.Printf("\n== ROUND %d CLOSED ==\n", payload.FinishedRound)
	if payload.DominantGroup != "" {
		fmt.Printf("Dominant group: %s\n", payload.DominantGroup)
	} else {
		printWarn("No dominant group recognized this round.")
	}
	fmt.Printf("Current round:  %d\n", payload.CurrentRound)
	fmt.Println()
	accent.Println("Round scores")
	renderScoreTable(payload.Scores)
	return nil
}

func renderScoreTable(scores map[string]int) {
	if len(scores) == 0 {
		printInfo("No scores recorded.")
		return
	}
	type row struct {
		username string
		score    int
	}
	rows := make([]row, 0, len(scores))
	for username, score := range scores {
		rows = append(rows, row{username, score})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		return rows[i].username < rows[j].username
	})
	fmt.Printf("%-24s %s\n", "USERNAME", "SCORE")
	for _, r := range rows {
		fmt.Printf("%-24s %d\n", r.username, r.score)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
