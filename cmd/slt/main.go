package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	cl "slant/internal/cli"
	"slant/internal/config"
	"slant/internal/game"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "slt",
		Short:        "Slant CLI game client",
		SilenceUsage: true,
	}

	root.AddCommand(
		newJoinCmd(&apiBase),
		newPostCmd(&apiBase),
		newReplyCmd(&apiBase),
		newLikeCmd(&apiBase),
		newFeedCmd(&apiBase),
		newScoresCmd(&apiBase),
		newPlayersCmd(&apiBase),
		newStateCmd(&apiBase),
		newAdvanceCmd(&apiBase),
		newProfileCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiBase *string) *cl.Client {
	return cl.NewClient(strings.TrimRight(strings.TrimSpace(*apiBase), "/"))
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}

func newJoinCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "join",
		Short: "Register a player and save the local profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := promptUsername("Username")
			if err != nil {
				return err
			}
			group, err := promptOptional("Group (blank for least represented)")
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.Join(ctx, username, group)
			if err != nil {
				return err
			}
			assigned, _ := out["group"].(string)
			if assigned == "" {
				assigned = group
			}
			if err := cl.SaveProfile(cl.Profile{Username: username, Group: assigned}); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Joined as %s (%s). Profile saved.", username, assigned))
			return nil
		},
	}
}

func newPostCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "post [message]",
		Short: "Publish a post as the profile user",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			var message string
			if len(args) == 1 {
				message = strings.TrimSpace(args[0])
			}
			if message == "" {
				message, err = promptRequired("Message")
				if err != nil {
					return err
				}
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.SubmitPost(ctx, profile.Username, message, nil)
			if err != nil {
				return err
			}
			renderOutcome(out)
			return nil
		},
	}
}

func newReplyCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reply <post-id> [message]",
		Short: "Reply to an existing post",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			postID, err := parsePostIDArg(args[0])
			if err != nil {
				return err
			}
			var message string
			if len(args) == 2 {
				message = strings.TrimSpace(args[1])
			}
			if message == "" {
				message, err = promptRequired("Message")
				if err != nil {
					return err
				}
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.SubmitPost(ctx, profile.Username, message, &postID)
			if err != nil {
				return err
			}
			renderOutcome(out)
			return nil
		},
	}
}

func newLikeCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "like <post-id>",
		Short: "Like a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			postID, err := parsePostIDArg(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			if _, err := client.LikePost(ctx, postID, profile.Username); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Liked post %d.", postID))
			return nil
		},
	}
}

func newFeedCmd(apiBase *string) *cobra.Command {
	var round int
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show the feed for a round (default: current)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.Feed(ctx, round)
			if err != nil {
				return err
			}
			return renderFeed(out)
		},
	}
	cmd.Flags().IntVar(&round, "round", 0, "round to show")
	return cmd
}

func newScoresCmd(apiBase *string) *cobra.Command {
	var round int
	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Show scores, cumulative or for one round",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			if round > 0 {
				out, err := client.RoundScores(ctx, round)
				if err != nil {
					return err
				}
				return renderRoundScores(out)
			}
			out, err := client.AllScores(ctx)
			if err != nil {
				return err
			}
			return renderTotals(out)
		},
	}
	cmd.Flags().IntVar(&round, "round", 0, "show a single round instead of totals")
	return cmd
}

func newPlayersCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "List registered players",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.Players(ctx)
			if err != nil {
				return err
			}
			return renderPlayers(out)
		},
	}
}

func newStateCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the current round and group setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.State(ctx)
			if err != nil {
				return err
			}
			return renderState(out)
		},
	}
}

func newAdvanceCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "Close the current round and award bonuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()
			client := newClient(apiBase)
			out, err := client.AdvanceRound(ctx)
			if err != nil {
				return err
			}
			return renderAdvance(out)
		},
	}
}

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the saved local profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := cl.LoadProfile()
			if err != nil {
				return err
			}
			printInfo(fmt.Sprintf("Username: %s", profile.Username))
			printInfo(fmt.Sprintf("Group:    %s", profile.Group))
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the saved local profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearProfile(); err != nil {
				return err
			}
			printSuccess("Profile cleared.")
			return nil
		},
	})
	return cmd
}

func parsePostIDArg(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid post id %q", raw)
	}
	return id, nil
}

func promptUsername(label string) (string, error) {
	for {
		username, err := promptRequired(label)
		if err != nil {
			return "", err
		}
		if err := game.ValidateUsername(username); err != nil {
			printWarn(err.Error())
			continue
		}
		return username, nil
	}
}
