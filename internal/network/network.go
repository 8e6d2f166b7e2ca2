package network

import (
	"encoding/json"
	"fmt"
	"os"
)

// Network describes the simulated platform: a biography the alignment
// oracle judges posts against, and the configured groups players belong to.
type Network struct {
	Biography string            `json:"biography"`
	Groups    map[string]string `json:"groups"`
}

// Rules is the ruleset handed to actor policies so they know how points are
// earned.
const Rules = `ONLINE INFLUENCE: Social Media Megagame
Players work to spread their group's ideology and influence a social network.
Each player secretly belongs to a group and aims to share engaging content
that aligns with their group's values.

Gameplay:
- Players take up to 3 actions per round: post, like, or reply.
- Points are earned through likes, replies, and interacting with group
  members. Misaligned posts lose points.
- Each round, the group with the most influence on the network gains bonus
  points.
- The player with the highest score in the most dominant group wins.

Scoring:
- +1 point for each like or reply to your posts.
- +1 point for liking posts by group members.
- +3 points if your group dominates the round.
- -1 point for misaligned posts.

The game lasts for a set number of rounds, with scores and influence
assessed after each one.`

// Default returns the stock Social Network Z setup.
func Default() Network {
	groups := map[string]string{
		"Casual users":         "Regular social media users sharing daily content, messaging, posts and general and generic information.",
		"Far-right extremists": "Users with extreme political views.",
		"Conspiracy theorists": "Users who believe in conspiracy theories.",
		"Political activists":  "Users who are politically active.",
	}
	return Network{
		Biography: fmt.Sprintf("Social Network Z, a Twitter clone that hosts a large proportion of casual members "+
			"as well as a smaller proportion of far-right extremists. The network started as a catch-all "+
			"'Town Square', but after cuts were made to its moderation staff, it has become a haven for "+
			"excessive amounts of extreme content masquerading as members' demonstration of their right to "+
			"free speech. There are several groups of legitimate users of this network that each post a "+
			"broad range of content. These user groups include: %v.", groups),
		Groups: groups,
	}
}

// Load reads a network description from a JSON file; an empty path falls
// back to the default setup.
func Load(path string) (Network, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Network{}, fmt.Errorf("read network file: %w", err)
	}
	var n Network
	if err := json.Unmarshal(raw, &n); err != nil {
		return Network{}, fmt.Errorf("decode network file: %w", err)
	}
	if len(n.Groups) == 0 {
		return Network{}, fmt.Errorf("network file %s configures no groups", path)
	}
	if n.Biography == "" {
		n.Biography = Default().Biography
	}
	return n, nil
}
