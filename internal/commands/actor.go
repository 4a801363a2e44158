package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// maxAgentNameLength bounds the agent identity recorded as a commit author
// or memory-hook source, so a malformed --agent value can't blow up
// downstream storage.
const maxAgentNameLength = 128

// resolveAgentName resolves the agent used for commit authorship and
// pub/sub event attribution. Precedence:
// 1) per-command flag (e.g. --agent on a subcommand)
// 2) global flag --agent
// 3) legacy global flag --actor (deprecated)
// 4) env var THYMOS_AGENT
func resolveAgentName(cmd *cobra.Command, perCmdFlag string) string {
	raw := ""
	if perCmdFlag != "" {
		if v, err := cmd.Flags().GetString(perCmdFlag); err == nil && v != "" {
			raw = v
		}
	}
	if raw == "" {
		if v, err := cmd.Flags().GetString("agent"); err == nil && v != "" {
			raw = v
		}
	}
	if raw == "" {
		if v, err := cmd.Flags().GetString("actor"); err == nil && v != "" {
			raw = v
		}
	}
	if raw == "" {
		raw = os.Getenv("THYMOS_AGENT")
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

// requireAgentName resolves the agent name or errors if it is unset or too
// long.
func requireAgentName(cmd *cobra.Command, perCmdFlag string) (string, error) {
	agent := resolveAgentName(cmd, perCmdFlag)
	if agent == "" {
		return "", errors.New("agent is required (set --agent or THYMOS_AGENT)")
	}
	if len(agent) > maxAgentNameLength {
		return "", fmt.Errorf("agent name exceeds maximum length (%d chars)", maxAgentNameLength)
	}
	return agent, nil
}
