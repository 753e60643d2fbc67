package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hrygo/skillgate/plugin/ai/agent"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the agent in the terminal",
		Long: `Send one message, or start an interactive session when no message is given.

Interactive commands:
  quit      exit
  reset     clear the conversation
  skills    list available skills
  route X   explain routing for query X
  stats     show turn statistics`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	storeInstance, a, err := openAgent(ctx, instanceProfile)
	if err != nil {
		return err
	}
	defer func() {
		if _, err := a.SaveSemanticCache(context.Background(), storeInstance); err != nil {
			slog.Warn("failed to save semantic cache", "error", err)
		}
		a.Close()
		storeInstance.Close()
	}()
	if _, err := a.LoadSemanticCache(ctx, storeInstance); err != nil {
		slog.Warn("failed to restore semantic cache", "error", err)
	}

	if len(args) == 1 {
		resp, err := a.Chat(ctx, "", args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Content)
		return nil
	}
	return newREPL(a, cmd.InOrStdin(), cmd.OutOrStdout()).run(ctx)
}

// repl is the interactive chat loop over one session.
type repl struct {
	agent     *agent.Agent
	in        *bufio.Scanner
	out       io.Writer
	sessionID string
}

func newREPL(a *agent.Agent, in io.Reader, out io.Writer) *repl {
	return &repl{agent: a, in: bufio.NewScanner(in), out: out}
}

func (r *repl) run(ctx context.Context) error {
	fmt.Fprintln(r.out, "skillgate chat. Commands: quit, reset, skills, route X, stats")
	for {
		fmt.Fprint(r.out, "\nYou: ")
		if !r.in.Scan() {
			fmt.Fprintln(r.out)
			return r.in.Err()
		}
		line := strings.TrimSpace(r.in.Text())
		if line == "" {
			continue
		}
		if r.handleCommand(line) {
			if strings.EqualFold(line, "quit") || strings.EqualFold(line, "exit") {
				return nil
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		r.chat(ctx, line)
	}
}

// handleCommand runs line when it is a REPL command and reports whether it
// was one.
func (r *repl) handleCommand(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case lower == "quit" || lower == "exit":
		fmt.Fprintln(r.out, "Goodbye!")
	case lower == "reset":
		if r.sessionID != "" {
			if err := r.agent.Reset(r.sessionID); err != nil {
				slog.Debug("reset without session", "error", err)
			}
			r.sessionID = ""
		}
		fmt.Fprintln(r.out, "Conversation reset.")
	case lower == "skills":
		fmt.Fprintln(r.out, "\nAvailable skills:")
		for _, s := range r.agent.ListSkills() {
			fmt.Fprintf(r.out, "  - %s: %s\n", s.Name, s.Description)
			fmt.Fprintf(r.out, "    Tools: %s\n", strings.Join(s.Tools, ", "))
		}
	case strings.HasPrefix(lower, "route "):
		fmt.Fprintf(r.out, "\n%s\n", r.agent.ExplainRouting(strings.TrimSpace(line[len("route "):])))
	case lower == "stats":
		st := r.agent.Stats()
		fmt.Fprintf(r.out, "turns=%d success=%.1f%% cache_hit=%.1f%% avg_rounds=%.2f budget_exhausted=%d\n",
			st.TotalTurns, st.SuccessRate, st.CacheHitRate, st.AverageRounds, st.BudgetExhausted)
	default:
		return false
	}
	return true
}

func (r *repl) chat(ctx context.Context, message string) {
	resp, err := r.agent.ChatWithCallback(ctx, r.sessionID, message, func(eventType string, data any) error {
		if eventType == agent.EventTypeToolUse {
			if ev, ok := data.(*agent.ToolUseEvent); ok {
				fmt.Fprintf(r.out, "  -> %s %s\n", ev.Name, ev.Arguments)
			}
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(r.out, "\nError: %s\n", agent.UserMessage(err))
		return
	}
	r.sessionID = resp.SessionID

	label := resp.Skill
	if resp.Cached() {
		label += ", " + string(resp.Cache) + " cache"
	}
	fmt.Fprintf(r.out, "\nAgent [%s]: %s\n", label, resp.Content)
}
