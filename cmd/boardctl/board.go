package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
	boardUC "github.com/fastygo/taskboard/usecase/board"
)

func boardCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Inspect and rearrange the board",
	}
	cmd.AddCommand(boardShowCmd(a))
	cmd.AddCommand(boardMoveCmd(a))
	return cmd
}

func boardShowCmd(a *app) *cobra.Command {
	var assignees []string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print every column with its cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/board"
			if len(assignees) > 0 {
				var full transport.BoardView
				if err := a.client.call(http.MethodGet, path, true, nil, &full); err != nil {
					return err
				}
				ids := resolveUsers(full.Directory, assignees)
				path += "?assignees=" + url.QueryEscape(strings.Join(ids, ","))
			}
			var view transport.BoardView
			if err := a.client.call(http.MethodGet, path, true, nil, &view); err != nil {
				return err
			}
			printBoard(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&assignees, "assignee", "a", nil, "only show cards assigned to these users (id or name)")
	return cmd
}

func boardMoveCmd(a *app) *cobra.Command {
	var (
		index     int
		reviewer  string
		blockedBy string
	)
	cmd := &cobra.Command{
		Use:   "move <taskId> <column>",
		Short: "Move a card to a column",
		Long: `Move a card to another column or position.

Moving into review needs --reviewer and moving into blocked needs
--blocked-by; the move is cancelled when the flag is missing.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]
			target, ok := domain.ParseColumn(args[1])
			if !ok {
				return fmt.Errorf("unknown column %q", args[1])
			}

			var details transport.TaskDetailsResponse
			if err := a.client.call(http.MethodGet, "/api/v1/board/tasks/"+url.PathEscape(taskID), true, nil, &details); err != nil {
				return err
			}

			var drag transport.DragResponse
			if err := a.client.call(http.MethodPost, "/api/v1/board/drag", true, transport.DragRequest{
				Column: string(details.Column),
				TaskID: taskID,
			}, &drag); err != nil {
				return err
			}

			drop := transport.DropRequest{Payload: drag.Payload, Column: string(target)}
			if cmd.Flags().Changed("index") {
				drop.Index = &index
			}
			var dropped transport.DropResponse
			if err := a.client.call(http.MethodPost, "/api/v1/board/drop", true, drop, &dropped); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch dropped.Outcome {
			case boardUC.OutcomeReviewRequested:
				return a.confirm(out, "review", reviewer, "--reviewer", func() ([]option, error) {
					var entries []domain.DirectoryEntry
					err := a.client.call(http.MethodGet, "/api/v1/board/review/candidates", true, nil, &entries)
					opts := make([]option, 0, len(entries))
					for _, e := range entries {
						opts = append(opts, option{ID: e.ID, Name: e.Name})
					}
					return opts, err
				})
			case boardUC.OutcomeBlockRequested:
				return a.confirm(out, "blocked", blockedBy, "--blocked-by", func() ([]option, error) {
					var entries []boardUC.BlockerOption
					err := a.client.call(http.MethodGet, "/api/v1/board/blocked/candidates", true, nil, &entries)
					opts := make([]option, 0, len(entries))
					for _, e := range entries {
						opts = append(opts, option{ID: e.ID, Name: e.Title})
					}
					return opts, err
				})
			case boardUC.OutcomeIgnored:
				return fmt.Errorf("move of %s was ignored", taskID)
			default:
				fmt.Fprintf(out, "%s: %s -> %s (%s)\n", taskID, details.Column, target, dropped.Outcome)
				return nil
			}
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "position in the target column (default: end)")
	cmd.Flags().StringVar(&reviewer, "reviewer", "", "reviewer id or name when moving into review")
	cmd.Flags().StringVar(&blockedBy, "blocked-by", "", "blocking task id or title when moving into blocked")
	return cmd
}

type option struct {
	ID   string
	Name string
}

// confirm closes an open review or blocked workflow, cancelling it when choice is empty or unknown.
func (a *app) confirm(out io.Writer, workflow, choice, flag string, candidates func() ([]option, error)) error {
	base := "/api/v1/board/" + workflow
	cancel := func(reason error) error {
		if err := a.client.call(http.MethodPost, base+"/cancel", true, nil, nil); err != nil {
			return err
		}
		return reason
	}

	if strings.TrimSpace(choice) == "" {
		return cancel(fmt.Errorf("moving into %s needs %s; move cancelled", workflow, flag))
	}
	opts, err := candidates()
	if err != nil {
		return cancel(err)
	}
	id := ""
	for _, o := range opts {
		if o.ID == choice || strings.EqualFold(o.Name, choice) {
			id = o.ID
			break
		}
	}
	if id == "" {
		names := make([]string, 0, len(opts))
		for _, o := range opts {
			names = append(names, fmt.Sprintf("%s (%s)", o.Name, o.ID))
		}
		return cancel(fmt.Errorf("%q is not a valid choice; candidates: %s", choice, strings.Join(names, ", ")))
	}

	var resp transport.WorkflowResponse
	if err := a.client.call(http.MethodPost, base+"/confirm", true, transport.SelectRequest{ID: id}, &resp); err != nil {
		return err
	}
	if !resp.Applied {
		return cancel(fmt.Errorf("%s was not confirmed", workflow))
	}
	fmt.Fprintf(out, "moved to %s\n", workflow)
	return nil
}

// resolveUsers maps names to ids using the directory; unknown values pass through as ids.
func resolveUsers(directory []domain.DirectoryEntry, values []string) []string {
	ids := make([]string, 0, len(values))
	for _, v := range values {
		id := v
		for _, entry := range directory {
			if strings.EqualFold(entry.Name, v) {
				id = entry.ID
				break
			}
		}
		ids = append(ids, id)
	}
	return ids
}

func printBoard(out io.Writer, view transport.BoardView) {
	for _, col := range view.Columns {
		fmt.Fprintf(out, "== %s (%d)\n", col.Label, len(col.Cards))
		for _, card := range col.Cards {
			line := fmt.Sprintf("  [%s] %s", card.Task.ID, card.Task.Title)
			if len(card.Initials) > 0 {
				line += " (" + strings.Join(card.Initials, ",") + ")"
			}
			if card.Task.ReviewerName != "" {
				line += " reviewer: " + card.Task.ReviewerName
			}
			if card.Task.BlockedByTaskTitle != "" {
				line += " blocked by: " + card.Task.BlockedByTaskTitle
			}
			if card.CanApprove {
				line += " *awaiting your approval*"
			}
			fmt.Fprintln(out, line)
		}
	}
}
