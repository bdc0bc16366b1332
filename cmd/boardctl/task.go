package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fastygo/taskboard/api/transport"
	"github.com/fastygo/taskboard/domain"
)

func taskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage cards",
	}
	cmd.AddCommand(taskAddCmd(a))
	return cmd
}

func taskAddCmd(a *app) *cobra.Command {
	var req transport.TaskRequest
	var assignees []string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a card in the to-do column",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Title = strings.Join(args, " ")
			if len(assignees) > 0 {
				var view transport.BoardView
				if err := a.client.call(http.MethodGet, "/api/v1/board", true, nil, &view); err != nil {
					return err
				}
				req.AssigneeIDs = resolveUsers(view.Directory, assignees)
			}
			var task domain.Task
			if err := a.client.call(http.MethodPost, "/api/v1/board/tasks", true, req, &task); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s: %s\n", task.ID, task.Title)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&req.Description, "description", "d", "", "card description")
	flags.StringVar(&req.DueDate, "due", "", "due date (YYYY-MM-DD)")
	flags.StringVar(&req.Priority, "priority", "", "low, medium or high")
	flags.StringSliceVarP(&assignees, "assignee", "a", nil, "assignee ids or names")
	return cmd
}
