package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/testscriptgen/internal/api"
	"github.com/aristath/testscriptgen/internal/events"
	"github.com/aristath/testscriptgen/internal/settings"
	"github.com/aristath/testscriptgen/internal/workflow"
)

func newTasksCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List, create, inspect, delete and initiate tasks",
	}
	cmd.AddCommand(
		newTasksListCmd(flags),
		newTasksCreateCmd(flags),
		newTasksShowCmd(flags),
		newTasksDeleteCmd(flags),
		newTasksInitiateCmd(flags),
	)
	return cmd
}

// withSession opens the app, restores the login and runs fn.
func withSession(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, flags, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.requireLogin(ctx); err != nil {
		return describe(err)
	}
	if err := fn(ctx, a); err != nil {
		a.auth.HandleUnauthorized(ctx, err)
		return describe(err)
	}
	return nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func newTasksListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, a *app) error {
				list := a.taskList()
				defer list.Close()
				if err := list.Refresh(ctx); err != nil {
					return err
				}
				printTasks(cmd.OutOrStdout(), list.Tasks())
				return nil
			})
		},
	}
}

func printTasks(w io.Writer, tasks []api.TaskSummary) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", t.ID, t.Name, t.Status)
	}
	tw.Flush()
}

func newTasksCreateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, a *app) error {
				list := a.taskList()
				defer list.Close()
				task, err := list.Create(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created task %d %q (%s)\n", task.ID, task.Name, task.Status)
				return nil
			})
		},
	}
}

func newTasksShowCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, flags, func(ctx context.Context, a *app) error {
				task, err := a.client.GetTask(ctx, id)
				if err != nil {
					return err
				}
				printTask(cmd.OutOrStdout(), task)
				return nil
			})
		},
	}
}

func printTask(w io.Writer, task *api.Task) {
	h := workflow.TaskHeader(task)
	s := settings.FromTask(task)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Task:\t%d %s\n", task.ID, h.Name)
	fmt.Fprintf(tw, "Status:\t%s\n", h.Status)
	fmt.Fprintf(tw, "Created:\t%s\n", h.Created)
	fmt.Fprintf(tw, "Initiated:\t%s\n", h.Initiated)
	if task.Instruction != "" {
		fmt.Fprintf(tw, "Instruction:\t%s\n", task.Instruction)
	}
	fmt.Fprintf(tw, "Provider:\t%s / %s\n", s.Agent.Provider, s.Agent.Model)
	fmt.Fprintf(tw, "Temperature:\t%g\n", s.Agent.Temperature)
	fmt.Fprintf(tw, "Context length:\t%d\n", s.Agent.ContextLength)
	if s.Agent.BaseURL != "" {
		fmt.Fprintf(tw, "Base URL:\t%s\n", s.Agent.BaseURL)
	}
	fmt.Fprintf(tw, "Browser:\theadless=%t security-disabled=%t window=%dx%d\n",
		s.Browser.Headless, s.Browser.DisableSecurity, s.Browser.WindowWidth, s.Browser.WindowHeight)
	tw.Flush()
}

func newTasksDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, flags, func(ctx context.Context, a *app) error {
				list := a.taskList()
				defer list.Close()
				if err := list.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
				return nil
			})
		},
	}
}

type initiateFlags struct {
	instruction     string
	description     string
	searchInput     string
	searchAction    string
	expectedOutcome string
	expectedStatus  string
	apiKey          string
	provider        string
	model           string
	wait            bool
	timeout         time.Duration
}

func newTasksInitiateCmd(flags *globalFlags) *cobra.Command {
	var f initiateFlags

	cmd := &cobra.Command{
		Use:   "initiate <id>",
		Short: "Run the agent on a task with its saved settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withSession(cmd, flags, func(ctx context.Context, a *app) error {
				return initiate(ctx, cmd, a, id, f)
			})
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.instruction, "instruction", "", "what the agent should do (defaults to the task's saved instruction)")
	fl.StringVar(&f.description, "description", "", "task description")
	fl.StringVar(&f.searchInput, "search-input", "", "text to type into the search input")
	fl.StringVar(&f.searchAction, "search-action", "", "action after typing, e.g. Enter")
	fl.StringVar(&f.expectedOutcome, "expected-outcome", "", "expected outcome")
	fl.StringVar(&f.expectedStatus, "expected-status", "", "expected status")
	fl.StringVar(&f.apiKey, "api-key", "", "LLM API key (encrypted before sending; defaults to the stored key)")
	fl.StringVar(&f.provider, "provider", "", "override the task's LLM provider")
	fl.StringVar(&f.model, "model", "", "override the task's LLM model")
	fl.BoolVar(&f.wait, "wait", false, "wait for the run to finish and print the result")
	fl.DurationVar(&f.timeout, "timeout", 10*time.Minute, "how long --wait waits")
	return cmd
}

// initiate submits the task through the same form workflow the dashboard uses.
func initiate(ctx context.Context, cmd *cobra.Command, a *app, id int64, f initiateFlags) error {
	sub := a.bus.Subscribe(events.TopicTask, 64)
	defer a.bus.Unsubscribe(sub)

	form := workflow.NewTaskForm(ctx, id, a.formDeps())
	defer func() {
		form.Close()
		form.Wait()
	}()

	if err := form.Load(); err != nil {
		return err
	}

	var patch settings.AgentPatch
	if f.provider != "" {
		p, err := settings.ParseProvider(f.provider)
		if err != nil {
			return err
		}
		patch.Provider = &p
	}
	if f.model != "" {
		patch.Model = &f.model
	}
	if patch != (settings.AgentPatch{}) {
		if err := a.settings.UpdateAgent(patch); err != nil {
			return err
		}
	}

	fields := form.Snapshot().Fields
	overlay(&fields.Instruction, f.instruction)
	overlay(&fields.Description, f.description)
	overlay(&fields.SearchInput, f.searchInput)
	overlay(&fields.SearchAction, f.searchAction)
	overlay(&fields.ExpectedOutcome, f.expectedOutcome)
	overlay(&fields.ExpectedStatus, f.expectedStatus)
	fields.APIKey = f.apiKey
	form.SetFields(fields)

	if err := form.Submit(); err != nil {
		snap := form.Snapshot()
		if snap.Warning != "" {
			return fmt.Errorf("%s", snap.Warning)
		}
		return err
	}

	out := cmd.OutOrStdout()
	snap := form.Snapshot()
	fmt.Fprintln(out, workflow.MsgSubmitted)
	fmt.Fprintln(out, snap.Payload)

	if !f.wait {
		return nil
	}
	return waitForRun(ctx, out, sub, id, f.timeout)
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// waitForRun follows the form's status watch until the run fails or its result arrives.
func waitForRun(ctx context.Context, w io.Writer, sub *events.Subscription, id int64, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return fmt.Errorf("event bus closed")
			}
			if ev.TaskID() != id {
				continue
			}
			switch ev := ev.(type) {
			case events.TaskStatusEvent:
				fmt.Fprintf(w, "Status: %s\n", ev.Status)
				if ev.Status == api.StatusFailed {
					return fmt.Errorf("task %d failed", id)
				}
			case events.TaskResultEvent:
				fmt.Fprintf(w, "Recording: %s\nScript:    %s\n", ev.Result.GIFURL, ev.Result.ScriptURL)
				return nil
			}
		case <-deadline.C:
			return fmt.Errorf("timed out after %s waiting for task %d", timeout, id)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
