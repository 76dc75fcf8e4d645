package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/familytask/internal/api"
	"github.com/dukerupert/familytask/internal/config"
	"github.com/dukerupert/familytask/internal/logging"
	"github.com/dukerupert/familytask/internal/notify"
	"github.com/dukerupert/familytask/internal/view"
	"github.com/dukerupert/familytask/internal/viewstate"
)

// stderrNotifier prints banners that would otherwise be shown in the browser.
type stderrNotifier struct{ w io.Writer }

func (n stderrNotifier) Notify(level notify.Level, message string) {
	fmt.Fprintf(n.w, "[%s] %s\n", level, message)
}

func tasksCmd(cfg *config.Config) *cobra.Command {
	var (
		email    string
		password string
		familyID int64
	)
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List a family's tasks in the terminal",
		Long: `Sign in to the family-task API and print the task list.

With one family it is selected automatically; otherwise pass --family.

Examples:
  familytask tasks --email alice@example.com --password secret
  familytask tasks --email alice@example.com --password secret --family 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("FAMILYTASK_PASSWORD")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runTasks(ctx, *cfg, email, password, familyID, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or FAMILYTASK_PASSWORD)")
	cmd.Flags().Int64Var(&familyID, "family", 0, "family ID to list")
	cmd.MarkFlagRequired("email")
	return cmd
}

func runTasks(ctx context.Context, cfg config.Config, email, password string, familyID int64, out, errOut io.Writer) error {
	logger := logging.New(errOut, cfg.LogLevel, cfg.LogFormat)

	client, err := api.NewClient(api.Config{BaseURL: cfg.APIURL, Timeout: cfg.APITimeout})
	if err != nil {
		return err
	}
	syncer := viewstate.New(client, viewstate.Options{
		Notifier: stderrNotifier{w: errOut},
		Logger:   logger,
	})

	if err := syncer.Login(ctx, email, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer syncer.Logout(ctx)

	if familyID != 0 {
		if err := syncer.SelectFamily(ctx, familyID); err != nil {
			return err
		}
	}

	st := syncer.Snapshot()
	if st.Family == nil {
		printFamilies(out, st)
		return nil
	}
	return printTasks(out, st, time.Now())
}

func printFamilies(out io.Writer, st viewstate.State) {
	if len(st.Families) == 0 {
		fmt.Fprintln(out, "Not a member of any family yet.")
		return
	}
	fmt.Fprintln(out, "Choose a family with --family:")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, f := range st.Families {
		fmt.Fprintf(tw, "%d\t%s\n", f.ID, f.Name)
	}
	tw.Flush()
}

func printTasks(out io.Writer, st viewstate.State, now time.Time) error {
	fmt.Fprintf(out, "%s\n\n", st.Family.Name)

	list := view.Tasks(st, now)
	if list.Empty {
		fmt.Fprintln(out, list.Message)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTASK\tDIFFICULTY\tDUE\tASSIGNED")
	for _, item := range append(list.Active, list.Completed...) {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", item.ID, item.Title, item.Stars, item.DueLabel, assignee(item))
	}
	return tw.Flush()
}

func assignee(item view.TaskItem) string {
	if item.Completed {
		return "done by " + item.CompletedBy
	}
	for _, o := range item.Assignees {
		if o.Selected {
			return o.Label
		}
	}
	return "-"
}
