package command

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/itchan-dev/legorachat/shared/domain"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

func newLoginCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in, creating the account if the username is new",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, user, err := signIn(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (id %d)\n", user.Username, user.Id)
			return nil
		},
	}
}

func newThreadsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "threads",
		Short: "List your threads, most recently active first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := signIn(cmd.Context(), opts)
			if err != nil {
				return err
			}
			threads, err := client.Threads(cmd.Context())
			if err != nil {
				return err
			}
			printThreads(cmd.OutOrStdout(), threads)
			return nil
		},
	}
}

func newNewThreadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "new-thread USERNAME...",
		Short: "Start a thread with the given users",
		Long:  "Start a thread with the given users. Unknown usernames are skipped.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, user, err := signIn(cmd.Context(), opts)
			if err != nil {
				return err
			}
			thread, err := client.CreateThread(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created thread %d: %s\n", thread.Id, thread.SummaryFor(user.Id).Name)
			return nil
		},
	}
}

func newMessagesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "messages THREAD_ID",
		Short: "Print a thread's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			threadId, err := parseThreadId(args[0])
			if err != nil {
				return err
			}
			client, _, err := signIn(cmd.Context(), opts)
			if err != nil {
				return err
			}
			messages, err := client.Messages(cmd.Context(), threadId)
			if err != nil {
				return err
			}
			for _, m := range messages {
				printMessage(cmd.OutOrStdout(), m)
			}
			return nil
		},
	}
}

func newSendCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "send THREAD_ID TEXT...",
		Short: "Send a message to a thread",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			threadId, err := parseThreadId(args[0])
			if err != nil {
				return err
			}
			client, _, err := signIn(cmd.Context(), opts)
			if err != nil {
				return err
			}
			msg, err := client.SendMessage(cmd.Context(), threadId, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printMessage(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func printThreads(w io.Writer, threads []domain.ThreadSummary) {
	if len(threads) == 0 {
		fmt.Fprintln(w, "No threads yet")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tACTIVE\tLAST MESSAGE")
	for _, t := range threads {
		last := lo.TernaryF(t.LastMessage != nil,
			func() string { return t.LastMessage.SenderName + ": " + t.LastMessage.Content },
			func() string { return "-" })
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.Id, t.Name, formatTime(t.LastActivity()), last)
	}
	tw.Flush()
}

func printMessage(w io.Writer, m domain.Message) {
	fmt.Fprintf(w, "[%s] %s: %s\n", formatTime(m.CreatedAt), m.SenderName, m.Content)
}

func formatTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}
