package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jxucoder/tomoru/internal/config"
	"github.com/jxucoder/tomoru/model"
	"github.com/jxucoder/tomoru/store"
	sqliteStore "github.com/jxucoder/tomoru/store/sqlite"
)

var (
	eventsKind  string
	eventsLimit int
	eventsDB    string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent diagnostic events from the local database",
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&eventsKind, "kind", "", "only show events of this kind (e.g. chat.failure)")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 20, "maximum number of events")
	eventsCmd.Flags().StringVar(&eventsDB, "db", "", "database path (default from TOMORU_DATA_DIR)")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	path := eventsDB
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		path = cfg.DatabasePath
	}

	st, err := sqliteStore.New(path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer st.Close()

	return printEvents(cmd.OutOrStdout(), st, eventsKind, eventsLimit)
}

func printEvents(out io.Writer, st store.EventStore, kind string, limit int) error {
	events, err := st.RecentEvents(kind, limit)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "No events found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tVISIT\tKIND\tDATA")
	for _, ev := range events {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			ev.ID, ev.CreatedAt.Local().Format(time.DateTime), ev.VisitID, kindIcon(ev.Kind), model.Truncate(ev.Data, 80))
	}
	return w.Flush()
}

func kindIcon(kind string) string {
	switch kind {
	case model.EventChatReply:
		return "💬 " + kind
	case model.EventChatEmpty:
		return "… " + kind
	case model.EventChatFailure:
		return "❌ " + kind
	default:
		return kind
	}
}
