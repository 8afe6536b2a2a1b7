package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vmunix/cinedex/internal/events"
)

type eventJSON struct {
	ID         int64  `json:"id"`
	Type       string `json:"type"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	OccurredAt string `json:"occurred_at"`
	Payload    any    `json:"payload"`
}

// eventQuery selects which events to list.
type eventQuery struct {
	limit  int
	since  time.Duration
	entity string // "type/id"
}

// fetch picks the narrowest event log query. Entity and since listings are oldest
// first and keep the newest limit events; the default listing is newest first.
func (q eventQuery) fetch(ctx context.Context, log *events.EventLog) ([]events.RawEvent, error) {
	var (
		raws []events.RawEvent
		err  error
	)
	switch {
	case q.entity != "":
		entityType, entityID, ok := strings.Cut(q.entity, "/")
		if !ok || entityType == "" || entityID == "" {
			return nil, fmt.Errorf("--entity: want type/id, got %q", q.entity)
		}
		raws, err = log.ForEntity(ctx, entityType, entityID)
		if err == nil && q.since > 0 {
			cutoff := time.Now().Add(-q.since)
			kept := raws[:0]
			for _, r := range raws {
				if !r.OccurredAt.Before(cutoff) {
					kept = append(kept, r)
				}
			}
			raws = kept
		}
	case q.since > 0:
		raws, err = log.Since(ctx, time.Now().Add(-q.since))
	default:
		return log.Recent(ctx, q.limit)
	}
	if err != nil {
		return nil, err
	}
	if q.limit > 0 && len(raws) > q.limit {
		raws = raws[len(raws)-q.limit:]
	}
	return raws, nil
}

func newEventsCmd(opts *options) *cobra.Command {
	var q eventQuery
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent indexing and dispatch activity",
		Long: `Show recent indexing and dispatch activity.

  cinedex events -n 50
  cinedex events --since 24h
  cinedex events --entity dispatch/<batch-id>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			raws, err := q.fetch(cmd.Context(), a.store.Events)
			if err != nil {
				return err
			}

			registry := events.DefaultRegistry()
			if opts.jsonOutput {
				out := make([]eventJSON, len(raws))
				for i, r := range raws {
					out[i] = eventJSON{
						ID:         r.ID,
						Type:       r.EventType,
						EntityType: r.EntityType,
						EntityID:   r.EntityID,
						OccurredAt: r.OccurredAt.UTC().Format(time.RFC3339),
						Payload:    r.Payload,
					}
					if e, err := registry.Unmarshal(r); err == nil {
						out[i].Payload = e
					}
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			if len(raws) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No events")
				return nil
			}
			rows := make([][]string, len(raws))
			for i, r := range raws {
				rows[i] = []string{humanize.Time(r.OccurredAt), r.EventType, r.EntityType + "/" + r.EntityID, describe(registry, r)}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"WHEN", "TYPE", "ENTITY", "DETAIL"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().IntVarP(&q.limit, "limit", "n", 20, "Number of events to show")
	cmd.Flags().DurationVar(&q.since, "since", 0, "Only events newer than this age (e.g. 24h)")
	cmd.Flags().StringVar(&q.entity, "entity", "", "Only events for one entity, as type/id (e.g. dispatch/<batch-id>)")
	return cmd
}

func describe(registry *events.Registry, r events.RawEvent) string {
	e, err := registry.Unmarshal(r)
	if err != nil {
		return ""
	}
	switch e := e.(type) {
	case *events.FileIndexed:
		return fmt.Sprintf("%s %s", e.Title, e.Quality)
	case *events.IndexFailed:
		return fmt.Sprintf("%s: %s", e.Filename, e.Reason)
	case *events.FeedScanned:
		return fmt.Sprintf("seen %d, indexed %d, failed %d", e.Seen, e.Indexed, e.Failed)
	case *events.DispatchStarted:
		return fmt.Sprintf("chat %d, %d items", e.ChatID, e.Items)
	case *events.DispatchCompleted:
		return fmt.Sprintf("chat %d, sent %d, failed %d in %s", e.ChatID, e.Sent, e.Failed, e.Duration)
	default:
		return ""
	}
}
