package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/optifi/internal/logger"
	"github.com/jomei/notionapi"
)

// BatchSize is how many entries are processed between progress logs.
const BatchSize = 100

// Options controls a publish.
type Options struct {
	DryRun bool
	// Prune archives pages whose key is not among the published entries.
	Prune bool
}

// Result counts what a publish did.
type Result struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// Publisher mirrors bank transactions into a Notion database.
type Publisher struct {
	client     NotionService
	databaseID string
	opts       Options
}

// NewPublisher creates a Publisher for one database.
func NewPublisher(client NotionService, databaseID string, opts Options) *Publisher {
	return &Publisher{client: client, databaseID: databaseID, opts: opts}
}

// Publish creates a page per new natural key and updates pages whose type or
// reconciliation status changed. Pages are matched by the key in their title,
// so publishing the same entries twice creates nothing the second time.
// Per-page API failures are logged and counted; only listing the database
// is fatal.
func (p *Publisher) Publish(ctx context.Context, entries []Entry) (*Result, error) {
	log := logger.FromContext(ctx)

	log.Info().
		Int("entry_count", len(entries)).
		Bool("dry_run", p.opts.DryRun).
		Bool("prune", p.opts.Prune).
		Msg("Publishing bank transactions to Notion")

	pages, err := queryAllNotionPages(ctx, p.client, p.databaseID)
	if err != nil {
		return nil, fmt.Errorf("Publish: %w", err)
	}

	existing := make(map[string]notionapi.Page, len(pages))
	for _, page := range pages {
		if key := extractKey(page); key != "" {
			existing[key] = page
		}
	}

	res := &Result{}
	wanted := make(map[string]bool, len(entries))

	for i, e := range entries {
		if i > 0 && i%BatchSize == 0 {
			log.Info().Int("processed", i).Int("total", len(entries)).Msg("Publish progress")
		}

		key := e.Tx.Key().String()
		if wanted[key] {
			res.Skipped++
			continue
		}
		wanted[key] = true

		page, found := existing[key]
		if found && !needsUpdate(page, e) {
			res.Skipped++
			continue
		}

		if p.opts.DryRun {
			if found {
				log.Info().Str("key", key).Msg("[DRY RUN] Would update Notion page")
				res.Updated++
			} else {
				log.Info().Str("key", key).Msg("[DRY RUN] Would create Notion page")
				res.Created++
			}
			continue
		}

		props := BankTransactionToNotionProperties(e)
		if found {
			if _, err := p.client.UpdatePage(ctx, string(page.ID), props); err != nil {
				log.Warn().Err(err).Str("key", key).Str("page_id", string(page.ID)).Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}

		created, err := p.client.CreatePage(ctx, p.databaseID, props)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Str("key", key).Str("page_id", string(created.ID)).Msg("Created Notion page")
		res.Created++
	}

	if p.opts.Prune {
		for _, page := range pages {
			key := extractKey(page)
			if wanted[key] {
				continue
			}
			if p.opts.DryRun {
				log.Info().Str("key", key).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would archive stale Notion page")
				res.Archived++
				continue
			}
			if err := p.client.ArchivePage(ctx, string(page.ID)); err != nil {
				log.Warn().Err(err).Str("key", key).Str("page_id", string(page.ID)).Msg("Failed to archive stale Notion page")
				res.Failed++
				continue
			}
			res.Archived++
		}
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Notion publish completed")

	return res, nil
}

func needsUpdate(page notionapi.Page, e Entry) bool {
	if extractSelect(page, PropType) != string(e.Tx.Type) {
		return true
	}
	return e.Status != "" && extractSelect(page, PropStatus) != e.Status
}

// queryAllNotionPages pages through the whole database.
func queryAllNotionPages(ctx context.Context, client NotionService, databaseID string) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: 100}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := client.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return all, nil
}
