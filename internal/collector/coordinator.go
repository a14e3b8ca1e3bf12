package collector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vkpulse/vkpulse/internal/vkapi"
)

// Coordinator fans out one GroupFetcher per requested group and funnels
// their batches into the shared run store.
type Coordinator struct {
	api   vkapi.API
	store *RunStore
	cfg   Config
}

// NewCoordinator creates a coordinator writing to the given store.
func NewCoordinator(api vkapi.API, store *RunStore, cfg Config) *Coordinator {
	return &Coordinator{api: api, store: store, cfg: cfg.withDefaults()}
}

// Result summarizes one collection run.
type Result struct {
	StorePath   string
	TotalSaved  int
	GroupErrors int
}

// Collect clears the store and harvests every requested group inside
// [start, end]. Group failures are isolated: they are counted in the result
// while sibling groups run to completion.
func (c *Coordinator) Collect(ctx context.Context, identifiers []string, start, end time.Time) (*Result, error) {
	if len(identifiers) == 0 {
		return nil, fmt.Errorf("no groups requested")
	}
	for _, id := range identifiers {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("empty group identifier in request")
		}
	}
	if start.After(end) {
		return nil, fmt.Errorf("window start %s is after end %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	if err := c.store.Clear(); err != nil {
		return nil, fmt.Errorf("clearing run store: %w", err)
	}

	logrus.Infof("Collecting %d group(s), window %s .. %s",
		len(identifiers), start.Format("2006-01-02"), end.Format("2006-01-02"))

	var wg sync.WaitGroup
	savedChan := make(chan int, len(identifiers))
	errorsChan := make(chan error, len(identifiers))

	for i, identifier := range identifiers {
		// Stagger launches so several groups do not open with a
		// synchronized burst against the same API quota.
		if i > 0 && c.cfg.LaunchStagger > 0 {
			time.Sleep(c.cfg.LaunchStagger)
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			saved, err := c.collectGroup(ctx, id, start, end)
			if err != nil {
				logrus.Errorf("Group %s: collection failed: %v", id, err)
				errorsChan <- err
				return
			}
			savedChan <- saved
		}(identifier)
	}

	go func() {
		wg.Wait()
		close(savedChan)
		close(errorsChan)
	}()

	total := 0
	for saved := range savedChan {
		total += saved
	}
	groupErrors := 0
	for range errorsChan {
		groupErrors++
	}

	logrus.Infof("Collection finished: %d records across %d group(s), %d failed",
		total, len(identifiers), groupErrors)

	return &Result{
		StorePath:   c.store.Path(),
		TotalSaved:  total,
		GroupErrors: groupErrors,
	}, nil
}

func (c *Coordinator) collectGroup(ctx context.Context, identifier string, start, end time.Time) (int, error) {
	fetcher := NewGroupFetcher(c.api, identifier, c.cfg)

	records, err := fetcher.Fetch(ctx, start, end)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	saved, err := c.store.AppendBatch(records)
	if err != nil {
		return 0, fmt.Errorf("writing batch for group %s: %w", identifier, err)
	}

	logrus.Infof("Group %s: saved %d records", identifier, saved)
	return saved, nil
}
