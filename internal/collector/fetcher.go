package collector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vkpulse/vkpulse/internal/models"
	"github.com/vkpulse/vkpulse/internal/vkapi"
)

// Config carries the collection engine tunables. Zero values fall back to
// production defaults.
type Config struct {
	PostsChunkSize     int
	CommentsChunkSize  int
	MaxCommentsPerPost int // 0 = unlimited
	GroupConcurrency   int // cap on in-flight API calls per group
	LaunchStagger      time.Duration
}

func (c Config) withDefaults() Config {
	if c.PostsChunkSize <= 0 {
		c.PostsChunkSize = 100
	}
	if c.CommentsChunkSize <= 0 {
		c.CommentsChunkSize = 100
	}
	if c.GroupConcurrency <= 0 {
		c.GroupConcurrency = 4
	}
	return c
}

// GroupFetcher walks one group's wall within a date window and builds its
// collection records. A fetcher is used for a single run and is not safe for
// reuse.
type GroupFetcher struct {
	api        vkapi.API
	identifier string
	cfg        Config
	sem        chan struct{}

	group *vkapi.GroupInfo
}

// NewGroupFetcher creates a fetcher for one group. The identifier may be a
// numeric id, a screen name or a full group URL.
func NewGroupFetcher(api vkapi.API, identifier string, cfg Config) *GroupFetcher {
	cfg = cfg.withDefaults()
	return &GroupFetcher{
		api:        api,
		identifier: vkapi.CleanGroupIdentifier(identifier),
		cfg:        cfg,
		sem:        make(chan struct{}, cfg.GroupConcurrency),
	}
}

// Fetch resolves the group and gathers its posts and their comments inside
// [start, end], returning records in chronological order. Resolution failure
// fails the whole group; pagination errors keep what was gathered so far.
func (f *GroupFetcher) Fetch(ctx context.Context, start, end time.Time) ([]models.CollectionRecord, error) {
	if f.identifier == "" {
		return nil, fmt.Errorf("empty group identifier")
	}

	group, err := f.resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving group %q: %w", f.identifier, err)
	}

	posts := f.fetchPosts(ctx, start, end)
	if len(posts) == 0 {
		logrus.Infof("Group %s (%s): no posts in window", f.identifier, group.Name)
		return nil, nil
	}

	// Comment fetches for unrelated posts overlap freely; the semaphore
	// inside each page call caps the burst on the shared API quota.
	commentLists := make([][]models.RawComment, len(posts))
	var wg sync.WaitGroup
	for i := range posts {
		if commentCount(&posts[i]) == 0 {
			continue
		}
		wg.Add(1)
		go func(idx int, postID int64) {
			defer wg.Done()
			commentLists[idx] = f.fetchComments(ctx, postID, start, end)
		}(i, posts[i].ID)
	}
	wg.Wait()

	records := make([]models.CollectionRecord, 0, len(posts))
	for i := range posts {
		comments := commentLists[i]
		if comments == nil {
			comments = []models.RawComment{}
		}
		records = append(records, models.CollectionRecord{
			VKGroupID:        group.ID,
			GroupScreenName:  group.ScreenName,
			GroupName:        group.Name,
			VKPostID:         posts[i].ID,
			OwnerID:          posts[i].OwnerID,
			Date:             posts[i].Date,
			Text:             strings.TrimSpace(posts[i].Text),
			CommentsAPICount: commentCount(&posts[i]),
			Comments:         comments,
		})
	}

	// Pages arrive newest first; persisted order must be chronological.
	reverseRecords(records)
	return records, nil
}

func (f *GroupFetcher) resolve(ctx context.Context) (*vkapi.GroupInfo, error) {
	f.sem <- struct{}{}
	groups, err := f.api.GroupsGetByID(ctx, f.identifier)
	<-f.sem

	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("group not found")
	}

	f.group = &groups[0]
	logrus.Infof("Resolved group %q to id %d (%s)", f.identifier, f.group.ID, f.group.Name)
	return f.group, nil
}

// fetchPosts paginates the group wall from offset 0, newest first, keeping
// posts inside the window with non-empty text. API errors stop pagination
// but keep what was already gathered.
func (f *GroupFetcher) fetchPosts(ctx context.Context, start, end time.Time) []vkapi.Post {
	var kept []vkapi.Post
	startTS, endTS := start.Unix(), end.Unix()
	offset := 0

	for {
		page, err := f.wallPage(ctx, offset)
		if err != nil {
			logrus.Errorf("Group %s: wall.get at offset %d failed: %v", f.identifier, offset, err)
			break
		}
		items := page.Items
		if len(items) == 0 {
			logrus.Debugf("Group %s: no more posts at offset %d", f.identifier, offset)
			break
		}

		oldestInPage := items[len(items)-1].Date
		reachedWindowStart := oldestInPage < startTS

		for _, post := range items {
			if post.Date > endTS {
				continue
			}
			if post.Date >= startTS && strings.TrimSpace(post.Text) != "" {
				kept = append(kept, post)
			}
		}

		if reachedWindowStart {
			logrus.Debugf("Group %s: page reached below window start, stopping", f.identifier)
			break
		}
		offset += f.cfg.PostsChunkSize
		if len(items) < f.cfg.PostsChunkSize {
			logrus.Debugf("Group %s: wall exhausted at offset %d", f.identifier, offset)
			break
		}
	}

	logrus.Infof("Group %s: %d posts in window", f.identifier, len(kept))
	return kept
}

// fetchComments paginates one post's comments in ascending order, bounded by
// the window end and the optional per-post ceiling. Comments older than the
// window start are skipped, not a stop condition.
func (f *GroupFetcher) fetchComments(ctx context.Context, postID int64, start, end time.Time) []models.RawComment {
	var comments []models.RawComment
	startTS, endTS := start.Unix(), end.Unix()
	offset, fetched := 0, 0

	for {
		countToRequest := f.cfg.CommentsChunkSize
		if f.cfg.MaxCommentsPerPost > 0 {
			remaining := f.cfg.MaxCommentsPerPost - fetched
			if remaining <= 0 {
				break
			}
			if remaining < countToRequest {
				countToRequest = remaining
			}
		}

		page, err := f.commentsPage(ctx, postID, countToRequest, offset)
		if err != nil {
			if vkapi.IsCommentsUnavailable(err) {
				logrus.Warnf("Group %s: post %d removed or comments closed", f.identifier, postID)
			} else {
				logrus.Errorf("Group %s: wall.getComments for post %d failed: %v", f.identifier, postID, err)
			}
			break
		}
		items := page.Items
		if len(items) == 0 {
			break
		}

		stop := false
		for _, item := range items {
			if item.Date > endTS {
				stop = true
				break
			}
			if item.Date < startTS {
				continue
			}
			text := strings.TrimSpace(item.Text)
			if text == "" {
				continue
			}
			comments = append(comments, models.RawComment{
				VKCommentID: item.ID,
				FromID:      item.FromID,
				Date:        item.Date,
				Text:        text,
			})
			fetched++
			if f.cfg.MaxCommentsPerPost > 0 && fetched >= f.cfg.MaxCommentsPerPost {
				stop = true
				break
			}
		}
		if stop {
			break
		}

		offset += len(items)
		if len(items) < countToRequest {
			break
		}
	}

	return comments
}

// wallPage fetches one posts page, holding the group semaphore around the
// single call rather than the whole pagination loop.
func (f *GroupFetcher) wallPage(ctx context.Context, offset int) (*vkapi.WallPage, error) {
	f.sem <- struct{}{}
	defer func() { <-f.sem }()
	return f.api.WallGet(ctx, -f.group.ID, f.cfg.PostsChunkSize, offset)
}

func (f *GroupFetcher) commentsPage(ctx context.Context, postID int64, count, offset int) (*vkapi.CommentsPage, error) {
	f.sem <- struct{}{}
	defer func() { <-f.sem }()
	return f.api.WallGetComments(ctx, -f.group.ID, postID, count, offset)
}

func commentCount(post *vkapi.Post) int {
	if post.Comments == nil {
		return 0
	}
	return post.Comments.Count
}

func reverseRecords(records []models.CollectionRecord) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
