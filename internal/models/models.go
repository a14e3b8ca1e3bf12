package models

import "time"

// RawComment is one comment under a collected post.
type RawComment struct {
	VKCommentID int64  `json:"vk_comment_id"`
	FromID      int64  `json:"from_id"`
	Date        int64  `json:"date"` // unix timestamp
	Text        string `json:"text"`
}

// CollectionRecord is the unit written to the collection store: one post of
// one group together with its comments. Records for a group are persisted in
// ascending timestamp order.
type CollectionRecord struct {
	VKGroupID        int64        `json:"vk_group_id"`
	GroupScreenName  string       `json:"group_screen_name"`
	GroupName        string       `json:"group_name"`
	VKPostID         int64        `json:"vk_post_id"`
	OwnerID          int64        `json:"owner_id"`
	Date             int64        `json:"date"` // unix timestamp
	Text             string       `json:"text"`
	CommentsAPICount int          `json:"comments_api_count"`
	Comments         []RawComment `json:"comments"`
}

// SourceMeta is the provenance record the preprocessor emits for every text
// handed to the sentiment model, parallel to the texts list by index.
type SourceMeta struct {
	SourceType   string `json:"source_type"` // "post" or "comment"
	SourceID     int64  `json:"source_id"`
	GroupID      int64  `json:"group_id"`
	GroupName    string `json:"group_name"`
	Timestamp    int64  `json:"date_timestamp"`
	TextPreview  string `json:"original_text_preview"`
	PostIDParent int64  `json:"post_id_parent,omitempty"` // comments only
	CommenterID  int64  `json:"commenter_id,omitempty"`   // comments only
}

// MentionJudgment is one entity+polarity verdict from the sentiment model
// about one text. Consumed immediately by the aggregator.
type MentionJudgment struct {
	Entity         string `json:"entity"`          // normalized name
	EntityOriginal string `json:"entity_original"` // surface form in the text
	Polarity       string `json:"polarity"`
}

// MentionRecord is one row of the detail mention log. The entity field is
// the only field ever rewritten, and only by an alias merge.
type MentionRecord struct {
	EntityNormalized string `json:"entity_normalized"`
	EntityOriginal   string `json:"entity_original"`
	Polarity         string `json:"polarity"`
	Date             string `json:"date"` // YYYY-MM-DD
	Timestamp        int64  `json:"timestamp"`
	SourceType       string `json:"source_type"`
	SourceID         int64  `json:"source_id"`
	PostIDIfComment  int64  `json:"post_id_if_comment,omitempty"`
	GroupName        string `json:"group_name"`
	TextPreview      string `json:"text_preview"`
}

// EntityStanding is one entity's aggregate position in a report.
type EntityStanding struct {
	Entity  string         `json:"entity"`
	Total   int            `json:"total"`
	ByLabel map[string]int `json:"by_label"`
}

// Report is the digest produced after an analysis run.
type Report struct {
	RunID            string           `json:"run_id"`
	GeneratedAt      time.Time        `json:"generated_at"`
	WindowStart      string           `json:"window_start"`
	WindowEnd        string           `json:"window_end"`
	Groups           []string         `json:"groups"`
	RecordsCollected int              `json:"records_collected"`
	TextsAnalyzed    int              `json:"texts_analyzed"`
	TotalMentions    int              `json:"total_mentions"`
	Standings        []EntityStanding `json:"standings"`
	MentionLogPath   string           `json:"mention_log_path,omitempty"`
}

// AnalysisResult summarizes one full analysis run.
type AnalysisResult struct {
	RunID          string    `json:"run_id"`
	StorePath      string    `json:"store_path"`
	MentionLogPath string    `json:"mention_log_path,omitempty"`
	RecordsSaved   int       `json:"records_saved"`
	GroupErrors    int       `json:"group_errors"`
	TextsAnalyzed  int       `json:"texts_analyzed"`
	TotalMentions  int       `json:"total_mentions"`
	Message        string    `json:"message,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	Duration       string    `json:"duration"`
}
