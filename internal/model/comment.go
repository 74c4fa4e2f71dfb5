package model

import "time"

// CommentKind discriminates the rows of the single comments table.
//
// A reply is routed once, when it is written: a reply to one of the user's own
// top-level comments is an OwnReply, anything else is a ForeignReply indexed
// by the foreign parent's id. Both carry ParentID, so a read or edit that does
// not know the branch can match on (ParentID, ID) across both kinds.
type CommentKind string

const (
	CommentTopLevel     CommentKind = "top_level"
	CommentOwnReply     CommentKind = "own_reply"
	CommentForeignReply CommentKind = "foreign_reply"
)

func (k CommentKind) IsReply() bool {
	return k == CommentOwnReply || k == CommentForeignReply
}

// Comment is a locally authored comment or reply. LikeCount is local only and
// starts at zero; it is never reconciled with the platform's counters.
type Comment struct {
	ID          string      `json:"id"`
	UserID      string      `json:"-"`
	VideoID     string      `json:"videoId"`
	ParentID    string      `json:"parentId,omitempty"`
	Kind        CommentKind `json:"kind"`
	Text        string      `json:"text"`
	ChannelID   string      `json:"channelId"`
	LikeCount   int64       `json:"likeCount"`
	PublishedAt time.Time   `json:"publishedAt"`
}
