package model

import "time"

type PostType string

const (
	PostText  PostType = "text"
	PostImage PostType = "image"
	PostQuiz  PostType = "quiz"
)

type QuizAnswer struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Post is a channel community post. The ID is chosen by the client (a UUID)
// before the write so the UI can render the post optimistically.
//
// Images holds public object-storage URLs after upload; on input it holds the
// data URLs the client sent. Only Text can change after creation.
type Post struct {
	ID        string       `json:"id"`
	UserID    string       `json:"-"`
	Type      PostType     `json:"type"`
	Text      string       `json:"text,omitempty"`
	Images    []string     `json:"images,omitempty"`
	Quiz      []QuizAnswer `json:"quiz,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}
