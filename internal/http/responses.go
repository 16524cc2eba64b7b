package http

import (
	"time"

	"tips-service/internal/domain"
)

type IndexResponse struct {
	LoginRef      string `json:"login_ref"`
	CreateUserRef string `json:"create_user_ref"`
	LogoutRef     string `json:"logout_ref"`
	GetTipsRef    string `json:"get_tips_ref"`
	PostNewTipRef string `json:"post_new_tip_ref"`
}

type UserResponse struct {
	Username string `json:"username"`
}

type NewTipResponse struct {
	TipID             uint64 `json:"tipId"`
	TipRef            string `json:"tip_ref"`
	TipCommentsRef    string `json:"tip_comments_ref"`
	PostNewCommentRef string `json:"post_new_comment_ref"`
	TipHistoryRef     string `json:"tip_history_ref"`
}

type NewCommentResponse struct {
	CommentID         uint64 `json:"commentId"`
	CommentRef        string `json:"comment_ref"`
	CommentHistoryRef string `json:"comment_history_ref"`
}

// TipResponse omits comments unless they were requested; a requested but
// empty thread is rendered as [].
type TipResponse struct {
	TipID    uint64             `json:"tipId"`
	Username string             `json:"username"`
	Message  string             `json:"message"`
	Created  string             `json:"created"`
	Modified string             `json:"modified"`
	Comments *[]CommentResponse `json:"comments,omitempty"`
}

type CommentResponse struct {
	CommentID uint64 `json:"commentId"`
	Username  string `json:"username"`
	Comment   string `json:"comment"`
	Created   string `json:"created"`
	Modified  string `json:"modified"`
}

type TipHistoryResponse struct {
	TipID    uint64               `json:"tipId"`
	Versions []TipVersionResponse `json:"versions"`
}

type TipVersionResponse struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Modified string `json:"modified"`
}

type CommentHistoryResponse struct {
	CommentID uint64                   `json:"commentId"`
	Versions  []CommentVersionResponse `json:"versions"`
}

type CommentVersionResponse struct {
	Username string `json:"username"`
	Comment  string `json:"comment"`
	Modified string `json:"modified"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func tipToResponse(tip domain.Tip, withComments bool) TipResponse {
	resp := TipResponse{
		TipID:    tip.ID,
		Username: tip.Owner,
		Message:  tip.Content,
		Created:  formatTime(tip.CreatedAt),
		Modified: formatTime(tip.ModifiedAt),
	}
	if withComments {
		comments := commentsToResponse(tip.Comments)
		resp.Comments = &comments
	}
	return resp
}

func commentToResponse(comment domain.Entity) CommentResponse {
	return CommentResponse{
		CommentID: comment.ID,
		Username:  comment.Owner,
		Comment:   comment.Content,
		Created:   formatTime(comment.CreatedAt),
		Modified:  formatTime(comment.ModifiedAt),
	}
}

func commentsToResponse(comments []domain.Entity) []CommentResponse {
	resp := make([]CommentResponse, len(comments))
	for i := range comments {
		resp[i] = commentToResponse(comments[i])
	}
	return resp
}
