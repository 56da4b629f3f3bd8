package models

// ReplyStatus tracks resolution of a single ancestor hop.
type ReplyStatus string

const (
	ReplyStatusNotDetermined ReplyStatus = "not_determined"
	ReplyStatusFail          ReplyStatus = "fail"
	ReplyStatusSuccess       ReplyStatus = "success"
)

// ReplyNode is one hop of the ancestor chain. Chains are replaced wholesale,
// so a ReplyNode is never mutated after it is built.
type ReplyNode struct {
	PostID    string      `json:"post_id"`
	ReplyToID string      `json:"reply_to_id,omitempty"`
	Status    ReplyStatus `json:"status"`

	// Post is set when Status is success.
	Post *Post `json:"post,omitempty"`

	// Err is set when Status is fail.
	Err error `json:"-"`
}

// ResolvedReply returns a success node for a known post.
func ResolvedReply(post *Post) ReplyNode {
	return ReplyNode{
		PostID:    post.ID,
		ReplyToID: post.ReplyToID,
		Status:    ReplyStatusSuccess,
		Post:      post,
	}
}

// UnresolvedReply returns a placeholder for an ancestor that is not known yet.
func UnresolvedReply(postID string) ReplyNode {
	return ReplyNode{PostID: postID, Status: ReplyStatusNotDetermined}
}

// FailedReply returns a node whose lookup failed.
func FailedReply(postID string, err error) ReplyNode {
	return ReplyNode{PostID: postID, Status: ReplyStatusFail, Err: err}
}

// IsResolved reports whether the node carries a post.
func (n ReplyNode) IsResolved() bool {
	return n.Status == ReplyStatusSuccess && n.Post != nil
}
