package fsstore

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/mesh-intelligence/seguimientos/pkg/types"
)

// CommentLogPath returns the comment log of a follow-up directory.
func CommentLogPath(followUpPath string) string {
	return filepath.Join(followUpPath, CommentsFileName)
}

// LoadCommentFile returns the comments of a follow-up directory in append
// order. A missing log is an empty log.
func LoadCommentFile(followUpPath string) ([]types.Comment, error) {
	var comments []types.Comment
	if err := readJSONFile(CommentLogPath(followUpPath), &comments); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []types.Comment{}, nil
		}
		return nil, err
	}
	if comments == nil {
		comments = []types.Comment{}
	}
	return comments, nil
}

// AppendCommentFile reads the log, appends c, and writes the whole list back.
// Two concurrent appends to the same follow-up race: both read the same
// list and the later rename drops the other comment.
func AppendCommentFile(followUpPath string, c types.Comment) error {
	comments, err := LoadCommentFile(followUpPath)
	if err != nil {
		return err
	}
	comments = append(comments, c)
	return writeJSONFile(CommentLogPath(followUpPath), comments)
}

// AppendComment implements types.CommentLog. The timestamp comes from the
// store clock.
func (s *Store) AppendComment(id types.DocumentID, n int, userID, text string) (types.Comment, error) {
	if strings.TrimSpace(userID) == "" {
		return types.Comment{}, fmt.Errorf("%w: comment author is required", types.ErrInvalidInput)
	}
	if strings.TrimSpace(text) == "" {
		return types.Comment{}, fmt.Errorf("%w: comment text is required", types.ErrInvalidInput)
	}
	path, err := s.existingFollowUp(id, n)
	if err != nil {
		return types.Comment{}, err
	}
	c := types.Comment{
		Fecha:      s.now().Format(types.CommentTimeLayout),
		Usuario:    userID,
		Comentario: text,
	}
	if err := AppendCommentFile(path, c); err != nil {
		return types.Comment{}, err
	}
	return c, nil
}

// LoadComments implements types.CommentLog.
func (s *Store) LoadComments(id types.DocumentID, n int) ([]types.Comment, error) {
	path, err := s.existingFollowUp(id, n)
	if err != nil {
		return nil, err
	}
	return LoadCommentFile(path)
}
