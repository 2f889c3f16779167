package comment

import (
	"sort"

	"anoa.com/forumboard/internal/entity"
	"anoa.com/forumboard/internal/modules/comment/dto"
	commonDto "anoa.com/forumboard/pkg/dto"
	"github.com/google/uuid"
)

// BuildTree nests flat comment rows by parent id. A row whose parent is not
// among rows is dropped together with its replies. Every level is sorted by
// creation time, oldest first. The result is never nil.
func BuildTree(rows []entity.Comment, isBot func(uuid.UUID) bool) []*dto.CommentNode {
	nodes := make(map[uuid.UUID]*dto.CommentNode, len(rows))
	for i := range rows {
		if _, dup := nodes[rows[i].ID]; dup {
			continue
		}
		nodes[rows[i].ID] = &dto.CommentNode{
			CommentResponse: ToResponse(&rows[i], isBot),
			Replies:         []*dto.CommentNode{},
		}
	}

	roots := []*dto.CommentNode{}
	placed := make(map[uuid.UUID]bool, len(rows))
	for i := range rows {
		row := &rows[i]
		if placed[row.ID] {
			continue
		}
		placed[row.ID] = true
		node := nodes[row.ID]

		if row.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[*row.ParentID]; ok && parent != node {
			parent.Replies = append(parent.Replies, node)
		}
		// parent not visible: dropped with its subtree
	}

	sortLevel(roots)
	return roots
}

// CountNodes counts every node of a tree built by BuildTree.
func CountNodes(level []*dto.CommentNode) int64 {
	var n int64
	for _, node := range level {
		n += 1 + CountNodes(node.Replies)
	}
	return n
}

// CountVisible reports per thread how many rows BuildTree would keep: a row
// counts when its parent chain ends at a top-level row inside rows.
func CountVisible(rows []entity.Comment) map[uuid.UUID]int64 {
	byID := make(map[uuid.UUID]*entity.Comment, len(rows))
	for i := range rows {
		if _, dup := byID[rows[i].ID]; !dup {
			byID[rows[i].ID] = &rows[i]
		}
	}

	reachable := make(map[uuid.UUID]bool, len(rows))
	var walk func(id uuid.UUID, seen map[uuid.UUID]bool) bool
	walk = func(id uuid.UUID, seen map[uuid.UUID]bool) bool {
		if ok, done := reachable[id]; done {
			return ok
		}
		row, ok := byID[id]
		if !ok || seen[id] {
			return false
		}
		seen[id] = true
		ok = row.ParentID == nil || walk(*row.ParentID, seen)
		reachable[id] = ok
		return ok
	}

	counts := make(map[uuid.UUID]int64)
	for id, row := range byID {
		if walk(id, map[uuid.UUID]bool{}) {
			counts[row.ThreadID]++
		}
	}
	return counts
}

func sortLevel(level []*dto.CommentNode) {
	sort.SliceStable(level, func(i, j int) bool {
		return level[i].CreatedAt.Before(level[j].CreatedAt)
	})
	for _, n := range level {
		sortLevel(n.Replies)
	}
}

// ToResponse maps a comment row. Author.IsBot comes from isBot, which may be nil.
func ToResponse(c *entity.Comment, isBot func(uuid.UUID) bool) dto.CommentResponse {
	author := commonDto.AuthorResponse{ID: c.AuthorID, Username: c.Author.Username}
	if author.Username == "" {
		author.Username = "Unknown"
	}
	if isBot != nil {
		author.IsBot = isBot(c.AuthorID)
	}

	return dto.CommentResponse{
		ID:               c.ID,
		ThreadID:         c.ThreadID,
		ParentID:         c.ParentID,
		Content:          c.Content,
		ModerationStatus: c.ModerationStatus,
		Author:           author,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}
