// Package queue owns the durable post queue: an ordered JSON snapshot
// of posts on disk, read fresh and rewritten whole on every mutation.
package queue

import "strings"

// Post is one unit of publishable content. Text may contain inline
// Telegram HTML markup.
type Post struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Published bool   `json:"published"`
}

// DisplayTitle returns the title or a placeholder for untitled posts.
func (p Post) DisplayTitle() string {
	if strings.TrimSpace(p.Title) == "" {
		return "Untitled"
	}
	return p.Title
}

// Queue is the full ordered set of posts. Insertion order doubles as
// publish priority.
type Queue []Post

// NextUnpublished returns the first post with Published == false, in
// insertion order.
func (q Queue) NextUnpublished() (Post, bool) {
	for _, p := range q {
		if !p.Published {
			return p, true
		}
	}
	return Post{}, false
}

// NextID returns max(existing ids) + 1, or 1 for an empty queue.
// IDs stay unique for the queue's lifetime because posts are only ever
// appended, never renumbered.
func (q Queue) NextID() int {
	next := 1
	for _, p := range q {
		if p.ID >= next {
			next = p.ID + 1
		}
	}
	return next
}

// RecentTexts returns the texts of the most recent n text-bearing
// posts, oldest first. Used as negative context for generation.
func (q Queue) RecentTexts(n int) []string {
	if n <= 0 {
		return nil
	}
	texts := make([]string, 0, len(q))
	for _, p := range q {
		if strings.TrimSpace(p.Text) != "" {
			texts = append(texts, p.Text)
		}
	}
	if len(texts) > n {
		texts = texts[len(texts)-n:]
	}
	if len(texts) == 0 {
		return nil
	}
	return texts
}

// CountUnpublished reports how many posts are still waiting.
func (q Queue) CountUnpublished() int {
	n := 0
	for _, p := range q {
		if !p.Published {
			n++
		}
	}
	return n
}
