package models

import "time"

// Author identifies who wrote a post. Both names are required.
type Author struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Post represents a blog entry as persisted by a store.
type Post struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Author  Author    `json:"author"`
	Created time.Time `json:"created"`
}

// PostInput carries the fields needed to create a post. Created is optional.
type PostInput struct {
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Author  Author    `json:"author"`
	Created time.Time `json:"created"`
}

// Validate reports the first required field that is missing.
func (in PostInput) Validate() error {
	if in.Title == "" {
		return &ValidationError{Field: "title", Message: MsgRequired}
	}
	return in.Author.validate("author")
}

// Normalize defaults Created to now and truncates it to the precision shared by every backend.
func (in PostInput) Normalize(now time.Time) PostInput {
	if in.Created.IsZero() {
		in.Created = now
	}
	in.Created = Timestamp(in.Created)
	return in
}

// WithID builds the stored form of the input.
func (in PostInput) WithID(id string) Post {
	return Post{
		ID:      id,
		Title:   in.Title,
		Content: in.Content,
		Author:  in.Author,
		Created: in.Created,
	}
}

// PostPatch lists the fields a partial update may change. Nil fields are left untouched.
type PostPatch struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Author  *Author `json:"author,omitempty"`
}

// Validate rejects supplied values that would leave a post malformed.
func (p PostPatch) Validate() error {
	if p.Title != nil && *p.Title == "" {
		return &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if p.Author != nil {
		return p.Author.validate("author")
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p PostPatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Author == nil
}

// Apply returns post with the supplied fields replaced.
func (p PostPatch) Apply(post Post) Post {
	if p.Title != nil {
		post.Title = *p.Title
	}
	if p.Content != nil {
		post.Content = *p.Content
	}
	if p.Author != nil {
		post.Author = *p.Author
	}
	return post
}

func (a Author) validate(field string) error {
	if a.FirstName == "" {
		return &ValidationError{Field: field + ".firstName", Message: MsgRequired}
	}
	if a.LastName == "" {
		return &ValidationError{Field: field + ".lastName", Message: MsgRequired}
	}
	return nil
}

// Timestamp normalizes t to UTC with millisecond precision.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
