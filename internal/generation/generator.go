// Package generation produces blog posts from an AI model, on demand or on a
// cron schedule.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Errors returned by generators and the Service.
var (
	// ErrInvalidConfig indicates the generator was configured incorrectly.
	ErrInvalidConfig = errors.New("invalid generation configuration")
	// ErrInvalidResponse indicates the model returned something unusable.
	ErrInvalidResponse = errors.New("invalid response from model")
	// ErrContentBlocked indicates the model refused the prompt.
	ErrContentBlocked = errors.New("content blocked by safety filters")
	// ErrTransientFailure indicates the model stayed unavailable after retries.
	ErrTransientFailure = errors.New("transient generation failure")
	// ErrInProgress is returned when a generation is already running.
	ErrInProgress = errors.New("generation already in progress")
)

// Limits a draft must respect to be stored as a post.
const (
	MinTitleLen   = 5
	MaxTitleLen   = 200
	MinContentLen = 20
	MaxSummaryLen = 500
	MaxTags       = 8
)

// Draft is the content produced for one post.
type Draft struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// Generator writes a post about a topic.
type Generator interface {
	GeneratePost(ctx context.Context, topic string) (*Draft, error)
}

// normalize trims the draft and checks it against the post limits. Overlong
// summaries and tag lists are cut rather than rejected.
func (d *Draft) normalize() error {
	d.Title = strings.TrimSpace(d.Title)
	d.Summary = strings.TrimSpace(d.Summary)
	d.Content = strings.TrimSpace(d.Content)

	if n := utf8.RuneCountInString(d.Title); n < MinTitleLen || n > MaxTitleLen {
		return fmt.Errorf("%w: title has %d characters", ErrInvalidResponse, n)
	}
	if n := utf8.RuneCountInString(d.Content); n < MinContentLen {
		return fmt.Errorf("%w: content has %d characters", ErrInvalidResponse, n)
	}
	if utf8.RuneCountInString(d.Summary) > MaxSummaryLen {
		d.Summary = string([]rune(d.Summary)[:MaxSummaryLen])
	}
	if len(d.Tags) > MaxTags {
		d.Tags = d.Tags[:MaxTags]
	}
	return nil
}
