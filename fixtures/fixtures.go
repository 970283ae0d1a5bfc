// Package fixtures generates randomized, always-valid post data for seeding and request bodies.
package fixtures

import (
	"context"
	"fmt"
	"time"

	"github.com/Pallinder/go-randomdata"

	"github.com/cppla/blogposts/models"
	"github.com/cppla/blogposts/store"
)

// DefaultSeedCount is the number of posts seeded when no count is given.
const DefaultSeedCount = 10

var companySuffixes = []string{"Inc", "LLC", "Group", "Partners", "Labs", "Co", "Holdings", "Studio"}

// GeneratePostData returns a valid post payload with random fields and a past Created time.
func GeneratePostData() models.PostInput {
	return models.PostInput{
		Title:   BusinessName(),
		Content: randomdata.Paragraph(),
		Author: models.Author{
			FirstName: randomdata.FirstName(randomdata.RandomGender),
			LastName:  randomdata.LastName(),
		},
		Created: PastTime(),
	}
}

// GeneratePosts returns n payloads.
func GeneratePosts(n int) []models.PostInput {
	posts := make([]models.PostInput, n)
	for i := range posts {
		posts[i] = GeneratePostData()
	}
	return posts
}

// SeedPostData inserts n generated posts through s. A non-positive n seeds DefaultSeedCount.
func SeedPostData(ctx context.Context, s store.Store, n int) ([]models.Post, error) {
	if n <= 0 {
		n = DefaultSeedCount
	}
	posts, err := s.InsertMany(ctx, GeneratePosts(n))
	if err != nil {
		return nil, fmt.Errorf("seed %d posts: %w", n, err)
	}
	return posts, nil
}

// BusinessName looks like "Quiet Harbor Labs".
func BusinessName() string {
	return fmt.Sprintf("%s %s %s",
		capitalize(randomdata.Adjective()),
		capitalize(randomdata.Noun()),
		randomdata.StringSample(companySuffixes...),
	)
}

// PastTime returns a millisecond-precision UTC time between one hour and one year ago.
func PastTime() time.Time {
	ago := time.Duration(randomdata.Number(60, 365*24*60)) * time.Minute
	return models.Timestamp(time.Now().Add(-ago))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
