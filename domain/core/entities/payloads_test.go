package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectMoodItemType(t *testing.T) {
	tests := []struct {
		url  string
		want MoodItemType
	}{
		{"https://www.youtube.com/watch?v=abc123", MoodYouTube},
		{"https://youtu.be/abc123", MoodYouTube},
		{"https://open.spotify.com/track/xyz", MoodMusic},
		{"https://soundcloud.com/artist/track", MoodMusic},
		{"https://cdn.example.com/ref.png", MoodImage},
		{"https://cdn.example.com/photo.JPG", MoodImage},
		{"https://cdn.example.com/anim.webp", MoodImage},
		{"https://example.com/article", MoodOther},
		{"", MoodOther},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMoodItemType(tt.url))
		})
	}
}
