package imagesync

import "testing"

func TestGuessMimeType(t *testing.T) {
	cases := map[string]string{
		"https://img.example.com/photo.jpg":  "image/jpeg",
		"https://img.example.com/photo.jpeg": "image/jpeg",
		"https://img.example.com/photo.png":  "image/png",
		"https://img.example.com/photo.webp": "image/webp",
		"https://img.example.com/photo":      "application/octet-stream",
	}
	for url, want := range cases {
		if got := guessMimeType(url); got != want {
			t.Errorf("guessMimeType(%q) = %q, want %q", url, got, want)
		}
	}
}
