package httpds

import "testing"

func TestHashString_Stable(t *testing.T) {
	t.Parallel()

	const input = "https://example.com/path?x=1&y=2"
	got1 := HashString(input)
	got2 := HashString(input)

	if len(got1) != 16 {
		t.Fatalf("HashString length = %d, want 16", len(got1))
	}
	if got1 != got2 {
		t.Fatalf("HashString(%q) not stable: %q vs %q", input, got1, got2)
	}
	if HashString(input+"z") == got1 {
		t.Fatalf("HashString collided on different input")
	}
}

func TestSafeFilenameFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"tlc file", "https://s3.amazonaws.com/nyc-tlc/trip+data/yellow_tripdata_2019-01.csv", "yellow_tripdata_2019-01.csv"},
		{"query ignored", "https://example.com/green.csv?token=abc", "green.csv"},
		{"unsafe chars", "https://example.com/a%20b%3Bc.csv", "a_b_c.csv"},
		{"no path", "https://example.com", HashString("https://example.com")},
		{"root path", "https://example.com/", HashString("https://example.com/")},
		{"invalid url", ":// not a url", HashString(":// not a url")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SafeFilenameFromURL(tt.raw); got != tt.want {
				t.Fatalf("SafeFilenameFromURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
