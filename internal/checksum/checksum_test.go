package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("")
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("different input, same digest")
	}
}

func TestFromIfMatch(t *testing.T) {
	tests := []struct {
		header, want string
	}{
		{"", ""},
		{"*", ""},
		{`"abc"`, "abc"},
		{`W/"abc"`, "abc"},
		{" abc ", "abc"},
		{ETag("abc"), "abc"},
	}
	for _, tt := range tests {
		if got := FromIfMatch(tt.header); got != tt.want {
			t.Errorf("FromIfMatch(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
