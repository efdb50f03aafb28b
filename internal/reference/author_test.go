package reference

import "testing"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"John Smith 0016", "John Smith"},
		{"John Smith", "John Smith"},
		{"  Jane   Doe  ", "Jane Doe"},
		{"Agent 007b", "Agent 007b"},
		{"0001", "0001"}, // a lone token is a name, not a suffix
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := DisplayName(tt.in); got != tt.want {
				t.Errorf("DisplayName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestJoinAuthors(t *testing.T) {
	got := JoinAuthors([]string{"John Smith 0016", "", "Jane Doe 0002"})
	want := "John Smith; Jane Doe"
	if got != want {
		t.Errorf("JoinAuthors() = %q, want %q", got, want)
	}
}
