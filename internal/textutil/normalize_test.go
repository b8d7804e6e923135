package textutil

import "testing"

func TestNormalizeTitleName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "passthrough", in: "Solo Leveling", want: "Solo Leveling"},
		{name: "underscores", in: "solo_leveling", want: "Solo Leveling"},
		{name: "whitespace runs", in: "  Tower   of \t God ", want: "Tower Of God"},
		{name: "preserves caps", in: "JoJo Part 7", want: "JoJo Part 7"},
		{name: "control chars dropped", in: "Berserk\x00\x1f", want: "Berserk"},
		{name: "empty", in: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeTitleName(tt.in); got != tt.want {
				t.Fatalf("NormalizeTitleName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
