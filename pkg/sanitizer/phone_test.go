package sanitizer

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"+923001234567", "+923001234567"},
		{"03001234567", "+923001234567"},
		{"0300 1234567", "+923001234567"},
		{"0300-1234567", "+923001234567"},
		{"  +923001234567  ", "+923001234567"},
		{"(415) 555-0100", "+14155550100"},
		{"", ""},
		{"not a phone", ""},
	}

	for _, tt := range tests {
		if got := NormalizePhone(tt.input); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLastDigits(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"+923001234567", 10, "3001234567"},
		{"3001234567", 10, "3001234567"},
		{"567", 10, "567"},
		{"", 10, ""},
		{"+92-300-1234567", 4, "4567"},
	}

	for _, tt := range tests {
		if got := LastDigits(tt.input, tt.n); got != tt.want {
			t.Errorf("LastDigits(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}
