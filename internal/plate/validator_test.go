package plate

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	v := NewValidator(500, 6)

	tests := []struct {
		name   string
		region Region
		text   string
		want   Verdict
	}{
		{
			name:   "mixed plate with spaces",
			region: Region{Width: 30, Height: 30},
			text:   "AB 1234 ",
			want:   Accepted,
		},
		{
			name:   "dashes are stripped before counting",
			region: Region{Width: 50, Height: 20},
			text:   "XY-78-9Z",
			want:   Accepted,
		},
		{
			name:   "trailing newline from ocr",
			region: Region{Width: 100, Height: 30},
			text:   "KA01AB1234\n",
			want:   Accepted,
		},
		{
			name:   "digits only",
			region: Region{Width: 200, Height: 60},
			text:   "12345",
			want:   RejectedComposition,
		},
		{
			name:   "letters only",
			region: Region{Width: 200, Height: 60},
			text:   "ABCDEFGH",
			want:   RejectedComposition,
		},
		{
			name:   "five alphanumerics",
			region: Region{Width: 200, Height: 60},
			text:   "AB123",
			want:   RejectedLength,
		},
		{
			name:   "punctuation does not count toward length",
			region: Region{Width: 200, Height: 60},
			text:   "A-1-B-2-C",
			want:   RejectedLength,
		},
		{
			name:   "small region with perfect text",
			region: Region{Width: 20, Height: 20},
			text:   "AB1234",
			want:   RejectedArea,
		},
		{
			name:   "area exactly at threshold",
			region: Region{Width: 25, Height: 20},
			text:   "AB1234",
			want:   Accepted,
		},
		{
			name:   "empty text",
			region: Region{Width: 200, Height: 60},
			text:   "",
			want:   RejectedComposition,
		},
		{
			name:   "whitespace only",
			region: Region{Width: 200, Height: 60},
			text:   " \n\t",
			want:   RejectedComposition,
		},
		{
			name:   "unicode noise around a short read",
			region: Region{Width: 200, Height: 60},
			text:   "§§ A1 ¶¶",
			want:   RejectedLength,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(tt.region, tt.text)
			if got != tt.want {
				t.Errorf("Validate(%+v, %q) = %v, want %v", tt.region, tt.text, got, tt.want)
			}
			if got.Accepted() != (tt.want == Accepted) {
				t.Errorf("Accepted() = %v for verdict %v", got.Accepted(), got)
			}
		})
	}
}

func TestValidateSmallRegionAlwaysRejected(t *testing.T) {
	v := NewValidator(500, 6)
	texts := []string{"", "AB1234", "XY-78-9Z", "ABCDEFG123456", "12345"}

	for w := 0; w <= 30; w++ {
		for h := 0; h <= 30; h++ {
			r := Region{Width: w, Height: h}
			if r.Area() >= v.MinArea {
				continue
			}
			for _, text := range texts {
				if v.Validate(r, text).Accepted() {
					t.Fatalf("Validate(%+v, %q) accepted a region below the minimum area", r, text)
				}
			}
		}
	}
}

func TestValidateSingleClassTextAlwaysRejected(t *testing.T) {
	v := NewValidator(500, 6)
	regions := []Region{{Width: 25, Height: 20}, {Width: 640, Height: 480}}
	texts := []string{
		"1234567890",
		strings.Repeat("9", 40),
		"ABCDEFGHIJ",
		"plate number",
	}

	for _, r := range regions {
		for _, text := range texts {
			if got := v.Validate(r, text); got != RejectedComposition {
				t.Errorf("Validate(%+v, %q) = %v, want %v", r, text, got, RejectedComposition)
			}
		}
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	v := NewValidator(500, 6)
	r := Region{X: 10, Y: 10, Width: 40, Height: 25}

	for _, text := range []string{"AB 1234 ", "AB123", "12345", "XY-78-9Z"} {
		first := v.Validate(r, text)
		second := v.Validate(r, text)
		if first != second {
			t.Errorf("Validate(%q) returned %v then %v", text, first, second)
		}
	}
}

func TestAlnumCount(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"AB 1234 ", 6},
		{"XY-78-9Z", 8},
		{"--..!!", 0},
		{"Ä1ß2", 4},
	}

	for _, tt := range tests {
		if got := AlnumCount(tt.text); got != tt.want {
			t.Errorf("AlnumCount(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestHasLetterAndDigit(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"A1", true},
		{"1A", true},
		{"AAAA", false},
		{"1111", false},
		{"", false},
		{"-_-", false},
	}

	for _, tt := range tests {
		if got := HasLetterAndDigit(tt.text); got != tt.want {
			t.Errorf("HasLetterAndDigit(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestNewValidatorDefaults(t *testing.T) {
	v := NewValidator(0, -1)
	if v.MinArea != DefaultMinArea {
		t.Errorf("MinArea = %d, want %d", v.MinArea, DefaultMinArea)
	}
	if v.MinAlnum != DefaultMinAlnum {
		t.Errorf("MinAlnum = %d, want %d", v.MinAlnum, DefaultMinAlnum)
	}
}

func TestZeroVerdictIsNotAccepted(t *testing.T) {
	var v Verdict
	if v.Accepted() {
		t.Error("zero Verdict reports Accepted")
	}
	if got := v.String(); got != "undecided" {
		t.Errorf("zero Verdict String() = %q, want %q", got, "undecided")
	}
}

func BenchmarkValidate(b *testing.B) {
	v := NewValidator(500, 6)
	r := Region{Width: 120, Height: 40}
	text := "XY-78-9Z\n"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = v.Validate(r, text)
	}
}
