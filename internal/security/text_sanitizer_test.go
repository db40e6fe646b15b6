package security

import "testing"

func TestTextSanitizer_StripsTags(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "プレーンテキストはそのまま",
			in:   "Market remains stable today",
			want: "Market remains stable today",
		},
		{
			name: "タグを除去してテキストを残す",
			in:   "<p>Tech stocks <strong>gain</strong> today</p>",
			want: "Tech stocks gain today",
		},
		{
			name: "scriptタグを除去する",
			in:   `<script>alert("x")</script>summary text`,
			want: "summary text",
		},
		{
			name: "実体参照を復元する",
			in:   "S&amp;P 500 rises",
			want: "S&P 500 rises",
		},
		{
			name: "前後の空白を除去する",
			in:   "  padded  ",
			want: "padded",
		},
		{
			name: "空文字列",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Sanitize(tt.in)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	in := "<p>Economic data shows <em>steady</em> growth</p>"

	first := s.Sanitize(in)
	second := s.Sanitize(first)
	if first != second {
		t.Errorf("冪等でない: 1回目 %q, 2回目 %q", first, second)
	}
}
