package security

import (
	"strings"
	"testing"
)

func TestSanitize_StripsMarkup(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "プレーンテキストはそのまま",
			input: "牛乳を買う",
			want:  "牛乳を買う",
		},
		{
			name:  "前後の空白を除去する",
			input: "  memo \n",
			want:  "memo",
		},
		{
			name:  "装飾タグは中身を残して除去する",
			input: "<b>重要</b>: <em>明日まで</em>",
			want:  "重要: 明日まで",
		},
		{
			name:  "scriptタグは中身ごと除去する",
			input: `hello<script>alert("xss")</script>`,
			want:  "hello",
		},
		{
			name:  "イベント属性付きの要素も除去する",
			input: `<img src="x" onerror="alert(1)">caption`,
			want:  "caption",
		},
		{
			name:  "記号はエスケープされずに残る",
			input: "Tom & Jerry's \"plan\"",
			want:  "Tom & Jerry's \"plan\"",
		},
		{
			name:  "空文字列",
			input: "",
			want:  "",
		},
		{
			name:  "タグだけの入力は空になる",
			input: "<p></p>",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitize_ResanitizeIsStable はサニタイズ済みテキストを再度通しても変化しないことを検証する。
func TestSanitize_ResanitizeIsStable(t *testing.T) {
	sanitizer := NewTextSanitizer()
	input := `<div onclick="x()">Review <a href="javascript:alert(1)">PR</a></div>`

	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(first)
	if first != second {
		t.Errorf("Sanitize is not stable: %q then %q", first, second)
	}
	if strings.Contains(first, "<") {
		t.Errorf("markup remained: %q", first)
	}
}

// TestSanitize_EscapedMarkupIsIdempotent はエンティティで書かれたタグが
// 保存後にタグとして復活せず、二度目のサニタイズで結果が変わらないことを検証する。
func TestSanitize_EscapedMarkupIsIdempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()

	inputs := []string{
		"use &lt;b&gt; tags",
		"&lt;script&gt;alert(1)&lt;/script&gt;done",
		"&amp;lt;i&amp;gt;nested&amp;lt;/i&amp;gt;",
		"a &lt; b &amp;&amp; c &gt; d",
		"Tom &amp; Jerry",
		"1 < 2",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			once := sanitizer.Sanitize(input)
			twice := sanitizer.Sanitize(once)
			if once != twice {
				t.Errorf("Sanitize(Sanitize(%q)) = %q, want %q", input, twice, once)
			}
			for _, tag := range []string{"<b>", "<script", "<i>"} {
				if strings.Contains(once, tag) {
					t.Errorf("Sanitize(%q) = %q, contains live markup %q", input, once, tag)
				}
			}
		})
	}
}

func TestSanitize_KeepsComparisonOperators(t *testing.T) {
	sanitizer := NewTextSanitizer()

	if got := sanitizer.Sanitize("1 < 2"); got != "1 < 2" {
		t.Errorf("Sanitize(%q) = %q, want %q", "1 < 2", got, "1 < 2")
	}
	if got := sanitizer.Sanitize("Tom &amp; Jerry"); got != "Tom & Jerry" {
		t.Errorf("Sanitize(%q) = %q, want %q", "Tom &amp; Jerry", got, "Tom & Jerry")
	}
}
