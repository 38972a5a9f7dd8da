// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はユーザーが入力したリスト説明、タスク説明、コメント本文から
// マークアップを取り除き、プレーンテキストとして保存できる形にする。
// bluemondayのStrictPolicyを使い、全てのタグと属性を除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はユーザー入力テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Sanitize はタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// script, styleなど中身ごと除去される要素の内容は残らない。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() TextSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizePasses はエスケープの入れ子を剥がす回数の上限。
const maxSanitizePasses = 8

// Sanitize はタグを除去したプレーンテキストを返す。
// StrictPolicyは出力をHTMLエスケープするため、保存用に元の文字へ戻す。
// 戻した結果に&lt;b&gt;由来のタグが現れることがあるので、変化しなくなるまで繰り返す。
// 出力を再度Sanitizeしても同じ文字列になる。
func (s *textSanitizer) Sanitize(raw string) string {
	text := strings.TrimSpace(raw)
	for i := 0; i < maxSanitizePasses && text != ""; i++ {
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
		if next == text {
			break
		}
		text = next
	}
	return text
}
