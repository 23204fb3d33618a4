package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はポータル由来の自由入力テキストからマークアップを除去する。
// 学校の住所やWebサイトなど、管理者が入力した値をプレーンテキストとして返すために使う。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はすべてのタグを除去するポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizePasses はエンティティのデコードとタグ除去を繰り返す上限回数。
const maxSanitizePasses = 4

// SanitizeText はタグを除去し、エンティティを通常の文字に戻したテキストを返す。
// 出力はJSONとして返すため、HTMLエスケープした形では保持しない。
// デコードによってタグが現れた場合は、結果が変わらなくなるまで除去を繰り返す。
func (s *TextSanitizer) SanitizeText(raw string) string {
	text := strings.TrimSpace(raw)
	for i := 0; i < maxSanitizePasses; i++ {
		if text == "" {
			return ""
		}
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
		if next == text {
			return text
		}
		text = next
	}
	// 収束しない入力はエスケープした形のまま返す
	return strings.TrimSpace(s.policy.Sanitize(text))
}
