package profile

import (
	"strconv"
	"strings"
	"time"
)

// CombineDateAndOffset は基準日に "8h30" 形式のオフセットを加えた時刻を返す。
//
// "h" の前を時、後を分として整数に解釈する。数値でない部分や空の部分は0として扱う。
// "h" を含まない場合は文字列全体を時として扱う。加算は壁時計上で行い、
// 日付の繰り上がりやDSTの切り替えは time.Date の正規化に任せる。
// base は値渡しのため変更されない。
func CombineDateAndOffset(base time.Time, offset string) time.Time {
	hourPart, minutePart, _ := strings.Cut(offset, "h")
	hours := parseOffsetPart(hourPart)
	minutes := parseOffsetPart(minutePart)

	return time.Date(
		base.Year(), base.Month(), base.Day(),
		base.Hour()+hours, base.Minute()+minutes, base.Second(), base.Nanosecond(),
		base.Location(),
	)
}

// parseOffsetPart は時・分の部分文字列を整数に変換する。失敗時は0。
func parseOffsetPart(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
