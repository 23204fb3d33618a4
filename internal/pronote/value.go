package pronote

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/schoolprofile/internal/model"
)

// dateLayouts はポータルが返す日付文字列の書式。時刻付きを優先する。
var dateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// Wrapped はポータルの型付き値 {_T, V} を表す。
// リスト・要素・日付・ドメインのいずれもこの形式で送られてくる。
type Wrapped[T any] struct {
	Type int `json:"_T"`
	V    T   `json:"V"`
}

// Value は包まれた値を返す。値が存在しない場合はゼロ値を返す。
func (w *Wrapped[T]) Value() T {
	if w == nil {
		var zero T
		return zero
	}
	return w.V
}

// Resource はポータル共通の {N, L, G} リソース形式。
type Resource struct {
	N string `json:"N"` // ID
	L string `json:"L"` // 表示名
	G int    `json:"G"` // 種別
}

// ToEntity はリソースを正規化されたEntityに変換する。
// 呼び出し側で追加フィールドを持つ場合はEntityを埋め込んだ型を組み立てる。
func ToEntity(r Resource) model.Entity {
	return model.Entity{
		ID:   r.N,
		Name: r.L,
		Kind: r.G,
	}
}

// Element は包まれた単一リソースを正規化する。存在しない場合はnilを返す。
func Element(w *Wrapped[Resource]) *model.Entity {
	if w == nil {
		return nil
	}
	e := ToEntity(w.V)
	return &e
}

// Entities は包まれたリソースのリストを正規化する。
// 存在しない場合は空のスライスを返す。
func Entities(w *Wrapped[[]Resource]) []model.Entity {
	return Map(w, ToEntity)
}

// Map は包まれたリストの各要素にfnを適用する。
// 存在しない場合は空のスライスを返す。
func Map[T, R any](w *Wrapped[[]T], fn func(T) R) []R {
	items := w.Value()
	result := make([]R, 0, len(items))
	for _, item := range items {
		result = append(result, fn(item))
	}
	return result
}

// MapList は包まれたリストの各要素にfnを適用する。
// 存在しない場合は空のスライスを返す。fnが失敗した時点で処理を打ち切る。
// MalformedPayloadErrorのパスには要素の位置 "[i]" を前置する。
func MapList[T, R any](w *Wrapped[[]T], fn func(T) (R, error)) ([]R, error) {
	items := w.Value()
	result := make([]R, 0, len(items))
	for i, item := range items {
		mapped, err := fn(item)
		if err != nil {
			var mp *model.MalformedPayloadError
			if errors.As(err, &mp) {
				return nil, &model.MalformedPayloadError{Path: elementPath(i, mp.Path), Err: mp.Err}
			}
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		result = append(result, mapped)
	}
	return result, nil
}

func elementPath(i int, path string) string {
	if path == "" {
		return fmt.Sprintf("[%d]", i)
	}
	if strings.HasPrefix(path, "[") {
		return fmt.Sprintf("[%d]%s", i, path)
	}
	return fmt.Sprintf("[%d].%s", i, path)
}

// ParseDate はポータルの日付文字列をlocのタイムゾーンで解釈する。
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid portal date: %q", s)
}

// MaxDomainSize は1つのドメインを展開したときの要素数の上限。
// ドメインは週番号や規則番号を表し、この上限を超える値は不正とみなす。
const MaxDomainSize = 4096

// ParseDomain はポータルのドメイン表記 "[1..3,5]" を整数の列に展開する。
// 空のドメイン "[]" および空文字列は空のスライスになる。
// 展開後の要素数がMaxDomainSizeを超える場合はエラーを返す。
func ParseDomain(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	values := []int{}
	if s == "" {
		return values, nil
	}

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "..")
		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid domain bound %q: %w", lo, err)
		}
		to := from
		if isRange {
			to, err = strconv.Atoi(hi)
			if err != nil {
				return nil, fmt.Errorf("invalid domain bound %q: %w", hi, err)
			}
		}
		if to < from {
			return nil, fmt.Errorf("invalid domain range %q", part)
		}
		// to >= from なので差は符号なしで正しく求まる
		if uint64(to)-uint64(from) >= uint64(MaxDomainSize-len(values)) {
			return nil, fmt.Errorf("domain exceeds %d values at %q", MaxDomainSize, part)
		}
		for v := from; v <= to; v++ {
			values = append(values, v)
		}
	}
	return values, nil
}

// Domain は包まれたドメイン値を展開する。存在しない場合は空のスライスを返す。
func Domain(w *Wrapped[string]) ([]int, error) {
	if w == nil {
		return []int{}, nil
	}
	return ParseDomain(w.V)
}
