package profile

import (
	"github.com/hitoshi/schoolprofile/internal/model"
	"github.com/hitoshi/schoolprofile/internal/pronote"
)

// coreGradingType は「基礎期間」を表す GenreNotation の値。
const coreGradingType = 1

// NormalizeTab はタブとその子孫を再帰的に TabNode に変換する。
// 子タブがない場合 Subs は空のスライスになる。
func NormalizeTab(raw pronote.Tab) model.TabNode {
	return model.TabNode{
		ID:   raw.G,
		Subs: NormalizeTabs(raw.Subs),
	}
}

// NormalizeTabs はタブの列を順序を保って変換する。
func NormalizeTabs(raw []pronote.Tab) []model.TabNode {
	nodes := make([]model.TabNode, 0, len(raw))
	for _, tab := range raw {
		nodes = append(nodes, NormalizeTab(tab))
	}
	return nodes
}

// normalizePillarTabs はコンピテンシー評価タブを tab → levels → pillars の木に変換する。
func normalizePillarTabs(w *pronote.Wrapped[[]pronote.PillarTab]) []model.PillarTab {
	return pronote.Map(w, func(tab pronote.PillarTab) model.PillarTab {
		return model.PillarTab{
			Tab:    tab.G,
			Levels: pronote.Map(tab.Levels, normalizePillarLevel),
		}
	})
}

func normalizePillarLevel(level pronote.PillarLevel) model.PillarLevel {
	return model.PillarLevel{
		Entity:  pronote.ToEntity(level.Resource),
		Pillars: pronote.Map(level.Pillars, normalizePillar),
	}
}

func normalizePillar(p pronote.Pillar) model.Pillar {
	return model.Pillar{
		Entity:            pronote.ToEntity(p.Resource),
		IsForeignLanguage: p.EstPilierLVE,
		IsCoreSkill:       p.EstSocleCommun,
		Subject:           pronote.Element(p.Service),
	}
}

// normalizePeriodTabs は成績期間タブを変換する。
func normalizePeriodTabs(w *pronote.Wrapped[[]pronote.PeriodTab]) []model.PeriodTab {
	return pronote.Map(w, func(tab pronote.PeriodTab) model.PeriodTab {
		return model.PeriodTab{
			Tab: tab.G,
			Periods: pronote.Map(tab.Periods, func(p pronote.Period) model.Period {
				return model.Period{
					Entity:       pronote.ToEntity(p.Resource),
					IsCorePeriod: isCorePeriod(p.GenreNotation),
				}
			}),
			DefaultPeriod: pronote.Element(tab.PeriodeParDefaut),
		}
	})
}

// isCorePeriod は GenreNotation が厳密に1の場合のみtrueを返す。欠落はfalse。
func isCorePeriod(genre *int) bool {
	return genre != nil && *genre == coreGradingType
}
