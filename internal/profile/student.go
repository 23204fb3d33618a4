package profile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/schoolprofile/internal/model"
	"github.com/hitoshi/schoolprofile/internal/pronote"
)

// avatarFileName は生徒写真の論理ファイル名。
const avatarFileName = "photo.jpg"

// FileReferenceBuilder はリソースに紐づくファイルの参照を生成する。
type FileReferenceBuilder interface {
	BuildFileReference(session model.Session, id, name string) model.FileReference
}

// StudentBuilder は生徒リソースを model.Student に変換する。
// 生徒ロールと保護者ロール（子ごと）の両方から使われる。
type StudentBuilder struct {
	files FileReferenceBuilder
}

// NewStudentBuilder はStudentBuilderを生成する。
func NewStudentBuilder(files FileReferenceBuilder) *StudentBuilder {
	return &StudentBuilder{files: files}
}

// BuildStudent は生徒リソースを変換する。
// avatar は avecPhoto がtrueの場合のみ設定される。
// classeDEleve が欠落している場合は MalformedPayloadError を返す。
func (b *StudentBuilder) BuildStudent(session model.Session, res pronote.StudentResource) (model.Student, error) {
	if res.Class == nil {
		return model.Student{}, &model.MalformedPayloadError{Path: "classeDEleve"}
	}

	student := model.Student{
		Entity: pronote.ToEntity(res.Resource),
		StudentData: model.StudentData{
			Establishment: pronote.Element(res.Establishment),
			StudentClass:  pronote.ToEntity(*res.Class),
			ClassHistory: pronote.Map(res.ClassHistory, func(h pronote.ClassHistoryResource) model.ClassHistoryEntry {
				return model.ClassHistoryEntry{
					Entity:     pronote.ToEntity(h.Resource),
					HadMarks:   h.AvecNote,
					HadOptions: h.AvecFiliere,
				}
			}),
			Groups:      pronote.Entities(res.Groups),
			TabsPillars: normalizePillarTabs(res.PillarTabs),
			TabsPeriods: normalizePeriodTabs(res.PeriodTabs),
		},
	}

	if res.HasPhoto {
		avatar := b.files.BuildFileReference(session, res.N, avatarFileName)
		student.Avatar = &avatar
	}

	return student, nil
}

// atPath はMalformedPayloadErrorのパスに親パスを付与する。それ以外のエラーはそのまま返す。
// 要素の位置 "[i]" で始まるパスはドットを挟まずに連結する。
func atPath(prefix string, err error) error {
	var mp *model.MalformedPayloadError
	if !errors.As(err, &mp) {
		return err
	}
	if strings.HasPrefix(mp.Path, "[") {
		return &model.MalformedPayloadError{Path: prefix + mp.Path, Err: mp.Err}
	}
	return &model.MalformedPayloadError{Path: fmt.Sprintf("%s.%s", prefix, mp.Path), Err: mp.Err}
}
