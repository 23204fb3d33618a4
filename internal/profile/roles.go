package profile

import (
	"fmt"
	"time"

	"github.com/hitoshi/schoolprofile/internal/model"
	"github.com/hitoshi/schoolprofile/internal/pronote"
)

// Fragment はロールハンドラーが生成するデータと権限の断片。
// 対応しないロールではどちらもnilになる。
type Fragment struct {
	Data           model.RoleData
	Authorizations model.RoleAuthorizations
}

// IsEmpty はデータと権限のどちらも含まない場合にtrueを返す。
func (f Fragment) IsEmpty() bool {
	return f.Data == nil && f.Authorizations == nil
}

// MergeInto は断片をプロフィールに展開する。
// 汎用フィールドは変更せず、ロールに対応する埋め込みフィールドだけを設定する。
func (f Fragment) MergeInto(p *model.UserProfile) {
	if f.Data != nil {
		f.Data.MergeInto(p)
	}
	if f.Authorizations != nil {
		f.Authorizations.MergeInto(&p.Authorizations)
	}
}

// RoleExtractor はロールごとのハンドラー。
// 取得済みのペイロードに対する純粋な射影のみを行い、I/Oは行わない。
type RoleExtractor interface {
	// Role はハンドラーが担当するロールを返す。
	Role() model.Role
	// Supported はロール固有データの抽出が実装済みかを返す。
	Supported() bool
	// Extract はペイロードからロール固有のデータと権限を取り出す。
	Extract(session model.Session, params *pronote.UserParameters) (Fragment, error)
}

// Extractors はロールからハンドラーを選択する。
type Extractors struct {
	byRole map[model.Role]RoleExtractor
}

// NewExtractors は全ロールのハンドラーを登録したExtractorsを生成する。
// loc は保護者ロールの在籍期間の日付を解釈するタイムゾーン。
func NewExtractors(students *StudentBuilder, loc *time.Location) *Extractors {
	handlers := []RoleExtractor{
		&studentExtractor{students: students},
		&parentExtractor{students: students, loc: loc},
		&administrationExtractor{},
		&pendingExtractor{role: model.RoleTeacher},
	}

	byRole := make(map[model.Role]RoleExtractor, len(handlers))
	for _, h := range handlers {
		byRole[h.Role()] = h
	}
	return &Extractors{byRole: byRole}
}

// For はロールに対応するハンドラーを返す。
// 未知のロールには空の断片を返すハンドラーを返す。
func (e *Extractors) For(role model.Role) RoleExtractor {
	if h, ok := e.byRole[role]; ok {
		return h
	}
	return otherExtractor{role: role}
}

// ExtractRoleData はセッションのロールに応じてロール固有データを抽出する。
func (e *Extractors) ExtractRoleData(session model.Session, params *pronote.UserParameters) (Fragment, error) {
	return e.For(session.Role).Extract(session, params)
}

// studentExtractor は生徒ロールのハンドラー。
type studentExtractor struct {
	students *StudentBuilder
}

func (x *studentExtractor) Role() model.Role { return model.RoleStudent }
func (x *studentExtractor) Supported() bool  { return true }

func (x *studentExtractor) Extract(session model.Session, params *pronote.UserParameters) (Fragment, error) {
	var res pronote.StudentResource
	if err := params.DecodeResource(&res); err != nil {
		return Fragment{}, err
	}
	aut, err := params.RequireAuthorizations()
	if err != nil {
		return Fragment{}, err
	}

	student, err := x.students.BuildStudent(session, res)
	if err != nil {
		return Fragment{}, atPath("ressource", err)
	}

	return Fragment{
		Data: &student,
		Authorizations: &model.StudentAuthorizations{
			MaxUserWorkFileSize: aut.TailleMaxRenduTafEleve,
		},
	}, nil
}

// parentExtractor は保護者ロールのハンドラー。
// 子ごとに生徒データを組み立て、在籍期間を時刻の組に変換する。
type parentExtractor struct {
	students *StudentBuilder
	loc      *time.Location
}

func (x *parentExtractor) Role() model.Role { return model.RoleParent }
func (x *parentExtractor) Supported() bool  { return true }

func (x *parentExtractor) Extract(session model.Session, params *pronote.UserParameters) (Fragment, error) {
	var res pronote.ParentResource
	if err := params.DecodeResource(&res); err != nil {
		return Fragment{}, err
	}
	aut, err := params.RequireAuthorizations()
	if err != nil {
		return Fragment{}, err
	}
	compte, err := aut.RequireCompte()
	if err != nil {
		return Fragment{}, err
	}
	if res.Children == nil {
		return Fragment{}, &model.MalformedPayloadError{Path: "ressource.listeRessources"}
	}

	students := make([]model.Student, 0, len(res.Children))
	for i, child := range res.Children {
		prefix := fmt.Sprintf("ressource.listeRessources[%d]", i)

		student, err := x.students.BuildStudent(session, child.StudentResource)
		if err != nil {
			return Fragment{}, atPath(prefix, err)
		}
		student.Sessions, err = pronote.MapList(child.Sessions, x.timeSpan)
		if err != nil {
			return Fragment{}, atPath(prefix+".listeSessions", err)
		}
		students = append(students, student)
	}

	data := &model.ParentData{
		IsDelegate:             res.EstDelegue,
		IsBDMember:             res.EstMembreCA,
		CanDiscussWithManagers: res.AvecDiscussionResponsables,
		AbsencesReasons:        pronote.Entities(params.AbsenceReasons),
		DelaysReasons:          pronote.Entities(params.DelayReasons),
		ClassDelegates:         pronote.Entities(res.ListeClassesDelegue),
		Students:               students,
	}

	return Fragment{
		Data: data,
		Authorizations: &model.ParentAuthorizations{
			StaffDiscussion:     aut.AvecDiscussionPersonnels,
			ParentsDiscussion:   aut.AvecDiscussionParents,
			EditStudentPassword: compte.AvecSaisieMotDePasseEleve,
			EditCoordinates:     compte.AvecSaisieInfosPersoCoordonnees,
			EditAuthorizations:  compte.AvecSaisieInfosPersoAutorisations,
		},
	}, nil
}

// timeSpan は在籍期間の日付と開始・終了時刻から時刻の組を作る。
// 開始と終了は同じ基準日からそれぞれ独立に導出する。
func (x *parentExtractor) timeSpan(entry pronote.SessionEntry) (model.TimeSpan, error) {
	if entry.Date == nil {
		return model.TimeSpan{}, &model.MalformedPayloadError{Path: "date"}
	}
	base, err := pronote.ParseDate(entry.Date.V, x.loc)
	if err != nil {
		return model.TimeSpan{}, &model.MalformedPayloadError{Path: "date", Err: err}
	}

	return model.TimeSpan{
		From: CombineDateAndOffset(base, entry.StrHeureDebut),
		To:   CombineDateAndOffset(base, entry.StrHeureFin),
	}, nil
}

// administrationExtractor は事務職員ロールのハンドラー。
type administrationExtractor struct{}

func (x *administrationExtractor) Role() model.Role { return model.RoleAdministration }
func (x *administrationExtractor) Supported() bool  { return true }

func (x *administrationExtractor) Extract(_ model.Session, params *pronote.UserParameters) (Fragment, error) {
	var res pronote.AdministrationResource
	if err := params.DecodeResource(&res); err != nil {
		return Fragment{}, err
	}
	aut, err := params.RequireAuthorizations()
	if err != nil {
		return Fragment{}, err
	}
	intendance, err := aut.RequireIntendance()
	if err != nil {
		return Fragment{}, err
	}
	cours, err := aut.RequireCours()
	if err != nil {
		return Fragment{}, err
	}
	compte, err := aut.RequireCompte()
	if err != nil {
		return Fragment{}, err
	}

	data := &model.AdministrationData{
		ListeProfesseurs: pronote.Entities(res.ListeProfesseurs),
		ListeClasses:     pronote.Entities(params.Classes),
	}

	auths := &model.AdministrationAuthorizations{
		ConsulterIdentiteEleve:                   aut.ConsulterIdentiteEleve,
		ConsulterFichesResponsables:              aut.ConsulterFichesResponsables,
		ConsulterPhotosEleves:                    aut.ConsulterPhotosEleves,
		AvecDiscussionParents:                    aut.AvecDiscussionParents,
		AvecMessageInstantane:                    aut.AvecMessageInstantane,
		EstDestinataireChat:                      aut.EstDestinataireChat,
		AvecContactVS:                            aut.AvecContactVS,
		LancerAlertesPPMS:                        aut.LancerAlertesPPMS,
		AvecDiscussionAvancee:                    aut.AvecDiscussionAvancee,
		AvecSaisieParcoursPedagogique:            aut.AvecSaisieParcoursPedagogique,
		AvecSaisieAppelEtVS:                      aut.AvecSaisieAppelEtVS,
		AvecSaisieCours:                          aut.AvecSaisieCours,
		AvecSaisieAbsenceRepas:                   aut.AvecSaisieAbsenceRepas,
		AvecSaisieHorsCours:                      aut.AvecSaisieHorsCours,
		AvecSaisieSurGrille:                      aut.AvecSaisieSurGrille,
		AvecSaisieSurGrilleAppelProf:             aut.AvecSaisieSurGrilleAppelProf,
		AvecSaisieAbsence:                        aut.AvecSaisieAbsence,
		AvecSaisieRetard:                         aut.AvecSaisieRetard,
		AvecSaisieMotifRetard:                    aut.AvecSaisieMotifRetard,
		AvecSaisiePassageInfirmerie:              aut.AvecSaisiePassageInfirmerie,
		AvecSaisieExclusion:                      aut.AvecSaisieExclusion,
		AvecSaisiePunition:                       aut.AvecSaisiePunition,
		AvecAccesAuxEvenementsAutresCours:        aut.AvecAccesAuxEvenementsAutresCours,
		AvecSaisieAbsencesToutesPermanences:      aut.AvecSaisieAbsencesToutesPermanences,
		AvecSaisieAbsencesGrilleAbsencesRepas:    aut.AvecSaisieAbsencesGrilleAbsencesRepas,
		AvecSaisieAbsencesGrilleAbsencesInternat: aut.AvecSaisieAbsencesGrilleAbsencesInternat,
		AvecSuiviAbsenceRetard:                   aut.AvecSuiviAbsenceRetard,
		DateSaisieAbsence:                        aut.DateSaisieAbsence,
		AvecSaisieEvaluations:                    aut.AvecSaisieEvaluations,
		AutoriserCommunicationsToutesClasses:     aut.AutoriserCommunicationsToutesClasses,
		AvecSaisieAgenda:                         aut.AvecSaisieAgenda,
		AvecSaisieActualite:                      aut.AvecSaisieActualite,
		AvecPublicationListeDiffusion:            aut.AvecPublicationListeDiffusion,
		PublierDossiersVS:                        aut.PublierDossiersVS,
		ConsulterMemosEleve:                      aut.ConsulterMemosEleve,
		SaisirMemos:                              aut.SaisirMemos,
		AvecSaisieDispense:                       aut.AvecSaisieDispense,
		Incidents:                                aut.Incidents,
		AvecPublicationPunitions:                 aut.AvecPublicationPunitions,
		AvecAccesPunitions:                       aut.AvecAccesPunitions,
		AvecSaisiePunitions:                      aut.AvecSaisiePunitions,
		AvecCreerMotifIncidentPunitionSanction:   aut.AvecCreerMotifIncidentPunitionSanction,
		Intendance: model.IntendanceAuthorizations{
			AvecDemandeTravauxIntendance:   intendance.AvecDemandeTravauxIntendance,
			AvecExecutionTravauxIntendance: intendance.AvecExecutionTravauxIntendance,
		},
		Services:                                aut.Services,
		AutoriseAConsulterPhotosDeTousLesEleves: aut.AutoriseAConsulterPhotosDeTousLesEleves,
		Cours: model.CoursAuthorizations{
			AvecReservationCreneauxLibres:   cours.AvecReservationCreneauxLibres,
			ModificationNonLimiteAuxSemaine: cours.ModificationNonLimiteAuxSemaine,
			AvecMateriel:                    cours.AvecMateriel,
			AvecFicheCoursConseil:           cours.AvecFicheCoursConseil,
			AfficherElevesDetachesDansCours: cours.AfficherElevesDetachesDansCours,
		},
		AvecSaisieDocumentsCasiers: aut.AvecSaisieDocumentsCasiers,
		Compte: model.CompteAuthorizations{
			AvecSaisieInfosPersoCoordonnees:   compte.AvecSaisieInfosPersoCoordonnees,
			AvecSaisieInfosPersoAutorisations: compte.AvecSaisieInfosPersoAutorisations,
		},
	}

	return Fragment{Data: data, Authorizations: auths}, nil
}

// pendingExtractor はロール固有データの抽出が未実装のロール（教員）のハンドラー。
// 空の断片を返し、Supported がfalseになることで呼び出し側が欠落を検知できる。
// TODO: 教員ロールの ressource（担当クラス・担当科目）の抽出を実装する。
type pendingExtractor struct {
	role model.Role
}

func (x *pendingExtractor) Role() model.Role { return x.role }
func (x *pendingExtractor) Supported() bool  { return false }

func (x *pendingExtractor) Extract(model.Session, *pronote.UserParameters) (Fragment, error) {
	return Fragment{}, nil
}

// otherExtractor は上記以外のロールのハンドラー。空の断片を返すのは意図どおり。
type otherExtractor struct {
	role model.Role
}

func (x otherExtractor) Role() model.Role { return x.role }
func (x otherExtractor) Supported() bool  { return true }

func (x otherExtractor) Extract(model.Session, *pronote.UserParameters) (Fragment, error) {
	return Fragment{}, nil
}
