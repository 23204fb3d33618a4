package model

import (
	"encoding/json"
	"time"
)

// Entity はポータル共通の {id, label, kind} リソースを正規化したもの。
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind int    `json:"kind"`
}

// FileReference はリソースに紐づくファイルのダウンロード先を表す。
type FileReference struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// UserProfile はユーザーパラメータ取得結果を正規化した最終的なプロフィール。
//
// ロール固有データは埋め込みポインタとして保持する。ロールハンドラーが
// 設定した1つだけが非nilとなり、そのフィールドがJSONのトップレベルに展開される。
type UserProfile struct {
	Entity
	*StudentData
	*ParentData
	*AdministrationData

	EstablishmentsInfo    []EstablishmentInfo   `json:"establishmentsInfo"`
	UserSettings          UserSettings          `json:"userSettings"`
	SessionAuthorizations SessionAuthorizations `json:"sessionAuthorizations"`
	Authorizations        Authorizations        `json:"authorizations"`
	MinPasswordSize       int                   `json:"minPasswordSize"`
	MaxPasswordSize       int                   `json:"maxPasswordSize"`
	PasswordRules         []int                 `json:"passwordRules"`
	KioskAccess           bool                  `json:"kioskAccess"`
	Tabs                  []TabNode             `json:"tabs"`
	HiddenTabs            []int                 `json:"hiddenTabs"`
	NotifiedTabs          []int                 `json:"notifiedTabs"`
}

// EstablishmentInfo は所属校の連絡先情報。
type EstablishmentInfo struct {
	Entity
	LogoID      int       `json:"logoID"`
	Address     [2]string `json:"address"`
	PostalCode  string    `json:"postalCode"`
	PostalLabel string    `json:"postalLabel"`
	City        string    `json:"city"`
	Province    string    `json:"province"`
	Country     string    `json:"country"`
	Website     string    `json:"website"`
}

// UserSettings はユーザー設定の射影。値の検証は行わない。
type UserSettings struct {
	Version           int               `json:"version"`
	Timetable         TimetableSettings `json:"timetable"`
	Theme             int               `json:"theme"`
	UnreadDiscussions int               `json:"unreadDiscussions"`
}

// TimetableSettings は時間割の表示フラグ。
type TimetableSettings struct {
	DisplayCanceledLessons bool `json:"displayCanceledLessons"`
	InvertAxis             bool `json:"invertAxis"`
	InvertWeeklyPlanAxis   bool `json:"invertWeeklyPlanAxis"`
	InvertDayPlanAxis      bool `json:"invertDayPlanAxis"`
	InvertDay2PlanAxis     bool `json:"invertDay2PlanAxis"`
	DayCount               int  `json:"dayCount"`
	ResourceCount          int  `json:"resourceCount"`
	DaysInTimetable        int  `json:"daysInTimetable"`
	SequenceCount          int  `json:"sequenceCount"`
}

// SessionAuthorizations はセッション単位で有効な機能フラグ。
type SessionAuthorizations struct {
	TwitterManagement   bool `json:"twitterManagement"`
	ExpandedAttestation bool `json:"expandedAttestation"`
}

// TabNode はナビゲーションタブの木構造。Subs はnilにならない。
type TabNode struct {
	ID   int       `json:"id"`
	Subs []TabNode `json:"subs"`
}

// TimeSpan は同じ基準日から導出した開始・終了時刻の組。
type TimeSpan struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Student は生徒1人分のデータ。保護者ロールでは子ごとに Sessions が付与される。
type Student struct {
	Entity
	StudentData
	Sessions []TimeSpan `json:"sessions,omitempty"`
}

// StudentData は生徒リソースから得られるロール固有データ。
type StudentData struct {
	Establishment *Entity             `json:"establishment"`
	Avatar        *FileReference      `json:"avatar,omitempty"`
	StudentClass  Entity              `json:"studentClass"`
	ClassHistory  []ClassHistoryEntry `json:"classHistory"`
	Groups        []Entity            `json:"groups"`
	TabsPillars   []PillarTab         `json:"tabsPillars"`
	TabsPeriods   []PeriodTab         `json:"tabsPeriods"`
}

// ClassHistoryEntry は過去に所属したクラス。
type ClassHistoryEntry struct {
	Entity
	HadMarks   bool `json:"hadMarks"`
	HadOptions bool `json:"hadOptions"`
}

// PillarTab はコンピテンシー評価タブ。levels → pillars の木を持つ。
type PillarTab struct {
	Tab    int           `json:"tab"`
	Levels []PillarLevel `json:"levels"`
}

type PillarLevel struct {
	Entity
	Pillars []Pillar `json:"pillars"`
}

// Pillar の Subject は元データに科目がある場合のみ設定される。
type Pillar struct {
	Entity
	IsForeignLanguage bool    `json:"isForeignLanguage"`
	IsCoreSkill       bool    `json:"isCoreSkill"`
	Subject           *Entity `json:"subject,omitempty"`
}

// PeriodTab は成績期間タブ。
type PeriodTab struct {
	Tab           int      `json:"tab"`
	Periods       []Period `json:"periods"`
	DefaultPeriod *Entity  `json:"defaultPeriod"`
}

type Period struct {
	Entity
	IsCorePeriod bool `json:"isCorePeriod"`
}

// ParentData は保護者ロールのデータ。
type ParentData struct {
	IsDelegate             bool      `json:"isDelegate"`
	IsBDMember             bool      `json:"isBDMember"`
	CanDiscussWithManagers bool      `json:"canDiscussWithManagers"`
	AbsencesReasons        []Entity  `json:"absencesReasons"`
	DelaysReasons          []Entity  `json:"delaysReasons"`
	ClassDelegates         []Entity  `json:"classDelegates"`
	Students               []Student `json:"students"`
}

// AdministrationData は事務職員ロールのデータ。キー名はポータルのものを踏襲する。
type AdministrationData struct {
	ListeProfesseurs []Entity `json:"listeProfesseurs"`
	ListeClasses     []Entity `json:"listeClasses"`
}

// RoleData はロールハンドラーが生成するデータ断片。
// MergeInto は自身に対応する埋め込みフィールドだけを設定する。
type RoleData interface {
	MergeInto(p *UserProfile)
}

// MergeInto は生徒データをプロフィールのトップレベルに展開する。
// 識別子はプロフィール自身のものと同一のため StudentData のみを設定する。
func (s *Student) MergeInto(p *UserProfile) {
	data := s.StudentData
	p.StudentData = &data
}

func (d *ParentData) MergeInto(p *UserProfile) {
	p.ParentData = d
}

func (d *AdministrationData) MergeInto(p *UserProfile) {
	p.AdministrationData = d
}

// Authorizations は汎用の権限とロール固有の権限断片を合わせたもの。
//
// マージ規則: ロール固有断片は対応する埋め込みポインタだけを設定し、
// 汎用フィールドを上書きしない。断片のJSONキーは汎用キーと重複してはならない
// （重複するとencoding/jsonでは浅い側の汎用キーが勝つため）。
type Authorizations struct {
	Discussions              bool  `json:"discussions"`
	TeachersDiscussions      bool  `json:"teachersDiscussions"`
	TimetableVisibleWeeks    []int `json:"timetableVisibleWeeks"`
	CanEditLessons           []int `json:"canEditLessons"`
	HideClassParts           bool  `json:"hideClassParts"`
	MaxEstablishmentFileSize int   `json:"maxEstablishmentFileSize"`
	EditPassword             bool  `json:"editPassword"`
	EditPersonalInfo         bool  `json:"editPersonalInfo"`
	CanPrint                 bool  `json:"canPrint"`

	*StudentAuthorizations
	*ParentAuthorizations
	*AdministrationAuthorizations
}

// RoleAuthorizations はロールハンドラーが生成する権限断片。
type RoleAuthorizations interface {
	MergeInto(a *Authorizations)
}

type StudentAuthorizations struct {
	MaxUserWorkFileSize int `json:"maxUserWorkFileSize"`
}

func (s *StudentAuthorizations) MergeInto(a *Authorizations) {
	a.StudentAuthorizations = s
}

type ParentAuthorizations struct {
	StaffDiscussion     bool `json:"staffDiscussion"`
	ParentsDiscussion   bool `json:"parentsDiscussion"`
	EditStudentPassword bool `json:"editStudentPassword"`
	EditCoordinates     bool `json:"editCoordinates"`
	EditAuthorizations  bool `json:"editAuthorizations"`
}

func (p *ParentAuthorizations) MergeInto(a *Authorizations) {
	a.ParentAuthorizations = p
}

// AdministrationAuthorizations は事務職員向けの権限一式。
// ポータルの権限名を小文字始まりにしたキーで保持する。
type AdministrationAuthorizations struct {
	ConsulterIdentiteEleve                   bool                     `json:"consulterIdentiteEleve"`
	ConsulterFichesResponsables              bool                     `json:"consulterFichesResponsables"`
	ConsulterPhotosEleves                    bool                     `json:"consulterPhotosEleves"`
	AvecDiscussionParents                    bool                     `json:"avecDiscussionParents"`
	AvecMessageInstantane                    bool                     `json:"avecMessageInstantane"`
	EstDestinataireChat                      bool                     `json:"estDestinataireChat"`
	AvecContactVS                            bool                     `json:"avecContactVS"`
	LancerAlertesPPMS                        bool                     `json:"lancerAlertesPPMS"`
	AvecDiscussionAvancee                    bool                     `json:"avecDiscussionAvancee"`
	AvecSaisieParcoursPedagogique            bool                     `json:"avecSaisieParcoursPedagogique"`
	AvecSaisieAppelEtVS                      bool                     `json:"avecSaisieAppelEtVS"`
	AvecSaisieCours                          bool                     `json:"avecSaisieCours"`
	AvecSaisieAbsenceRepas                   bool                     `json:"avecSaisieAbsenceRepas"`
	AvecSaisieHorsCours                      bool                     `json:"avecSaisieHorsCours"`
	AvecSaisieSurGrille                      bool                     `json:"avecSaisieSurGrille"`
	AvecSaisieSurGrilleAppelProf             bool                     `json:"avecSaisieSurGrilleAppelProf"`
	AvecSaisieAbsence                        bool                     `json:"avecSaisieAbsence"`
	AvecSaisieRetard                         bool                     `json:"avecSaisieRetard"`
	AvecSaisieMotifRetard                    bool                     `json:"avecSaisieMotifRetard"`
	AvecSaisiePassageInfirmerie              bool                     `json:"avecSaisiePassageInfirmerie"`
	AvecSaisieExclusion                      bool                     `json:"avecSaisieExclusion"`
	AvecSaisiePunition                       bool                     `json:"avecSaisiePunition"`
	AvecAccesAuxEvenementsAutresCours        bool                     `json:"avecAccesAuxEvenementsAutresCours"`
	AvecSaisieAbsencesToutesPermanences      bool                     `json:"avecSaisieAbsencesToutesPermanences"`
	AvecSaisieAbsencesGrilleAbsencesRepas    bool                     `json:"avecSaisieAbsencesGrilleAbsencesRepas"`
	AvecSaisieAbsencesGrilleAbsencesInternat bool                     `json:"avecSaisieAbsencesGrilleAbsencesInternat"`
	AvecSuiviAbsenceRetard                   bool                     `json:"avecSuiviAbsenceRetard"`
	DateSaisieAbsence                        json.RawMessage          `json:"dateSaisieAbsence,omitempty"`
	AvecSaisieEvaluations                    bool                     `json:"avecSaisieEvaluations"`
	AutoriserCommunicationsToutesClasses     bool                     `json:"autoriserCommunicationsToutesClasses"`
	AvecSaisieAgenda                         bool                     `json:"avecSaisieAgenda"`
	AvecSaisieActualite                      bool                     `json:"avecSaisieActualite"`
	AvecPublicationListeDiffusion            bool                     `json:"avecPublicationListeDiffusion"`
	PublierDossiersVS                        bool                     `json:"publierDossiersVS"`
	ConsulterMemosEleve                      bool                     `json:"consulterMemosEleve"`
	SaisirMemos                              bool                     `json:"saisirMemos"`
	AvecSaisieDispense                       bool                     `json:"avecSaisieDispense"`
	Incidents                                json.RawMessage          `json:"incidents,omitempty"`
	AvecPublicationPunitions                 bool                     `json:"avecPublicationPunitions"`
	AvecAccesPunitions                       bool                     `json:"avecAccesPunitions"`
	AvecSaisiePunitions                      bool                     `json:"avecSaisiePunitions"`
	AvecCreerMotifIncidentPunitionSanction   bool                     `json:"avecCreerMotifIncidentPunitionSanction"`
	Intendance                               IntendanceAuthorizations `json:"intendance"`
	Services                                 json.RawMessage          `json:"services,omitempty"`
	AutoriseAConsulterPhotosDeTousLesEleves  bool                     `json:"autoriseAConsulterPhotosDeTousLesEleves"`
	Cours                                    CoursAuthorizations      `json:"cours"`
	AvecSaisieDocumentsCasiers               bool                     `json:"avecSaisieDocumentsCasiers"`
	Compte                                   CompteAuthorizations     `json:"compte"`
}

func (ad *AdministrationAuthorizations) MergeInto(a *Authorizations) {
	a.AdministrationAuthorizations = ad
}

type IntendanceAuthorizations struct {
	AvecDemandeTravauxIntendance   bool `json:"avecDemandeTravauxIntendance"`
	AvecExecutionTravauxIntendance bool `json:"avecExecutionTravauxIntendance"`
}

type CoursAuthorizations struct {
	AvecReservationCreneauxLibres   bool `json:"avecReservationCreneauxLibres"`
	ModificationNonLimiteAuxSemaine bool `json:"modificationNonLimiteAuxSemaine"`
	AvecMateriel                    bool `json:"avecMateriel"`
	AvecFicheCoursConseil           bool `json:"avecFicheCoursConseil"`
	AfficherElevesDetachesDansCours bool `json:"afficherElevesDetachesDansCours"`
}

type CompteAuthorizations struct {
	AvecSaisieInfosPersoCoordonnees   bool `json:"avecSaisieInfosPersoCoordonnees"`
	AvecSaisieInfosPersoAutorisations bool `json:"avecSaisieInfosPersoAutorisations"`
}
