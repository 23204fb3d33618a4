package pronote

import (
	"encoding/json"

	"github.com/hitoshi/schoolprofile/internal/model"
)

// UserParameters は ParametresUtilisateur 呼び出しの donnees 部。
//
// 正規化処理が無条件に参照するサブ構造はポインタまたは素の配列で受け、
// 欠落を検出できるようにしている。ressource はロールによって形が異なるため
// 生のまま保持し、ロールごとのハンドラーがデコードする。
type UserParameters struct {
	Resource              json.RawMessage                `json:"ressource"`
	Authorizations        *AuthorizationBag              `json:"autorisations"`
	SessionAuthorizations *SessionAuthorizationBag       `json:"autorisationsSession"`
	Settings              *Settings                      `json:"parametresUtilisateur"`
	Establishments        *Wrapped[[]EstablishmentEntry] `json:"listeInformationsEtablissements"`
	PasswordRules         *PasswordRules                 `json:"reglesSaisieMDP"`
	KioskAccess           bool                           `json:"autorisationKiosque"`
	Tabs                  []Tab                          `json:"listeOnglets"`
	HiddenTabs            []int                          `json:"listeOngletsInvisibles"`
	NotifiedTabs          []int                          `json:"listeOngletsNotification"`
	AbsenceReasons        *Wrapped[[]Resource]           `json:"listeMotifsAbsences"`
	DelayReasons          *Wrapped[[]Resource]           `json:"listeMotifsRetards"`
	Classes               *Wrapped[[]Resource]           `json:"listeClasses"`
}

// DecodeResource は ressource をvにデコードする。
// ressource が存在しない場合は MalformedPayloadError を返す。
func (p *UserParameters) DecodeResource(v any) error {
	if len(p.Resource) == 0 || string(p.Resource) == "null" {
		return &model.MalformedPayloadError{Path: "ressource"}
	}
	if err := json.Unmarshal(p.Resource, v); err != nil {
		return &model.MalformedPayloadError{Path: "ressource", Err: err}
	}
	return nil
}

// RequireAuthorizations は autorisations を返す。欠落時はエラー。
func (p *UserParameters) RequireAuthorizations() (*AuthorizationBag, error) {
	if p.Authorizations == nil {
		return nil, &model.MalformedPayloadError{Path: "autorisations"}
	}
	return p.Authorizations, nil
}

// Tab はナビゲーションタブ。子タブは Onglet に入る。
type Tab struct {
	G    int   `json:"G"`
	Subs []Tab `json:"Onglet"`
}

// Settings は parametresUtilisateur。
type Settings struct {
	Version       int               `json:"version"`
	Timetable     *TimetableBag     `json:"EDT"`
	Theme         *ThemeBag         `json:"theme"`
	Communication *CommunicationBag `json:"Communication"`
}

type TimetableBag struct {
	AfficherCoursAnnules    bool `json:"afficherCoursAnnules"`
	AxeInverseEDT           bool `json:"axeInverseEDT"`
	AxeInversePlanningHebdo bool `json:"axeInversePlanningHebdo"`
	AxeInversePlanningJour  bool `json:"axeInversePlanningJour"`
	AxeInversePlanningJour2 bool `json:"axeInversePlanningJour2"`
	NbJours                 int  `json:"nbJours"`
	NbRessources            int  `json:"nbRessources"`
	NbJoursEDT              int  `json:"nbJoursEDT"`
	NbSequences             int  `json:"nbSequences"`
}

type ThemeBag struct {
	Theme int `json:"theme"`
}

type CommunicationBag struct {
	DiscussionNonLues int `json:"DiscussionNonLues"`
}

// SessionAuthorizationBag は autorisationsSession。
type SessionAuthorizationBag struct {
	Features *FeatureBag `json:"fonctionnalites"`
}

type FeatureBag struct {
	GestionTwitter     bool `json:"gestionTwitter"`
	AttestationEtendue bool `json:"attestationEtendue"`
}

// EstablishmentEntry は listeInformationsEtablissements の要素。
type EstablishmentEntry struct {
	Resource
	Logo        *Wrapped[int] `json:"Logo"`
	Coordinates *Coordinates  `json:"Coordonnees"`
}

type Coordinates struct {
	Adresse1      string `json:"Adresse1"`
	Adresse2      string `json:"Adresse2"`
	CodePostal    string `json:"CodePostal"`
	LibellePostal string `json:"LibellePostal"`
	LibelleVille  string `json:"LibelleVille"`
	Province      string `json:"Province"`
	Pays          string `json:"Pays"`
	SiteInternet  string `json:"SiteInternet"`
}

// PasswordRules は reglesSaisieMDP。
type PasswordRules struct {
	Min   int              `json:"min"`
	Max   int              `json:"max"`
	Rules *Wrapped[string] `json:"regles"`
}

// AuthorizationBag は autorisations。ロールごとに含まれるキーが異なり、
// 命名も統一されていないため、全ロール分のキーをポータルの名前のまま受ける。
type AuthorizationBag struct {
	AvecDiscussion                 bool           `json:"AvecDiscussion"`
	AvecDiscussionProfesseurs      bool           `json:"AvecDiscussionProfesseurs"`
	TailleMaxDocJointEtablissement int            `json:"tailleMaxDocJointEtablissement"`
	AutoriserImpression            bool           `json:"autoriserImpression"`
	Cours                          *CoursBag      `json:"cours"`
	Compte                         *CompteBag     `json:"compte"`
	Intendance                     *IntendanceBag `json:"intendance"`

	// 生徒
	TailleMaxRenduTafEleve int `json:"tailleMaxRenduTafEleve"`

	// 保護者・事務職員
	AvecDiscussionPersonnels bool `json:"AvecDiscussionPersonnels"`
	AvecDiscussionParents    bool `json:"AvecDiscussionParents"`

	// 事務職員
	ConsulterIdentiteEleve                   bool            `json:"ConsulterIdentiteEleve"`
	ConsulterFichesResponsables              bool            `json:"ConsulterFichesResponsables"`
	ConsulterPhotosEleves                    bool            `json:"ConsulterPhotosEleves"`
	AvecMessageInstantane                    bool            `json:"avecMessageInstantane"`
	EstDestinataireChat                      bool            `json:"estDestinataireChat"`
	AvecContactVS                            bool            `json:"AvecContactVS"`
	LancerAlertesPPMS                        bool            `json:"lancerAlertesPPMS"`
	AvecDiscussionAvancee                    bool            `json:"AvecDiscussionAvancee"`
	AvecSaisieParcoursPedagogique            bool            `json:"avecSaisieParcoursPedagogique"`
	AvecSaisieAppelEtVS                      bool            `json:"AvecSaisieAppelEtVS"`
	AvecSaisieCours                          bool            `json:"AvecSaisieCours"`
	AvecSaisieAbsenceRepas                   bool            `json:"AvecSaisieAbsenceRepas"`
	AvecSaisieHorsCours                      bool            `json:"AvecSaisieHorsCours"`
	AvecSaisieSurGrille                      bool            `json:"AvecSaisieSurGrille"`
	AvecSaisieSurGrilleAppelProf             bool            `json:"AvecSaisieSurGrilleAppelProf"`
	AvecSaisieAbsence                        bool            `json:"AvecSaisieAbsence"`
	AvecSaisieRetard                         bool            `json:"AvecSaisieRetard"`
	AvecSaisieMotifRetard                    bool            `json:"AvecSaisieMotifRetard"`
	AvecSaisiePassageInfirmerie              bool            `json:"AvecSaisiePassageInfirmerie"`
	AvecSaisieExclusion                      bool            `json:"AvecSaisieExclusion"`
	AvecSaisiePunition                       bool            `json:"AvecSaisiePunition"`
	AvecAccesAuxEvenementsAutresCours        bool            `json:"AvecAccesAuxEvenementsAutresCours"`
	AvecSaisieAbsencesToutesPermanences      bool            `json:"AvecSaisieAbsencesToutesPermanences"`
	AvecSaisieAbsencesGrilleAbsencesRepas    bool            `json:"AvecSaisieAbsencesGrilleAbsencesRepas"`
	AvecSaisieAbsencesGrilleAbsencesInternat bool            `json:"AvecSaisieAbsencesGrilleAbsencesInternat"`
	AvecSuiviAbsenceRetard                   bool            `json:"AvecSuiviAbsenceRetard"`
	DateSaisieAbsence                        json.RawMessage `json:"DateSaisieAbsence"`
	AvecSaisieEvaluations                    bool            `json:"AvecSaisieEvaluations"`
	AutoriserCommunicationsToutesClasses     bool            `json:"AutoriserCommunicationsToutesClasses"`
	AvecSaisieAgenda                         bool            `json:"AvecSaisieAgenda"`
	AvecSaisieActualite                      bool            `json:"AvecSaisieActualite"`
	AvecPublicationListeDiffusion            bool            `json:"avecPublicationListeDiffusion"`
	PublierDossiersVS                        bool            `json:"PublierDossiersVS"`
	ConsulterMemosEleve                      bool            `json:"ConsulterMemosEleve"`
	SaisirMemos                              bool            `json:"SaisirMemos"`
	AvecSaisieDispense                       bool            `json:"avecSaisieDispense"`
	Incidents                                json.RawMessage `json:"incidents"`
	AvecPublicationPunitions                 bool            `json:"AvecPublicationPunitions"`
	AvecAccesPunitions                       bool            `json:"avecAccesPunitions"`
	AvecSaisiePunitions                      bool            `json:"avecSaisiePunitions"`
	AvecCreerMotifIncidentPunitionSanction   bool            `json:"avecCreerMotifIncidentPunitionSanction"`
	Services                                 json.RawMessage `json:"services"`
	AutoriseAConsulterPhotosDeTousLesEleves  bool            `json:"autoriseAConsulterPhotosDeTousLesEleves"`
	AvecSaisieDocumentsCasiers               bool            `json:"avecSaisieDocumentsCasiers"`
}

// RequireCours は cours を返す。欠落時はエラー。
func (a *AuthorizationBag) RequireCours() (*CoursBag, error) {
	if a.Cours == nil {
		return nil, &model.MalformedPayloadError{Path: "autorisations.cours"}
	}
	return a.Cours, nil
}

// RequireCompte は compte を返す。欠落時はエラー。
func (a *AuthorizationBag) RequireCompte() (*CompteBag, error) {
	if a.Compte == nil {
		return nil, &model.MalformedPayloadError{Path: "autorisations.compte"}
	}
	return a.Compte, nil
}

// RequireIntendance は intendance を返す。欠落時はエラー。
func (a *AuthorizationBag) RequireIntendance() (*IntendanceBag, error) {
	if a.Intendance == nil {
		return nil, &model.MalformedPayloadError{Path: "autorisations.intendance"}
	}
	return a.Intendance, nil
}

type CoursBag struct {
	DomaineConsultationEDT          *Wrapped[string] `json:"domaineConsultationEDT"`
	DomaineModificationCours        *Wrapped[string] `json:"domaineModificationCours"`
	MasquerPartiesDeClasse          bool             `json:"masquerPartiesDeClasse"`
	AvecReservationCreneauxLibres   bool             `json:"avecReservationCreneauxLibres"`
	ModificationNonLimiteAuxSemaine bool             `json:"modificationNonLimiteAuxSemaine"`
	AvecMateriel                    bool             `json:"avecMateriel"`
	AvecFicheCoursConseil           bool             `json:"avecFicheCoursConseil"`
	AfficherElevesDetachesDansCours bool             `json:"afficherElevesDetachesDansCours"`
}

type CompteBag struct {
	AvecSaisieMotDePasse              bool `json:"avecSaisieMotDePasse"`
	AvecInformationsPersonnelles      bool `json:"avecInformationsPersonnelles"`
	AvecSaisieMotDePasseEleve         bool `json:"avecSaisieMotDePasseEleve"`
	AvecSaisieInfosPersoCoordonnees   bool `json:"avecSaisieInfosPersoCoordonnees"`
	AvecSaisieInfosPersoAutorisations bool `json:"avecSaisieInfosPersoAutorisations"`
}

type IntendanceBag struct {
	AvecDemandeTravauxIntendance   bool `json:"avecDemandeTravauxIntendance"`
	AvecExecutionTravauxIntendance bool `json:"avecExecutionTravauxIntendance"`
}

// StudentResource は生徒ロールの ressource、および保護者ロールの子の要素。
type StudentResource struct {
	Resource
	HasPhoto      bool                             `json:"avecPhoto"`
	Establishment *Wrapped[Resource]               `json:"Etablissement"`
	Class         *Resource                        `json:"classeDEleve"`
	ClassHistory  *Wrapped[[]ClassHistoryResource] `json:"listeClassesHistoriques"`
	Groups        *Wrapped[[]Resource]             `json:"listeGroupes"`
	PillarTabs    *Wrapped[[]PillarTab]            `json:"listeOngletsPourPiliers"`
	PeriodTabs    *Wrapped[[]PeriodTab]            `json:"listeOngletsPourPeriodes"`
}

type ClassHistoryResource struct {
	Resource
	AvecNote    bool `json:"AvecNote"`
	AvecFiliere bool `json:"AvecFiliere"`
}

// PillarTab はタブ番号をキーとするコンピテンシー評価タブ。
type PillarTab struct {
	G      int                     `json:"G"`
	Levels *Wrapped[[]PillarLevel] `json:"listePaliers"`
}

type PillarLevel struct {
	Resource
	Pillars *Wrapped[[]Pillar] `json:"listePiliers"`
}

type Pillar struct {
	Resource
	EstPilierLVE   bool               `json:"estPilierLVE"`
	EstSocleCommun bool               `json:"estSocleCommun"`
	Service        *Wrapped[Resource] `json:"Service"`
}

// PeriodTab はタブ番号をキーとする成績期間タブ。
type PeriodTab struct {
	G                int                `json:"G"`
	Periods          *Wrapped[[]Period] `json:"listePeriodes"`
	PeriodeParDefaut *Wrapped[Resource] `json:"periodeParDefaut"`
}

// Period の GenreNotation は欠落しうるためポインタで受ける。
type Period struct {
	Resource
	GenreNotation *int `json:"GenreNotation"`
}

// ParentResource は保護者ロールの ressource。
type ParentResource struct {
	Resource
	EstDelegue                 bool                 `json:"estDelegue"`
	EstMembreCA                bool                 `json:"estMembreCA"`
	AvecDiscussionResponsables bool                 `json:"avecDiscussionResponsables"`
	ListeClassesDelegue        *Wrapped[[]Resource] `json:"listeClassesDelegue"`
	Children                   []ChildResource      `json:"listeRessources"`
}

// ChildResource は保護者に紐づく生徒。生徒リソースに在籍期間の一覧が加わる。
type ChildResource struct {
	StudentResource
	Sessions *Wrapped[[]SessionEntry] `json:"listeSessions"`
}

// SessionEntry は日付と "8h30" 形式の開始・終了時刻を持つ。
type SessionEntry struct {
	Date          *Wrapped[string] `json:"date"`
	StrHeureDebut string           `json:"strHeureDebut"`
	StrHeureFin   string           `json:"strHeureFin"`
}

// AdministrationResource は事務職員ロールの ressource。
type AdministrationResource struct {
	Resource
	ListeProfesseurs *Wrapped[[]Resource] `json:"listeProfesseurs"`
}
