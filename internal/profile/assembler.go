// Package profile はポータルのユーザーパラメータをロールに応じたプロフィールへ正規化する。
package profile

import (
	"context"
	"log/slog"

	"github.com/hitoshi/schoolprofile/internal/model"
	"github.com/hitoshi/schoolprofile/internal/pronote"
)

// UserParametersFetcher はユーザーパラメータの取得元。
type UserParametersFetcher interface {
	FetchUserParameters(ctx context.Context, session model.Session) (*pronote.UserParameters, error)
}

// TextSanitizer はポータル由来の自由入力テキストを無害化する。
type TextSanitizer interface {
	SanitizeText(s string) string
}

// MetricsRecorder はプロフィール組み立てのメトリクス記録先。
type MetricsRecorder interface {
	RecordProfileAssembled(role string)
	RecordUnsupportedRole(role string)
}

// Assembler はユーザーパラメータを1回取得し、UserProfile を組み立てる。
type Assembler struct {
	fetcher    UserParametersFetcher
	extractors *Extractors
	sanitizer  TextSanitizer
	metrics    MetricsRecorder
	logger     *slog.Logger
}

// NewAssembler はAssemblerの新しいインスタンスを生成する。
func NewAssembler(
	fetcher UserParametersFetcher,
	extractors *Extractors,
	sanitizer TextSanitizer,
	metrics MetricsRecorder,
	logger *slog.Logger,
) *Assembler {
	return &Assembler{
		fetcher:    fetcher,
		extractors: extractors,
		sanitizer:  sanitizer,
		metrics:    metrics,
		logger:     logger,
	}
}

// AssembleProfile はセッションのプロフィールを組み立てる。
//
// 取得に失敗した場合はそのエラーをそのまま返す。必須フィールドの欠落は
// *model.MalformedPayloadError として返し、部分的な結果は返さない。
func (a *Assembler) AssembleProfile(ctx context.Context, session model.Session) (*model.UserProfile, error) {
	params, err := a.fetcher.FetchUserParameters(ctx, session)
	if err != nil {
		return nil, err
	}

	var identity pronote.Resource
	if err := params.DecodeResource(&identity); err != nil {
		return nil, err
	}

	extractor := a.extractors.For(session.Role)
	if !extractor.Supported() {
		a.logger.Warn("ロール固有データの抽出に未対応のロールです",
			slog.String("role", string(session.Role)),
			slog.Int("session_id", session.ID),
		)
		a.metrics.RecordUnsupportedRole(string(session.Role))
	}
	fragment, err := extractor.Extract(session, params)
	if err != nil {
		return nil, err
	}

	establishments, err := pronote.MapList(params.Establishments, a.establishment)
	if err != nil {
		return nil, atPath("listeInformationsEtablissements", err)
	}

	settings, err := userSettings(params.Settings)
	if err != nil {
		return nil, err
	}

	sessionAuths, err := sessionAuthorizations(params.SessionAuthorizations)
	if err != nil {
		return nil, err
	}

	auths, err := genericAuthorizations(params.Authorizations)
	if err != nil {
		return nil, err
	}

	if params.PasswordRules == nil {
		return nil, &model.MalformedPayloadError{Path: "reglesSaisieMDP"}
	}
	passwordRules, err := pronote.Domain(params.PasswordRules.Rules)
	if err != nil {
		return nil, &model.MalformedPayloadError{Path: "reglesSaisieMDP.regles", Err: err}
	}

	if params.Tabs == nil {
		return nil, &model.MalformedPayloadError{Path: "listeOnglets"}
	}

	profile := &model.UserProfile{
		Entity:                pronote.ToEntity(identity),
		EstablishmentsInfo:    establishments,
		UserSettings:          settings,
		SessionAuthorizations: sessionAuths,
		Authorizations:        auths,
		MinPasswordSize:       params.PasswordRules.Min,
		MaxPasswordSize:       params.PasswordRules.Max,
		PasswordRules:         passwordRules,
		KioskAccess:           params.KioskAccess,
		Tabs:                  NormalizeTabs(params.Tabs),
		HiddenTabs:            orEmpty(params.HiddenTabs),
		NotifiedTabs:          orEmpty(params.NotifiedTabs),
	}
	fragment.MergeInto(profile)

	a.metrics.RecordProfileAssembled(string(session.Role))
	a.logger.Info("プロフィールを組み立てました",
		slog.String("role", string(session.Role)),
		slog.Int("session_id", session.ID),
		slog.Int("tabs", len(profile.Tabs)),
	)

	return profile, nil
}

// establishment は所属校の連絡先を変換する。自由入力欄は無害化する。
func (a *Assembler) establishment(e pronote.EstablishmentEntry) (model.EstablishmentInfo, error) {
	if e.Coordinates == nil {
		return model.EstablishmentInfo{}, &model.MalformedPayloadError{Path: "Coordonnees"}
	}
	c := e.Coordinates

	return model.EstablishmentInfo{
		Entity: pronote.ToEntity(e.Resource),
		LogoID: e.Logo.Value(),
		Address: [2]string{
			a.sanitizer.SanitizeText(c.Adresse1),
			a.sanitizer.SanitizeText(c.Adresse2),
		},
		PostalCode:  a.sanitizer.SanitizeText(c.CodePostal),
		PostalLabel: a.sanitizer.SanitizeText(c.LibellePostal),
		City:        a.sanitizer.SanitizeText(c.LibelleVille),
		Province:    a.sanitizer.SanitizeText(c.Province),
		Country:     a.sanitizer.SanitizeText(c.Pays),
		Website:     a.sanitizer.SanitizeText(c.SiteInternet),
	}, nil
}

func userSettings(s *pronote.Settings) (model.UserSettings, error) {
	switch {
	case s == nil:
		return model.UserSettings{}, &model.MalformedPayloadError{Path: "parametresUtilisateur"}
	case s.Timetable == nil:
		return model.UserSettings{}, &model.MalformedPayloadError{Path: "parametresUtilisateur.EDT"}
	case s.Theme == nil:
		return model.UserSettings{}, &model.MalformedPayloadError{Path: "parametresUtilisateur.theme"}
	case s.Communication == nil:
		return model.UserSettings{}, &model.MalformedPayloadError{Path: "parametresUtilisateur.Communication"}
	}

	edt := s.Timetable
	return model.UserSettings{
		Version: s.Version,
		Timetable: model.TimetableSettings{
			DisplayCanceledLessons: edt.AfficherCoursAnnules,
			InvertAxis:             edt.AxeInverseEDT,
			InvertWeeklyPlanAxis:   edt.AxeInversePlanningHebdo,
			InvertDayPlanAxis:      edt.AxeInversePlanningJour,
			InvertDay2PlanAxis:     edt.AxeInversePlanningJour2,
			DayCount:               edt.NbJours,
			ResourceCount:          edt.NbRessources,
			DaysInTimetable:        edt.NbJoursEDT,
			SequenceCount:          edt.NbSequences,
		},
		Theme:             s.Theme.Theme,
		UnreadDiscussions: s.Communication.DiscussionNonLues,
	}, nil
}

func sessionAuthorizations(s *pronote.SessionAuthorizationBag) (model.SessionAuthorizations, error) {
	if s == nil {
		return model.SessionAuthorizations{}, &model.MalformedPayloadError{Path: "autorisationsSession"}
	}
	if s.Features == nil {
		return model.SessionAuthorizations{}, &model.MalformedPayloadError{Path: "autorisationsSession.fonctionnalites"}
	}
	return model.SessionAuthorizations{
		TwitterManagement:   s.Features.GestionTwitter,
		ExpandedAttestation: s.Features.AttestationEtendue,
	}, nil
}

// genericAuthorizations は全ロール共通の権限を取り出す。
// ロール固有の権限は Fragment.MergeInto で後から設定される。
func genericAuthorizations(aut *pronote.AuthorizationBag) (model.Authorizations, error) {
	if aut == nil {
		return model.Authorizations{}, &model.MalformedPayloadError{Path: "autorisations"}
	}
	cours, err := aut.RequireCours()
	if err != nil {
		return model.Authorizations{}, err
	}
	compte, err := aut.RequireCompte()
	if err != nil {
		return model.Authorizations{}, err
	}

	visibleWeeks, err := pronote.Domain(cours.DomaineConsultationEDT)
	if err != nil {
		return model.Authorizations{}, &model.MalformedPayloadError{Path: "autorisations.cours.domaineConsultationEDT", Err: err}
	}
	editableLessons, err := pronote.Domain(cours.DomaineModificationCours)
	if err != nil {
		return model.Authorizations{}, &model.MalformedPayloadError{Path: "autorisations.cours.domaineModificationCours", Err: err}
	}

	return model.Authorizations{
		Discussions:              aut.AvecDiscussion,
		TeachersDiscussions:      aut.AvecDiscussionProfesseurs,
		TimetableVisibleWeeks:    visibleWeeks,
		CanEditLessons:           editableLessons,
		HideClassParts:           cours.MasquerPartiesDeClasse,
		MaxEstablishmentFileSize: aut.TailleMaxDocJointEtablissement,
		EditPassword:             compte.AvecSaisieMotDePasse,
		EditPersonalInfo:         compte.AvecInformationsPersonnelles,
		CanPrint:                 aut.AutoriserImpression,
	}, nil
}

func orEmpty(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}

