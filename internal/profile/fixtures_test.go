package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"testing"

	"github.com/hitoshi/schoolprofile/internal/model"
	"github.com/hitoshi/schoolprofile/internal/pronote"
)

// commonFields はロールに依存しないユーザーパラメータ。
const commonFields = `
	"autorisationsSession": {"fonctionnalites": {"gestionTwitter": false, "attestationEtendue": true}},
	"parametresUtilisateur": {
		"version": 3,
		"EDT": {"afficherCoursAnnules": true, "axeInverseEDT": false, "nbJours": 5, "nbSequences": 20},
		"theme": {"theme": 2},
		"Communication": {"DiscussionNonLues": 4}
	},
	"listeInformationsEtablissements": {"_T": 24, "V": [{
		"N": "1", "L": "College Victor Hugo",
		"Logo": {"_T": 25, "V": 12},
		"Coordonnees": {
			"Adresse1": "1 rue de la Paix", "Adresse2": "Batiment B",
			"CodePostal": "75002", "LibellePostal": "PARIS", "LibelleVille": "Paris",
			"Province": "Ile-de-France", "Pays": "France", "SiteInternet": "https://college.example.fr"
		}
	}]},
	"reglesSaisieMDP": {"min": 8, "max": 32, "regles": {"_T": 26, "V": "[1..2,4]"}},
	"autorisationKiosque": true,
	"listeOnglets": [{"G": 7, "Onglet": [{"G": 8}, {"G": 9}]}, {"G": 10}],
	"listeOngletsInvisibles": [11],
	"listeOngletsNotification": [12, 13]`

const studentResource = `{
	"N": "42", "L": "DUPONT Marie", "G": 3,
	"avecPhoto": true,
	"Etablissement": {"_T": 24, "V": {"N": "1", "L": "College Victor Hugo"}},
	"classeDEleve": {"N": "7", "L": "3A"},
	"listeClassesHistoriques": {"_T": 24, "V": [{"N": "6", "L": "4B", "AvecNote": true, "AvecFiliere": false}]},
	"listeGroupes": {"_T": 24, "V": [{"N": "9", "L": "Latin", "G": 2}]},
	"listeOngletsPourPiliers": {"_T": 24, "V": [{
		"G": 45,
		"listePaliers": {"_T": 24, "V": [{
			"N": "p1", "L": "Cycle 4",
			"listePiliers": {"_T": 24, "V": [
				{"N": "c1", "L": "Langues", "estPilierLVE": true, "estSocleCommun": false, "Service": {"_T": 24, "V": {"N": "s1", "L": "Anglais"}}},
				{"N": "c2", "L": "Sciences", "estPilierLVE": false, "estSocleCommun": true, "Service": null}
			]}
		}]}
	}]},
	"listeOngletsPourPeriodes": {"_T": 24, "V": [{
		"G": 198,
		"listePeriodes": {"_T": 24, "V": [
			{"N": "t1", "L": "Trimestre 1", "GenreNotation": 1},
			{"N": "t2", "L": "Trimestre 2", "GenreNotation": 2},
			{"N": "a", "L": "Annee"}
		]},
		"periodeParDefaut": {"_T": 24, "V": {"N": "t1", "L": "Trimestre 1"}}
	}]}
}`

const studentAuthorizations = `{
	"AvecDiscussion": true, "AvecDiscussionProfesseurs": true,
	"tailleMaxDocJointEtablissement": 4096, "autoriserImpression": true,
	"tailleMaxRenduTafEleve": 2048,
	"cours": {"domaineConsultationEDT": {"_T": 8, "V": "[1..3]"}, "domaineModificationCours": {"_T": 8, "V": "[]"}, "masquerPartiesDeClasse": false},
	"compte": {"avecSaisieMotDePasse": true, "avecInformationsPersonnelles": false}
}`

const parentResource = `{
	"N": "100", "L": "DUPONT Jean", "G": 4,
	"estDelegue": true, "estMembreCA": false, "avecDiscussionResponsables": true,
	"listeClassesDelegue": {"_T": 24, "V": [{"N": "7", "L": "3A"}]},
	"listeRessources": [{
		"N": "42", "L": "DUPONT Marie", "G": 3,
		"avecPhoto": false,
		"classeDEleve": {"N": "7", "L": "3A"},
		"listeSessions": {"_T": 24, "V": [
			{"date": {"_T": 7, "V": "15/01/2024"}, "strHeureDebut": "8h30", "strHeureFin": "23h45"}
		]}
	}]
}`

const parentAuthorizations = `{
	"AvecDiscussion": true,
	"AvecDiscussionPersonnels": true, "AvecDiscussionParents": false,
	"cours": {"domaineConsultationEDT": {"_T": 8, "V": "[1..3]"}},
	"compte": {
		"avecSaisieMotDePasse": true, "avecInformationsPersonnelles": true,
		"avecSaisieMotDePasseEleve": true, "avecSaisieInfosPersoCoordonnees": false,
		"avecSaisieInfosPersoAutorisations": true
	}
}`

const parentLists = `
	"listeMotifsAbsences": {"_T": 24, "V": [{"N": "m1", "L": "Maladie"}]},
	"listeMotifsRetards": {"_T": 24, "V": [{"N": "r1", "L": "Transport"}, {"N": "r2", "L": "Autre"}]},`

const administrationResource = `{
	"N": "200", "L": "MARTIN Paul", "G": 5,
	"listeProfesseurs": {"_T": 24, "V": [{"N": "t1", "L": "DURAND"}, {"N": "t2", "L": "LEROY"}]}
}`

const administrationAuthorizations = `{
	"ConsulterIdentiteEleve": true, "AvecDiscussionParents": true,
	"AvecSaisieAbsence": true, "incidents": {"_T": 24, "V": []},
	"cours": {"domaineConsultationEDT": {"_T": 8, "V": "[1..52]"}, "avecMateriel": true},
	"compte": {"avecSaisieInfosPersoCoordonnees": true},
	"intendance": {"avecDemandeTravauxIntendance": true}
}`

const administrationLists = `
	"listeClasses": {"_T": 24, "V": [{"N": "7", "L": "3A"}, {"N": "8", "L": "3B"}]},`

const teacherResource = `{"N": "300", "L": "DURAND Claire", "G": 6}`

const teacherAuthorizations = `{
	"AvecDiscussion": true,
	"cours": {"domaineModificationCours": {"_T": 8, "V": "[1..3,5]"}},
	"compte": {}
}`

// fixturePayload はロール固有部分と共通部分を結合したペイロードを返す。
func fixturePayload(resource, authorizations, lists string) string {
	return `{"ressource": ` + resource + `, "autorisations": ` + authorizations + `,` + lists + commonFields + `}`
}

func decodeParams(t *testing.T, raw string) *pronote.UserParameters {
	t.Helper()
	var params pronote.UserParameters
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		t.Fatalf("フィクスチャのデコードに失敗: %v", err)
	}
	return &params
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func testSession(role model.Role) model.Session {
	return model.Session{ID: 1234, Space: 3, Role: role}
}

func testFileBuilder(t *testing.T) *pronote.FileURLBuilder {
	t.Helper()
	base, err := url.Parse("https://portal.example.fr/pronote/")
	if err != nil {
		t.Fatalf("URLのパースに失敗: %v", err)
	}
	return pronote.NewFileURLBuilder(base)
}

// jsonKeys はvをJSONにしたときのトップレベルのキーを返す。
func jsonKeys(t *testing.T, v any) map[string]bool {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("JSONエンコードに失敗: %v", err)
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("JSONデコードに失敗: %v", err)
	}
	keys := make(map[string]bool, len(m))
	for k := range m {
		keys[k] = true
	}
	return keys
}

// --- モック ---

type mockFetcher struct {
	fetchFn func(session model.Session) (*pronote.UserParameters, error)
	calls   int
}

func (m *mockFetcher) FetchUserParameters(_ context.Context, session model.Session) (*pronote.UserParameters, error) {
	m.calls++
	return m.fetchFn(session)
}

type sanitizerFunc func(string) string

func (f sanitizerFunc) SanitizeText(s string) string { return f(s) }

func passthrough(s string) string { return s }

type mockMetrics struct {
	assembled   []string
	unsupported []string
}

func (m *mockMetrics) RecordProfileAssembled(role string) { m.assembled = append(m.assembled, role) }
func (m *mockMetrics) RecordUnsupportedRole(role string)  { m.unsupported = append(m.unsupported, role) }
