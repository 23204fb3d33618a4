package profile

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/schoolprofile/internal/model"
	"github.com/hitoshi/schoolprofile/internal/pronote"
)

func newTestExtractors(t *testing.T) *Extractors {
	t.Helper()
	return NewExtractors(NewStudentBuilder(testFileBuilder(t)), time.UTC)
}

func assertKeys(t *testing.T, label string, got map[string]bool, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("%s のキー数 = %d, want %d (%v)", label, len(got), len(want), got)
	}
	for _, k := range want {
		if !got[k] {
			t.Errorf("%s にキー %q がない", label, k)
		}
	}
}

func TestExtractRoleData_Student(t *testing.T) {
	params := decodeParams(t, fixturePayload(studentResource, studentAuthorizations, ""))

	fragment, err := newTestExtractors(t).ExtractRoleData(testSession(model.RoleStudent), params)
	if err != nil {
		t.Fatalf("ExtractRoleData がエラーを返した: %v", err)
	}

	student, ok := fragment.Data.(*model.Student)
	if !ok {
		t.Fatalf("Data の型 = %T, want *model.Student", fragment.Data)
	}
	if student.StudentClass.ID != "7" {
		t.Errorf("StudentClass = %+v", student.StudentClass)
	}
	assertKeys(t, "data", jsonKeys(t, fragment.Data), []string{
		"id", "name", "kind", "establishment", "avatar", "studentClass",
		"classHistory", "groups", "tabsPillars", "tabsPeriods",
	})

	auths, ok := fragment.Authorizations.(*model.StudentAuthorizations)
	if !ok {
		t.Fatalf("Authorizations の型 = %T", fragment.Authorizations)
	}
	if auths.MaxUserWorkFileSize != 2048 {
		t.Errorf("MaxUserWorkFileSize = %d, want 2048", auths.MaxUserWorkFileSize)
	}
	assertKeys(t, "authorizations", jsonKeys(t, fragment.Authorizations), []string{"maxUserWorkFileSize"})
}

func TestExtractRoleData_Parent(t *testing.T) {
	params := decodeParams(t, fixturePayload(parentResource, parentAuthorizations, parentLists))

	fragment, err := newTestExtractors(t).ExtractRoleData(testSession(model.RoleParent), params)
	if err != nil {
		t.Fatalf("ExtractRoleData がエラーを返した: %v", err)
	}

	data, ok := fragment.Data.(*model.ParentData)
	if !ok {
		t.Fatalf("Data の型 = %T, want *model.ParentData", fragment.Data)
	}
	assertKeys(t, "data", jsonKeys(t, data), []string{
		"isDelegate", "isBDMember", "canDiscussWithManagers",
		"absencesReasons", "delaysReasons", "classDelegates", "students",
	})
	if !data.IsDelegate || data.IsBDMember || !data.CanDiscussWithManagers {
		t.Errorf("フラグ = %+v", data)
	}
	if len(data.AbsencesReasons) != 1 || len(data.DelaysReasons) != 2 || len(data.ClassDelegates) != 1 {
		t.Errorf("リスト = %d, %d, %d, want 1, 2, 1",
			len(data.AbsencesReasons), len(data.DelaysReasons), len(data.ClassDelegates))
	}

	if len(data.Students) != 1 {
		t.Fatalf("len(Students) = %d, want 1", len(data.Students))
	}
	child := data.Students[0]
	if child.ID != "42" || child.Avatar != nil {
		t.Errorf("子 = %+v", child)
	}
	if len(child.Sessions) != 1 {
		t.Fatalf("len(Sessions) = %d, want 1", len(child.Sessions))
	}
	wantFrom := time.Date(2024, 1, 15, 8, 30, 0, 0, time.UTC)
	wantTo := time.Date(2024, 1, 15, 23, 45, 0, 0, time.UTC)
	if !child.Sessions[0].From.Equal(wantFrom) || !child.Sessions[0].To.Equal(wantTo) {
		t.Errorf("Sessions[0] = %+v, want %v - %v", child.Sessions[0], wantFrom, wantTo)
	}

	auths, ok := fragment.Authorizations.(*model.ParentAuthorizations)
	if !ok {
		t.Fatalf("Authorizations の型 = %T", fragment.Authorizations)
	}
	want := model.ParentAuthorizations{
		StaffDiscussion:     true,
		ParentsDiscussion:   false,
		EditStudentPassword: true,
		EditCoordinates:     false,
		EditAuthorizations:  true,
	}
	if *auths != want {
		t.Errorf("Authorizations = %+v, want %+v", *auths, want)
	}
}

func TestExtractRoleData_Administration(t *testing.T) {
	params := decodeParams(t, fixturePayload(administrationResource, administrationAuthorizations, administrationLists))

	fragment, err := newTestExtractors(t).ExtractRoleData(testSession(model.RoleAdministration), params)
	if err != nil {
		t.Fatalf("ExtractRoleData がエラーを返した: %v", err)
	}

	data, ok := fragment.Data.(*model.AdministrationData)
	if !ok {
		t.Fatalf("Data の型 = %T", fragment.Data)
	}
	assertKeys(t, "data", jsonKeys(t, data), []string{"listeProfesseurs", "listeClasses"})
	if len(data.ListeProfesseurs) != 2 || len(data.ListeClasses) != 2 {
		t.Errorf("リスト = %d, %d, want 2, 2", len(data.ListeProfesseurs), len(data.ListeClasses))
	}

	auths, ok := fragment.Authorizations.(*model.AdministrationAuthorizations)
	if !ok {
		t.Fatalf("Authorizations の型 = %T", fragment.Authorizations)
	}
	if !auths.ConsulterIdentiteEleve || !auths.AvecDiscussionParents || !auths.AvecSaisieAbsence {
		t.Errorf("フラグがコピーされていない: %+v", auths)
	}
	if !auths.Intendance.AvecDemandeTravauxIntendance || auths.Intendance.AvecExecutionTravauxIntendance {
		t.Errorf("Intendance = %+v", auths.Intendance)
	}
	if !auths.Cours.AvecMateriel {
		t.Errorf("Cours = %+v", auths.Cours)
	}
	if !auths.Compte.AvecSaisieInfosPersoCoordonnees {
		t.Errorf("Compte = %+v", auths.Compte)
	}
	if !strings.Contains(string(auths.Incidents), `"V"`) {
		t.Errorf("Incidents がそのまま渡されていない: %s", auths.Incidents)
	}

	keys := jsonKeys(t, auths)
	for _, k := range []string{"consulterIdentiteEleve", "intendance", "cours", "compte", "incidents"} {
		if !keys[k] {
			t.Errorf("キー %q がない", k)
		}
	}
	if keys["services"] {
		t.Error("ペイロードにない services が出力された")
	}
}

func TestExtractRoleData_AdministrationRequiresIntendance(t *testing.T) {
	auths := `{"cours": {}, "compte": {}}`
	params := decodeParams(t, fixturePayload(administrationResource, auths, ""))

	_, err := newTestExtractors(t).ExtractRoleData(testSession(model.RoleAdministration), params)

	var mp *model.MalformedPayloadError
	if !errors.As(err, &mp) || mp.Path != "autorisations.intendance" {
		t.Errorf("エラー = %v, want missing autorisations.intendance", err)
	}
}

func TestExtractRoleData_EmptyForTeacherAndOtherRoles(t *testing.T) {
	params := decodeParams(t, fixturePayload(teacherResource, teacherAuthorizations, ""))
	extractors := newTestExtractors(t)

	for _, role := range []model.Role{model.RoleTeacher, model.Role("guest")} {
		t.Run(string(role), func(t *testing.T) {
			fragment, err := extractors.ExtractRoleData(testSession(role), params)
			if err != nil {
				t.Fatalf("ExtractRoleData がエラーを返した: %v", err)
			}
			if !fragment.IsEmpty() {
				t.Errorf("断片 = %+v, want empty", fragment)
			}
		})
	}
}

func TestExtractors_TeacherIsNotSupported(t *testing.T) {
	extractors := newTestExtractors(t)

	if extractors.For(model.RoleTeacher).Supported() {
		t.Error("教員ロールは未対応として報告されるべき")
	}
	for _, role := range []model.Role{model.RoleStudent, model.RoleParent, model.RoleAdministration, "guest"} {
		h := extractors.For(role)
		if !h.Supported() {
			t.Errorf("%s: Supported = false, want true", role)
		}
		if h.Role() != role {
			t.Errorf("Role() = %s, want %s", h.Role(), role)
		}
	}
}

func TestExtractRoleData_ParentMissingChildren(t *testing.T) {
	resource := `{"N": "100", "L": "DUPONT Jean"}`
	params := decodeParams(t, fixturePayload(resource, parentAuthorizations, ""))

	_, err := newTestExtractors(t).ExtractRoleData(testSession(model.RoleParent), params)

	var mp *model.MalformedPayloadError
	if !errors.As(err, &mp) || mp.Path != "ressource.listeRessources" {
		t.Errorf("エラー = %v, want missing ressource.listeRessources", err)
	}
}

func TestExtractRoleData_ParentSessionWithoutDate(t *testing.T) {
	resource := `{
		"N": "100", "L": "DUPONT Jean",
		"listeRessources": [{
			"N": "42", "classeDEleve": {"N": "7"},
			"listeSessions": {"_T": 24, "V": [{"strHeureDebut": "8h00", "strHeureFin": "9h00"}]}
		}]
	}`
	params := decodeParams(t, fixturePayload(resource, parentAuthorizations, ""))

	_, err := newTestExtractors(t).ExtractRoleData(testSession(model.RoleParent), params)

	var mp *model.MalformedPayloadError
	if !errors.As(err, &mp) {
		t.Fatalf("エラー = %v, want MalformedPayloadError", err)
	}
	if mp.Path != "ressource.listeRessources[0].listeSessions[0].date" {
		t.Errorf("Path = %q", mp.Path)
	}
}

func TestExtractRoleData_StudentMissingResource(t *testing.T) {
	params := &pronote.UserParameters{}

	_, err := newTestExtractors(t).ExtractRoleData(testSession(model.RoleStudent), params)

	var mp *model.MalformedPayloadError
	if !errors.As(err, &mp) || mp.Path != "ressource" {
		t.Errorf("エラー = %v, want missing ressource", err)
	}
}

func TestFragment_MergeIntoSetsOnlyRolePointers(t *testing.T) {
	profile := &model.UserProfile{
		Entity:         model.Entity{ID: "42"},
		Authorizations: model.Authorizations{Discussions: true},
	}
	fragment := Fragment{
		Data:           &model.ParentData{IsDelegate: true},
		Authorizations: &model.ParentAuthorizations{StaffDiscussion: true},
	}

	fragment.MergeInto(profile)

	if profile.ParentData == nil || !profile.IsDelegate {
		t.Error("ParentData が設定されていない")
	}
	if profile.StudentData != nil || profile.AdministrationData != nil {
		t.Error("他ロールのデータが設定された")
	}
	if !profile.Authorizations.Discussions {
		t.Error("汎用の権限が上書きされた")
	}
	if profile.Authorizations.ParentAuthorizations == nil || !profile.Authorizations.StaffDiscussion {
		t.Error("ロール固有の権限が設定されていない")
	}
	if profile.ID != "42" {
		t.Errorf("ID = %q, want 42", profile.ID)
	}
}
