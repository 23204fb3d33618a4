package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

// jsonFieldNames はtの直下に出力されるJSONキーを返す。
// 値型の埋め込み構造体は展開し、ポインタの埋め込みは含めない。
func jsonFieldNames(t reflect.Type) []string {
	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" {
			if f.Type.Kind() == reflect.Struct {
				names = append(names, jsonFieldNames(f.Type)...)
			}
			continue
		}
		if name == "" {
			name = f.Name
		}
		names = append(names, name)
	}
	return names
}

// roleTypes はtに埋め込まれたロール固有のポインタ型を返す。
func roleTypes(t reflect.Type) []reflect.Type {
	var types []reflect.Type
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Pointer {
			types = append(types, f.Type.Elem())
		}
	}
	return types
}

// assertNoCollisions は汎用キーとロール固有キー、およびロール同士のキーが重複しないことを検証する。
// 同じ深さのキーが重複するとencoding/jsonは両方を出力しないため、値によらず型として検査する。
func assertNoCollisions(t *testing.T, parent reflect.Type) {
	t.Helper()

	owner := map[string]string{}
	for _, name := range jsonFieldNames(parent) {
		owner[name] = parent.Name()
	}
	for _, rt := range roleTypes(parent) {
		for _, name := range jsonFieldNames(rt) {
			if prev, ok := owner[name]; ok {
				t.Errorf("%s のキー %q が %s と重複している", rt.Name(), name, prev)
				continue
			}
			owner[name] = rt.Name()
		}
	}
}

func TestUserProfile_RoleKeysDoNotCollide(t *testing.T) {
	assertNoCollisions(t, reflect.TypeOf(UserProfile{}))
}

func TestAuthorizations_RoleKeysDoNotCollide(t *testing.T) {
	assertNoCollisions(t, reflect.TypeOf(Authorizations{}))
}

func TestUserProfile_MarshalSpreadsRoleData(t *testing.T) {
	p := UserProfile{Entity: Entity{ID: "100", Name: "DUPONT Jean"}}
	(&ParentData{IsDelegate: true, Students: []Student{}}).MergeInto(&p)
	(&ParentAuthorizations{StaffDiscussion: true}).MergeInto(&p.Authorizations)

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("JSONエンコードに失敗: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("JSONデコードに失敗: %v", err)
	}

	if out["id"] != "100" || out["isDelegate"] != true {
		t.Errorf("トップレベル = %v", out)
	}
	if _, ok := out["studentClass"]; ok {
		t.Error("nilの StudentData のキーが出力された")
	}
	auths, _ := out["authorizations"].(map[string]any)
	if auths["staffDiscussion"] != true {
		t.Errorf("authorizations = %v", auths)
	}
	if _, ok := auths["maxUserWorkFileSize"]; ok {
		t.Error("nilの StudentAuthorizations のキーが出力された")
	}
}

func TestEntity_MarshalKeepsZeroKind(t *testing.T) {
	data, err := json.Marshal(Entity{ID: "7", Name: "3A"})
	if err != nil {
		t.Fatalf("JSONエンコードに失敗: %v", err)
	}
	if got, want := string(data), `{"id":"7","name":"3A","kind":0}`; got != want {
		t.Errorf("JSON = %s, want %s", got, want)
	}
}

func TestStudent_MergeIntoCopiesStudentData(t *testing.T) {
	s := &Student{
		Entity:      Entity{ID: "42"},
		StudentData: StudentData{StudentClass: Entity{Name: "3A"}},
	}
	var p UserProfile

	s.MergeInto(&p)
	s.StudentClass.Name = "changed"

	if p.StudentData == nil || p.StudentClass.Name != "3A" {
		t.Errorf("StudentData = %+v", p.StudentData)
	}
	if p.ID != "" {
		t.Errorf("ID = %q, 生徒データのマージで識別子は変更されないべき", p.ID)
	}
}

func TestMalformedPayloadError(t *testing.T) {
	missing := &MalformedPayloadError{Path: "listeOnglets"}
	if got := missing.Error(); got != "malformed payload: missing listeOnglets" {
		t.Errorf("Error() = %q", got)
	}

	cause := &json.SyntaxError{}
	wrapped := &MalformedPayloadError{Path: "ressource", Err: cause}
	if wrapped.Unwrap() != cause {
		t.Error("Unwrap は原因エラーを返すべき")
	}
}
