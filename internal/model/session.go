package model

// Role はポータルにログインしているアクターの種別を表す。
// セッション確立時に外部で決定され、このサービスが再判定することはない。
type Role string

const (
	RoleStudent        Role = "student"
	RoleParent         Role = "parent"
	RoleTeacher        Role = "teacher"
	RoleAdministration Role = "administration"
)

// Session はポータルとの確立済みセッションを表す。
// 認証そのものは扱わず、呼び出し元から渡された値をそのまま信頼する。
type Session struct {
	ID    int  // ポータルのセッション番号
	Space int  // appelfonction のURLに含まれる空間番号
	Role  Role // ロール固有データの振り分けに使う
}
