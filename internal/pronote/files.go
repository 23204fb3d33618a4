package pronote

import (
	"net/url"
	"strconv"

	"github.com/hitoshi/schoolprofile/internal/model"
)

// FileURLBuilder はリソースに紐づくファイルのダウンロードURLを組み立てる。
type FileURLBuilder struct {
	baseURL *url.URL
}

// NewFileURLBuilder はFileURLBuilderを生成する。
func NewFileURLBuilder(baseURL *url.URL) *FileURLBuilder {
	return &FileURLBuilder{baseURL: baseURL}
}

// BuildFileReference はリソースIDとファイル名からダウンロード先を生成する。
// URLは {portal}/FichiersExternes/{id}/{name}?Session={session} の形式。
func (b *FileURLBuilder) BuildFileReference(session model.Session, id, name string) model.FileReference {
	u := b.baseURL.JoinPath("FichiersExternes", id, name)
	q := u.Query()
	q.Set("Session", strconv.Itoa(session.ID))
	u.RawQuery = q.Encode()

	return model.FileReference{
		ID:   id,
		Name: name,
		URL:  u.String(),
	}
}
