package catalog

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/otruyen/otruyen-api/internal/store"
)

// Item is one library entry: a comic, an ebook or a text story. Fields not
// modelled here are kept in Extra and written back unchanged.
type Item struct {
	ID                 string          `json:"_id"`
	Name               string          `json:"name"`
	Slug               string          `json:"slug"`
	OriginName         StringList      `json:"origin_name"`
	ItemType           string          `json:"itemType"`
	Status             string          `json:"status,omitempty"`
	ThumbURL           string          `json:"thumb_url"`
	ThumbURLFull       string          `json:"thumb_url_full"`
	LocalCoverFilename string          `json:"localCoverFilename,omitempty"`
	LocalEpubFilename  string          `json:"localEpubFilename,omitempty"`
	Category           CategoryList    `json:"category"`
	Chapters           []ChapterServer `json:"chapters,omitempty"`
	ChaptersLatest     []ChapterLink   `json:"chaptersLatest"`
	Content            string          `json:"content,omitempty"`
	CreatedAt          Timestamp       `json:"createdAt,omitempty"`
	UpdatedAt          Timestamp       `json:"updatedAt,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Item types.
const (
	TypeComic     = "comic"
	TypeEbook     = "ebook"
	TypeTextStory = "text_story"
)

// Category is a genre tag attached to items.
type Category struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ChapterServer groups chapter links by source.
type ChapterServer struct {
	ServerName string        `json:"server_name"`
	ServerData []ChapterLink `json:"server_data"`
}

// ChapterLink points at one readable chapter.
type ChapterLink struct {
	Filename       string `json:"filename"`
	ChapterName    string `json:"chapter_name"`
	ChapterTitle   string `json:"chapter_title"`
	ChapterAPIData string `json:"chapter_api_data"`
}

var itemFields = map[string]bool{
	"_id": true, "name": true, "slug": true, "origin_name": true, "itemType": true,
	"status": true, "thumb_url": true, "thumb_url_full": true,
	"localCoverFilename": true, "localEpubFilename": true, "category": true,
	"chapters": true, "chaptersLatest": true, "content": true,
	"createdAt": true, "updatedAt": true,
}

type itemAlias Item

func (it *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var alias itemAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*it = Item(alias)
	for k, v := range raw {
		if itemFields[k] {
			continue
		}
		if it.Extra == nil {
			it.Extra = make(map[string]json.RawMessage)
		}
		it.Extra[k] = v
	}
	return nil
}

func (it Item) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(itemAlias(it))
	if err != nil || len(it.Extra) == 0 {
		return data, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range it.Extra {
		if _, known := merged[k]; !known && !itemFields[k] {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// decodeItem parses a stored record. Values that are not objects are
// reported as false.
func decodeItem(rec store.Record) (Item, bool) {
	v := bytes.TrimSpace(rec.Value)
	if len(v) == 0 || v[0] != '{' {
		return Item{}, false
	}
	var it Item
	if err := json.Unmarshal(v, &it); err != nil {
		return Item{}, false
	}
	return it, true
}

// StringList decodes a list of strings; any other JSON value decodes empty.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var values []json.RawMessage
	if err := json.Unmarshal(data, &values); err != nil {
		*l = nil
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		var s string
		if json.Unmarshal(v, &s) == nil {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

// Joined returns the names separated by spaces.
func (l StringList) Joined() string {
	return strings.Join(l, " ")
}

// CategoryList decodes a list of categories, dropping malformed entries.
type CategoryList []Category

func (l *CategoryList) UnmarshalJSON(data []byte) error {
	var values []json.RawMessage
	if err := json.Unmarshal(data, &values); err != nil {
		*l = nil
		return nil
	}
	out := make([]Category, 0, len(values))
	for _, v := range values {
		var c Category
		if json.Unmarshal(v, &c) == nil && c.Slug != "" && c.Name != "" {
			out = append(out, c)
		}
	}
	*l = out
	return nil
}

// Has reports whether the list contains the category slug.
func (l CategoryList) Has(slug string) bool {
	for _, c := range l {
		if c.Slug == slug {
			return true
		}
	}
	return false
}

// Timestamp is a creation or update time stored either as an ISO string or
// as epoch milliseconds. It is kept verbatim.
type Timestamp []byte

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if len(t) == 0 {
		return []byte("null"), nil
	}
	return t, nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*t = nil
		return nil
	}
	*t = append((*t)[:0], data...)
	return nil
}

// Compare orders timestamps; missing values sort first.
func (t Timestamp) Compare(other Timestamp) int {
	return store.CompareValues(json.RawMessage(t), json.RawMessage(other))
}
