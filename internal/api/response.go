package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/otruyen/otruyen-api/internal/catalog"
	"github.com/otruyen/otruyen-api/internal/converter"
	"github.com/otruyen/otruyen-api/internal/epub"
)

// envelope is the body of every JSON response.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func errorBody(message, kind string) envelope {
	return envelope{Status: "error", Message: message, Kind: kind}
}

func (s *Server) success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Status: "success", Data: data})
}

// withDomains adds the frontend and image domains clients build links
// from.
func (s *Server) withDomains(data gin.H) gin.H {
	data["APP_DOMAIN_FRONTEND"] = s.opts.FrontendDomain
	data["APP_DOMAIN_CDN_IMAGE"] = s.opts.CDNImageDomain
	return data
}

type apiError struct {
	status  int
	message string
	kind    string
}

var sentinelErrors = []struct {
	target error
	apiError
}{
	{catalog.ErrItemNotFound, apiError{http.StatusNotFound, "Truyện không tìm thấy", "item_not_found"}},
	{catalog.ErrNotTextStory, apiError{http.StatusBadRequest, "Đây không phải là truyện chữ", "not_text_story"}},
	{catalog.ErrNotEbook, apiError{http.StatusBadRequest, "Đây không phải là ebook EPUB", "not_ebook"}},
	{catalog.ErrNoEpub, apiError{http.StatusNotFound, "Không tìm thấy file EPUB", "no_epub"}},
	{catalog.ErrEpubMissing, apiError{http.StatusNotFound, "File EPUB không tồn tại trên server", "epub_missing"}},
	{catalog.ErrKeywordRequired, apiError{http.StatusBadRequest, "Keyword parameter is required", "keyword_required"}},
	{converter.ErrNoCover, apiError{http.StatusNotFound, "Ebook không có ảnh bìa", "no_cover"}},
	{epub.ErrFileNotFound, apiError{http.StatusNotFound, "Không tìm thấy tài nguyên trong EPUB", "resource_not_found"}},
}

var kindErrors = map[converter.Kind]apiError{
	converter.KindArchiveNotFound:         {http.StatusNotFound, "File EPUB không tồn tại trên server", string(converter.KindArchiveNotFound)},
	converter.KindArchiveCorrupt:          {http.StatusInternalServerError, "Không thể đọc file EPUB", string(converter.KindArchiveCorrupt)},
	converter.KindChapterNotFound:         {http.StatusNotFound, "Không thể đọc nội dung chương", string(converter.KindChapterNotFound)},
	converter.KindChapterNumberOutOfRange: {http.StatusBadRequest, "Số chương không hợp lệ", string(converter.KindChapterNumberOutOfRange)},
}

// classify maps err to a status, a client message and a machine-readable
// kind.
func classify(err error) apiError {
	if kind, ok := converter.KindOf(err); ok {
		return kindErrors[kind]
	}
	for _, e := range sentinelErrors {
		if errors.Is(err, e.target) {
			return e.apiError
		}
	}
	return apiError{http.StatusInternalServerError, "Lỗi server nội bộ", "internal"}
}

func (s *Server) fail(c *gin.Context, err error) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey), "error", err)
	}
	c.AbortWithStatusJSON(e.status, errorBody(e.message, e.kind))
}

func (s *Server) badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody(message, "bad_request"))
}

// pageParam reads ?page=, falling back to 1 when absent or malformed.
func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func paginationParams(p catalog.Page, extra gin.H) gin.H {
	params := gin.H{"pagination": p.Pagination}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

func itemsOf(p catalog.Page) []catalog.Item {
	if p.Items == nil {
		return []catalog.Item{}
	}
	return p.Items
}
