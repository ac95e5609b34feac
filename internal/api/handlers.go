package api

import (
	"net/http"
	"os"
	"runtime"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/otruyen/otruyen-api/internal/catalog"
)

const serviceName = "OTruyen API Server"

// Version is reported by the index endpoint.
var Version = "dev"

func (s *Server) index(c *gin.Context) {
	sub := strings.Trim(s.opts.EbooksSubpath, "/")
	c.JSON(http.StatusOK, gin.H{
		"name":        serviceName,
		"version":     Version,
		"go":          runtime.Version(),
		"description": "Máy chủ API cho dữ liệu truyện tranh và ebook.",
		"endpoints": gin.H{
			"/v1/api/home":                                   "Danh sách truyện trang chủ (truyện tranh & ebook mới nhất)",
			"/v1/api/danh-sach/{type}":                       "Danh sách theo trạng thái/loại (truyen-moi, ebook-moi, hoan-thanh, dang-phat-hanh, sap-ra-mat)",
			"/v1/api/the-loai":                               "Danh sách thể loại",
			"/v1/api/the-loai/{slug}":                        "Truyện theo thể loại",
			"/v1/api/truyen-tranh/{slug_or_id}":              "Chi tiết truyện",
			"/v1/api/tim-kiem?keyword=":                      "Tìm kiếm theo từ khóa",
			"/v1/api/truyen-chu/{slug_or_id}":                "Nội dung truyện chữ",
			"/v1/api/truyen-chu/{slug_or_id}/muc-luc":        "Mục lục EPUB",
			"/v1/api/truyen-chu/{slug_or_id}/chuong/{n}":     "Nội dung chương EPUB",
			"/v1/api/truyen-chu/{slug_or_id}/cover?width=":   "Ảnh bìa thu nhỏ",
			"/v1/api/truyen-chu/{slug_or_id}/tai-nguyen/{p}": "Tài nguyên trong EPUB (ảnh minh họa)",
			"/table-of-contents?id=":                         "Mục lục nội dung",
			"/chapter?id=&number=":                           "Nội dung chương kèm điều hướng",
			"/" + sub + "/{slug}/{filename}":                 "File media ebook",
			"/health":                                        "Kiểm tra tình trạng",
		},
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "message": serviceName + " đang hoạt động"})
}

func (s *Server) home(c *gin.Context) {
	page, err := s.library.Home(c.Request.Context(), pageParam(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, s.withDomains(gin.H{
		"seoOnPage": gin.H{"titleHead": "Trang chủ - Truyện mới cập nhật"},
		"items":     itemsOf(page),
		"params":    paginationParams(page, nil),
	}))
}

func (s *Server) list(c *gin.Context) {
	typeSlug := c.Param("type")
	page, err := s.library.List(c.Request.Context(), typeSlug, pageParam(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, s.withDomains(gin.H{
		"titlePage": catalog.TitleFromSlug(typeSlug),
		"items":     itemsOf(page),
		"params":    paginationParams(page, gin.H{"type_slug": typeSlug}),
	}))
}

type categoryResponse struct {
	ID   string `json:"_id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

func (s *Server) categories(c *gin.Context) {
	cats, err := s.library.Categories(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	items := make([]categoryResponse, len(cats))
	for i, cat := range cats {
		items[i] = categoryResponse{ID: cat.ID, Slug: cat.Slug, Name: cat.Name}
	}
	s.success(c, gin.H{"items": items})
}

func (s *Server) byCategory(c *gin.Context) {
	slug := c.Param("slug")
	page, err := s.library.ByCategory(c.Request.Context(), slug, pageParam(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, s.withDomains(gin.H{
		"titlePage": catalog.TitleFromSlug(slug),
		"items":     itemsOf(page),
		"params":    paginationParams(page, gin.H{"type_slug": "the-loai", "slug": slug}),
	}))
}

func (s *Server) detail(c *gin.Context) {
	item, err := s.library.Detail(c.Request.Context(), c.Param("slug"))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, s.withDomains(gin.H{"item": item}))
}

func (s *Server) search(c *gin.Context) {
	keyword := strings.ToLower(strings.TrimSpace(c.Query("keyword")))
	page, err := s.library.Search(c.Request.Context(), keyword, pageParam(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, s.withDomains(gin.H{
		"titlePage": "Tìm kiếm: " + keyword,
		"items":     itemsOf(page),
		"params":    paginationParams(page, gin.H{"keyword": keyword}),
	}))
}

// media serves cover images and EPUB files from the media tree.
func (s *Server) media(c *gin.Context) {
	path, err := s.library.MediaPath(c.Param("slug"), strings.TrimPrefix(c.Param("filename"), "/"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody("Không tìm thấy file media ebook", "media_not_found"))
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		c.AbortWithStatusJSON(http.StatusNotFound, errorBody("Không tìm thấy file media ebook", "media_not_found"))
		return
	}
	c.File(path)
}
