package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/otruyen/otruyen-api/internal/catalog"
	"github.com/otruyen/otruyen-api/internal/converter"
)

type storyInfo struct {
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	TotalChapters int    `json:"totalChapters"`
}

type chapterBody struct {
	Number      int      `json:"number"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	HTMLContent string   `json:"html_content"`
	Href        string   `json:"href"`
	Images      []string `json:"images,omitempty"`
}

type navigation struct {
	PreviousChapter *int `json:"previousChapter"`
	NextChapter     *int `json:"nextChapter"`
}

func contentChapters(toc *converter.TableOfContents) []converter.ContentChapterEntry {
	if toc.Chapters == nil {
		return []converter.ContentChapterEntry{}
	}
	return toc.Chapters
}

func newChapterBody(ch *converter.Chapter) chapterBody {
	return chapterBody{
		Number:      ch.Entry.Number,
		Title:       ch.Content.Title,
		Content:     ch.Content.Content,
		HTMLContent: ch.Content.HTMLContent,
		Href:        ch.Entry.Href,
		Images:      ch.Content.Images,
	}
}

func (s *Server) textStory(c *gin.Context) {
	story, err := s.library.TextStory(c.Request.Context(), c.Param("slug"), s.reader)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, s.withDomains(gin.H{"item": story.Item, "content": story.Content}))
}

// ebook resolves the slug parameter or the id query to an EPUB file.
func (s *Server) ebook(c *gin.Context, slugOrID string) (*catalog.Ebook, bool) {
	eb, err := s.library.Ebook(c.Request.Context(), slugOrID)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return eb, true
}

func (s *Server) storyTOC(c *gin.Context) {
	eb, ok := s.ebook(c, c.Param("slug"))
	if !ok {
		return
	}
	toc, err := s.reader.TableOfContents(eb.Path)
	if err != nil {
		s.fail(c, err)
		return
	}
	if len(toc.Entries) == 0 {
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("Không thể đọc mục lục EPUB", "empty_toc"))
		return
	}
	chapters := contentChapters(toc)
	s.success(c, gin.H{
		"story":    storyInfo{Title: eb.Item.Name, Slug: eb.Slug, TotalChapters: len(chapters)},
		"chapters": chapters,
	})
}

func (s *Server) storyChapter(c *gin.Context) {
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		s.badRequest(c, "Số chương không hợp lệ")
		return
	}
	eb, ok := s.ebook(c, c.Param("slug"))
	if !ok {
		return
	}
	ch, err := s.reader.Chapter(eb.Path, number)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, gin.H{
		"chapter":    newChapterBody(ch),
		"story":      storyInfo{Title: eb.Item.Name, Slug: eb.Slug, TotalChapters: ch.Total},
		"navigation": navigation{PreviousChapter: ch.Previous, NextChapter: ch.Next},
	})
}

// tableOfContents lists the content chapters of the item named by ?id=.
func (s *Server) tableOfContents(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		s.badRequest(c, "Thiếu tham số id")
		return
	}
	eb, ok := s.ebook(c, id)
	if !ok {
		return
	}
	toc, err := s.reader.TableOfContents(eb.Path)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, contentChapters(toc))
}

type chapterResponse struct {
	chapterBody
	TotalChapters int `json:"totalChapters"`
	navigation
}

// chapter renders content chapter ?number= of the item named by ?id=.
func (s *Server) chapter(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		s.badRequest(c, "Thiếu tham số id")
		return
	}
	number, err := strconv.Atoi(c.Query("number"))
	if err != nil {
		s.badRequest(c, "Số chương không hợp lệ")
		return
	}
	eb, ok := s.ebook(c, id)
	if !ok {
		return
	}
	ch, err := s.reader.Chapter(eb.Path, number)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.success(c, chapterResponse{
		chapterBody:   newChapterBody(ch),
		TotalChapters: ch.Total,
		navigation:    navigation{PreviousChapter: ch.Previous, NextChapter: ch.Next},
	})
}

func (s *Server) cover(c *gin.Context) {
	width := s.opts.CoverWidth
	if w := c.Query("width"); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil || n < 1 {
			s.badRequest(c, "Chiều rộng ảnh không hợp lệ")
			return
		}
		width = n
	}
	eb, ok := s.ebook(c, c.Param("slug"))
	if !ok {
		return
	}
	thumb, err := s.reader.Cover(eb.Path, width)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, thumb.MediaType, thumb.Data)
}

// resource serves a part of the EPUB, such as an image a chapter refers to.
func (s *Server) resource(c *gin.Context) {
	part := strings.TrimPrefix(c.Param("part"), "/")
	if part == "" {
		s.badRequest(c, "Thiếu đường dẫn tài nguyên")
		return
	}
	eb, ok := s.ebook(c, c.Param("slug"))
	if !ok {
		return
	}
	data, mediaType, err := s.reader.Resource(eb.Path, part)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, mediaType, data)
}
