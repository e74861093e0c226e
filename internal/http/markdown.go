package http

import (
	"bytes"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

// raw HTML in announcement content is not passed through
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

type announcementView struct {
	model.Announcement
	ContentHTML string `json:"contentHtml,omitempty"`
}

func renderMarkdown(src string) string {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(src), &buf); err != nil {
		return ""
	}
	return buf.String()
}

func viewAnnouncements(items []model.Announcement) []announcementView {
	out := make([]announcementView, 0, len(items))
	for _, item := range items {
		out = append(out, announcementView{Announcement: item, ContentHTML: renderMarkdown(item.Content)})
	}
	return out
}
