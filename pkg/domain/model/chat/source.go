package chat

import "strings"

// Source is a citation returned alongside a generated answer.
type Source struct {
	Score   float64 `firestore:"score" json:"score"`
	Subject string  `firestore:"subject,omitempty" json:"subject,omitempty"`
	Class   string  `firestore:"class,omitempty" json:"class,omitempty"`
	Chapter string  `firestore:"chapter,omitempty" json:"chapter,omitempty"`
	Topic   string  `firestore:"topic,omitempty" json:"topic,omitempty"`
	Content string  `firestore:"content,omitempty" json:"content,omitempty"`
}

// RawSource is a citation as emitted by the search backend and by older
// stored records, where the same concept appears under several field names.
type RawSource struct {
	Score       float64 `json:"score"`
	Subject     string  `json:"subject"`
	Class       string  `json:"class"`
	Chapter     string  `json:"chapter"`
	ChapterName string  `json:"chapter_name"`
	Topic       string  `json:"topic"`
	Content     string  `json:"content"`
	FullText    string  `json:"full_text"`
	TextPreview string  `json:"text_preview"`
	Text        string  `json:"text"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Normalize maps the legacy field names onto the canonical Source.
func (x RawSource) Normalize() Source {
	score := x.Score
	switch {
	case score < 0:
		score = 0
	case score > 1:
		score = 1
	}

	return Source{
		Score:   score,
		Subject: x.Subject,
		Class:   x.Class,
		Chapter: firstNonEmpty(x.ChapterName, x.Chapter),
		Topic:   x.Topic,
		Content: firstNonEmpty(x.Content, x.FullText, x.TextPreview, x.Text),
	}
}

func NormalizeSources(raws []RawSource) []Source {
	if len(raws) == 0 {
		return nil
	}
	sources := make([]Source, len(raws))
	for i, raw := range raws {
		sources[i] = raw.Normalize()
	}
	return sources
}
