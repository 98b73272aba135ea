package domain

import (
	"strings"
	"testing"

	"messaging-service/pkg/xerrors"
)

func TestMessageValidate(t *testing.T) {
	valid := Message{
		ID:        "m1",
		CreatorID: "alice",
		ChannelID: "chan-1",
		Body:      []Span{{Type: SpanText, Text: "hello"}},
	}

	tests := []struct {
		name    string
		mutate  func(m *Message)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Message) {}},
		{name: "missing id", mutate: func(m *Message) { m.ID = "" }, wantErr: true},
		{name: "missing creator", mutate: func(m *Message) { m.CreatorID = "" }, wantErr: true},
		{name: "missing channel", mutate: func(m *Message) { m.ChannelID = "" }, wantErr: true},
		{name: "empty body and attachments", mutate: func(m *Message) { m.Body = nil }, wantErr: true},
		{
			name: "attachment-only is fine",
			mutate: func(m *Message) {
				m.Body = nil
				m.Attachments = []Attachment{{Type: AttachmentImage, URL: "https://img"}}
			},
		},
		{
			name:    "mention without target",
			mutate:  func(m *Message) { m.Body = append(m.Body, Span{Type: SpanMention}) },
			wantErr: true,
		},
		{
			name:    "unknown span type",
			mutate:  func(m *Message) { m.Body = append(m.Body, Span{Type: "gif"}) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			m.Body = append([]Span(nil), valid.Body...)
			tt.mutate(&m)
			err := m.Validate()
			if tt.wantErr && err != xerrors.ErrInvalidRequest {
				t.Errorf("Validate() = %v, want ErrInvalidRequest", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestMentionedUserIDsKeepsOrderAndDuplicates(t *testing.T) {
	m := Message{Body: []Span{
		{Type: SpanMention, UserID: "bob"},
		{Type: SpanText, Text: " and "},
		{Type: SpanMention, UserID: "carol"},
		{Type: SpanMention, UserID: "bob"},
	}}
	got := m.MentionedUserIDs()
	want := []string{"bob", "carol", "bob"}
	if len(got) != len(want) {
		t.Fatalf("MentionedUserIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("MentionedUserIDs() = %v, want %v", got, want)
		}
	}
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		name string
		body []Span
		want string
	}{
		{
			name: "mention renders as alias",
			body: []Span{
				{Type: SpanText, Text: "ping "},
				{Type: SpanMention, UserID: "bob", Alias: "Bob"},
			},
			want: "ping @Bob",
		},
		{
			name: "mention without alias falls back to id",
			body: []Span{{Type: SpanMention, UserID: "bob"}},
			want: "@bob",
		},
		{
			name: "tag and link",
			body: []Span{
				{Type: SpanTag, Tag: "release"},
				{Type: SpanText, Text: " "},
				{Type: SpanLink, URL: "https://example.com"},
			},
			want: "#release https://example.com",
		},
		{
			name: "long body truncates with ellipsis",
			body: []Span{{Type: SpanText, Text: strings.Repeat("a", 150)}},
			want: strings.Repeat("a", 100) + "…",
		},
		{
			name: "multibyte runes count as one",
			body: []Span{{Type: SpanText, Text: strings.Repeat("ü", 100)}},
			want: strings.Repeat("ü", 100),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Message{Body: tt.body}
			if got := m.Excerpt(); got != tt.want {
				t.Errorf("Excerpt() = %q, want %q", got, tt.want)
			}
		})
	}
}
