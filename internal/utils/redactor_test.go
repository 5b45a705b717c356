package utils

import (
	"net/http"
	"strings"
	"testing"
)

func TestHeaderRedactor_Redact(t *testing.T) {
	redactor := NewHeaderRedactor()

	t.Run("敏感头部脱敏", func(t *testing.T) {
		tests := []struct {
			name  string
			value string
		}{
			{"Authorization", "Bearer token123"},
			{"X-Token", "longtoken123456789"},
			{"X-Api-Key", "key12345678"},
			{"X-Secret", "password123456"},
			{"Cookie", "session=abcdef123456"},
		}

		for _, tt := range tests {
			headers := http.Header{}
			headers.Set(tt.name, tt.value)
			redacted := redactor.Redact(headers)

			if !redactor.IsSensitiveHeader(tt.name) {
				t.Errorf("应该被识别为敏感头部: %s", tt.name)
				continue
			}
			got := redacted[tt.name]
			if got == tt.value || !strings.Contains(got, "*") {
				t.Errorf("敏感头部应该被脱敏: %s -> %s", tt.value, got)
			}
		}
	})

	t.Run("非敏感头部不脱敏", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("User-Agent", "Mozilla/5.0")
		headers.Set("Referer", "https://www.google.com/")
		redacted := redactor.Redact(headers)

		if redacted["User-Agent"] != "Mozilla/5.0" || redacted["Referer"] != "https://www.google.com/" {
			t.Errorf("非敏感头部不应被脱敏: %v", redacted)
		}
	})

	t.Run("脱敏策略", func(t *testing.T) {
		cases := map[string]string{
			"Bearer secret": "Bearer ***",
			"abcd12345678":  "abcd***5678",
			"short":         "***",
			"":              "***",
		}
		for in, want := range cases {
			if got := redactor.RedactHeaderValue("Authorization", in); got != want {
				t.Errorf("RedactHeaderValue(%q) = %q, want %q", in, got, want)
			}
		}
	})
}

func TestHeaderRedactor_RedactToString(t *testing.T) {
	redactor := NewHeaderRedactor()
	headers := http.Header{}
	headers.Set("X-B", "2")
	headers.Set("X-A", "1")
	headers.Set("Authorization", "Bearer x")

	want := "Authorization: Bearer ***, X-A: 1, X-B: 2"
	if got := redactor.RedactToString(headers); got != want {
		t.Errorf("RedactToString() = %q, want %q", got, want)
	}
}

func TestHeaderRedactor_RedactText(t *testing.T) {
	redactor := NewHeaderRedactor()
	text := "User-Agent: Bot/1.0\nCookie: session=abcdef123456\n\nbroken line"

	got := redactor.RedactText(text)
	lines := strings.Split(got, "\n")
	if lines[0] != "User-Agent: Bot/1.0" {
		t.Errorf("非敏感行被修改: %q", lines[0])
	}
	if lines[1] != "Cookie: sess***3456" {
		t.Errorf("Cookie行脱敏结果 = %q", lines[1])
	}
	if lines[3] != "broken line" {
		t.Errorf("无法解析的行应原样保留: %q", lines[3])
	}
}
