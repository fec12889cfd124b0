package pagination

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestCursorRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rule    CursorRule
		wantErr bool
	}{
		{name: "absolute link", rule: AbsoluteLink("next")},
		{name: "token append", rule: TokenAppend("next_page_token", "page-token")},
		{name: "empty field", rule: AbsoluteLink(""), wantErr: true},
		{name: "token without param", rule: TokenAppend("next_page_token", ""), wantErr: true},
		{name: "zero value", rule: CursorRule{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCursorRule_Next_AbsoluteLink(t *testing.T) {
	rule := AbsoluteLink("next")
	first := "https://api.bitbucket.org/2.0/repositories/acme"

	tests := []struct {
		name     string
		page     Page
		wantNext string
		wantOK   bool
		wantErr  bool
	}{
		{
			name:     "next url present",
			page:     Page{"next": "https://api.bitbucket.org/2.0/repositories/acme?page=2"},
			wantNext: "https://api.bitbucket.org/2.0/repositories/acme?page=2",
			wantOK:   true,
		},
		{name: "field missing", page: Page{"values": []any{}}},
		{name: "field null", page: Page{"next": nil}},
		{name: "empty string", page: Page{"next": ""}},
		{name: "non-string value", page: Page{"next": json.Number("2")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok, err := rule.Next(first, tt.page)
			if next != tt.wantNext || ok != tt.wantOK {
				t.Errorf("Next() = (%q, %v), want (%q, %v)", next, ok, tt.wantNext, tt.wantOK)
			}
			if tt.wantErr {
				var cerr *CursorError
				if !errors.As(err, &cerr) {
					t.Fatalf("Next() error = %v, want *CursorError", err)
				}
				if cerr.Field != "next" {
					t.Errorf("CursorError.Field = %q, want next", cerr.Field)
				}
			} else if err != nil {
				t.Errorf("Next() unexpected error: %v", err)
			}
		})
	}
}

func TestCursorRule_Next_TokenAppend(t *testing.T) {
	rule := TokenAppend("next_page_token", "page-token")

	tests := []struct {
		name     string
		first    string
		page     Page
		wantNext string
		wantOK   bool
	}{
		{
			name:     "appends to existing query",
			first:    "https://api.example.com/items?pagelen=10",
			page:     Page{"next_page_token": "abc"},
			wantNext: "https://api.example.com/items?pagelen=10&page-token=abc",
			wantOK:   true,
		},
		{
			name:     "starts a query when none",
			first:    "https://circleci.com/api/v2/project/gh/acme/web/envvar",
			page:     Page{"next_page_token": "abc"},
			wantNext: "https://circleci.com/api/v2/project/gh/acme/web/envvar?page-token=abc",
			wantOK:   true,
		},
		{
			name:     "preserves multi-parameter order",
			first:    "https://api.example.com/items?z=1&a=2",
			page:     Page{"next_page_token": "t"},
			wantNext: "https://api.example.com/items?z=1&a=2&page-token=t",
			wantOK:   true,
		},
		{
			name:     "escapes token",
			first:    "https://api.example.com/items?pagelen=10",
			page:     Page{"next_page_token": "a+b/c="},
			wantNext: "https://api.example.com/items?pagelen=10&page-token=a%2Bb%2Fc%3D",
			wantOK:   true,
		},
		{
			name:     "trailing question mark",
			first:    "https://api.example.com/items?",
			page:     Page{"next_page_token": "abc"},
			wantNext: "https://api.example.com/items?page-token=abc",
			wantOK:   true,
		},
		{
			name:   "token absent",
			first:  "https://api.example.com/items?pagelen=10",
			page:   Page{"items": []any{}},
			wantOK: false,
		},
		{
			name:   "token null",
			first:  "https://api.example.com/items?pagelen=10",
			page:   Page{"next_page_token": nil},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok, err := rule.Next(tt.first, tt.page)
			if err != nil {
				t.Fatalf("Next() unexpected error: %v", err)
			}
			if next != tt.wantNext || ok != tt.wantOK {
				t.Errorf("Next() = (%q, %v), want (%q, %v)", next, ok, tt.wantNext, tt.wantOK)
			}
		})
	}
}

func TestCursorRule_Next_TokenAlwaysBuildsOnFirstURL(t *testing.T) {
	rule := TokenAppend("next_page_token", "page-token")
	first := "https://api.example.com/items?pagelen=10"

	second, _, _ := rule.Next(first, Page{"next_page_token": "p2"})
	third, _, _ := rule.Next(first, Page{"next_page_token": "p3"})

	if third != "https://api.example.com/items?pagelen=10&page-token=p3" {
		t.Errorf("third URL = %q, tokens must not accumulate (second was %q)", third, second)
	}
}

func TestCursorError_Error(t *testing.T) {
	err := &CursorError{Field: "next_page_token", Value: json.Number("42")}
	want := `cursor field "next_page_token" holds json.Number, want string`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCursorMode_String(t *testing.T) {
	if ModeAbsoluteLink.String() != "absolute_link" {
		t.Errorf("ModeAbsoluteLink.String() = %q", ModeAbsoluteLink.String())
	}
	if ModeTokenAppend.String() != "token_append" {
		t.Errorf("ModeTokenAppend.String() = %q", ModeTokenAppend.String())
	}
	if CursorMode(9).String() != "CursorMode(9)" {
		t.Errorf("unknown mode String() = %q", CursorMode(9).String())
	}
}
