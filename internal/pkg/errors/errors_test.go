package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "timeline is empty")

	if err.Code != CodeValidation {
		t.Errorf("expected code=%s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "timeline is empty" {
		t.Errorf("expected message='timeline is empty', got %s", err.Message)
	}
	if len(err.Stack) == 0 {
		t.Error("expected stack trace to be captured")
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "simple error",
			err:      New(CodeEncode, "encoder failed"),
			contains: []string{"ENCODE_ERROR", "encoder failed"},
		},
		{
			name: "error with op and cause",
			err: &Error{
				Code:    CodeDecode,
				Message: "image could not be decoded",
				Op:      "source.decode",
				Err:     fmt.Errorf("open /photos/2024-01-01.jpg: no such file"),
			},
			contains: []string{"source.decode", "DECODE_ERROR", "no such file"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			str := tt.err.Error()
			for _, c := range tt.contains {
				if !strings.Contains(str, c) {
					t.Errorf("expected error string to contain %q, got: %s", c, str)
				}
			}
		})
	}
}

func TestWrapKeepsCode(t *testing.T) {
	inner := New(CodeConfiguration, "odd frame width")
	wrapped := Wrap(inner, "video.finish", "encoder preflight failed")

	if wrapped.Code != CodeConfiguration {
		t.Errorf("expected code=%s, got %s", CodeConfiguration, wrapped.Code)
	}
	if !Is(wrapped, &Error{Code: CodeConfiguration}) {
		t.Error("expected errors.Is to match by code")
	}
	if Wrap(nil, "op", "msg") != nil {
		t.Error("expected Wrap(nil) to be nil")
	}
}

func TestWrapForeignErrorIsInternal(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("boom"), "op", "failed")
	if wrapped.Code != CodeInternal {
		t.Errorf("expected code=%s, got %s", CodeInternal, wrapped.Code)
	}
}

func TestPublicMessageHidesCause(t *testing.T) {
	err := WrapWithCode(fmt.Errorf("exec: /usr/bin/ffmpeg: exit status 1"), CodeEncode, "video.batch", "external encoder failed")

	msg := PublicMessage(err)
	if msg != "ENCODE_ERROR: external encoder failed" {
		t.Errorf("expected public message without cause, got %q", msg)
	}
	if strings.Contains(msg, "/usr/bin") {
		t.Errorf("public message leaks a path: %q", msg)
	}
	if PublicMessage(fmt.Errorf("raw /tmp/x")) != "INTERNAL_ERROR: internal error" {
		t.Errorf("expected generic message for foreign errors")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, 400},
		{CodeNotFound, 404},
		{CodeConflict, 409},
		{CodeConfiguration, 422},
		{CodeUnavailable, 503},
		{CodeEncode, 500},
	}
	for _, tt := range tests {
		if got := New(tt.code, "x").HTTPStatus(); got != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.code, tt.want, got)
		}
	}
	if GetHTTPStatus(fmt.Errorf("plain")) != 500 {
		t.Error("expected 500 for plain errors")
	}
}

func TestFields(t *testing.T) {
	err := ValidationField("entries[1].day", "day keys must be strictly increasing")
	fields := GetFields(err)
	if fields["field"] != "entries[1].day" {
		t.Errorf("expected field entry, got %v", fields)
	}
	if !IsValidation(err) {
		t.Error("expected IsValidation to be true")
	}
}
