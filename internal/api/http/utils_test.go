package apihttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"torrentsession/internal/domain"
)

func TestPathTail(t *testing.T) {
	cases := []struct {
		path, prefix, want string
	}{
		{"/torrents/abc", "/torrents/", "abc"},
		{"/torrents/abc/", "/torrents/", "abc"},
		{"/torrents/", "/torrents/", ""},
		{"/categories/a/b", "/categories/", "a/b"},
	}
	for _, tc := range cases {
		if got := pathTail(tc.path, tc.prefix); got != tc.want {
			t.Errorf("pathTail(%q, %q) = %q, want %q", tc.path, tc.prefix, got, tc.want)
		}
	}
}

func TestParseTorrentIDs(t *testing.T) {
	got := parseTorrentIDs([]string{" ABCDEF ", "", "012345"})
	want := []domain.TorrentID{"abcdef", "012345"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("parseTorrentIDs = %v, want %v", got, want)
	}
}

func TestWriteSessionErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrNotFound, http.StatusNotFound, "not_found"},
		{domain.ErrAlreadyExists, http.StatusConflict, "already_exists"},
		{domain.ErrInvalidName, http.StatusBadRequest, "invalid_request"},
		{domain.ErrHasSubcategories, http.StatusConflict, "has_subcategories"},
		{domain.ErrShuttingDown, http.StatusServiceUnavailable, "shutting_down"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeSessionError(rec, tc.err)
		if rec.Code != tc.status {
			t.Errorf("status for %v = %d, want %d", tc.err, rec.Code, tc.status)
		}
		var envelope errorEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if envelope.Error.Code != tc.code {
			t.Errorf("code for %v = %q, want %q", tc.err, envelope.Error.Code, tc.code)
		}
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/tags", strings.NewReader(`{"tag":"x","bogus":1}`))
	var req tagRequest
	if err := decodeJSON(r, &req); err == nil {
		t.Fatalf("unknown field accepted")
	}
}
