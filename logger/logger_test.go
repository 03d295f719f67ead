package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestNewTagsService(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "journal")
	log.Info().Msg("hello")

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if got["service"] != "journal" {
		t.Errorf("service = %v, want journal", got["service"])
	}
	if _, ok := got["time"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(NewWithWriter(&buf, "test")))
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })

	for _, path := range []string{"/ok", "/boom"} {
		buf.Reset()
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("%s: log line is not JSON: %v (%q)", path, err, buf.String())
		}
		if line["uri"] != path {
			t.Errorf("uri = %v, want %s", line["uri"], path)
		}
		if path == "/boom" && line["level"] != "error" {
			t.Errorf("level = %v, want error", line["level"])
		}
	}
}
