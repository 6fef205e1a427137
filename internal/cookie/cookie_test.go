package cookie

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSession(t *testing.T) {
	cfg := NewConfig("cutroom.video", true, time.Hour)
	rec := httptest.NewRecorder()

	cfg.SetSession(rec, "abc")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, SessionCookieName, c.Name)
	assert.Equal(t, "abc", c.Value)
	assert.Equal(t, "cutroom.video", c.Domain)
	assert.Equal(t, 3600, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestClearSession(t *testing.T) {
	cfg := NewConfig("", false, time.Hour)
	rec := httptest.NewRecorder()

	cfg.ClearSession(rec)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
	assert.Empty(t, cookies[0].Value)
}

func TestGet(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, Get(req, SessionCookieName))

	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "xyz"})
	assert.Equal(t, "xyz", Get(req, SessionCookieName))
}

func TestSetReadable(t *testing.T) {
	cfg := NewConfig("cutroom.video", true, time.Hour)
	rec := httptest.NewRecorder()

	cfg.SetReadable(rec, "cutroom_csrf", "tok")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.False(t, cookies[0].HttpOnly, "script echoes this value")
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, "cutroom.video", cookies[0].Domain)
}
