package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/drawpile/listform/db"
	"github.com/drawpile/listform/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdminPassword = "hunter2"

func newTestServer(t *testing.T, adjust func(cfg *config)) *server {
	t.Helper()

	cfg := defaultConfig()
	cfg.Name = "Test server"
	if adjust != nil {
		adjust(cfg)
	}

	database, err := db.InitDatabase("memory", cfg.SessionTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	s, err := newServer(cfg, database, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	s.lookup = func(host string) ([]net.IP, error) {
		if host == "example.com" {
			return []net.IP{net.ParseIP("192.0.2.1")}, nil
		}
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	s.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	return s
}

func withAdmin(t *testing.T) func(cfg *config) {
	hash, err := hashPassword(testAdminPassword)
	require.NoError(t, err)
	return func(cfg *config) {
		cfg.AdminUser = "admin"
		cfg.AdminPassHash = hash
	}
}

func validAnnouncement() url.Values {
	return url.Values{
		"id":       {"my-session"},
		"protocol": {"dp:4.24.0"},
		"title":    {"Test session"},
		"owner":    {"tester"},
		"users":    {"1"},
		"port":     {"27750"},
	}
}

func postForm(h http.Handler, path string, form url.Values, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIndexEmpty(t *testing.T) {
	h := newTestServer(t, nil).routes()

	rec := get(h, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No sessions are listed right now.")
	assert.NotContains(t, rec.Body.String(), "invalid-feedback")
}

func TestAnnounceForm(t *testing.T) {
	h := newTestServer(t, nil).routes()

	rec := get(h, "/announce", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `value="27750"`)
	assert.NotContains(t, body, "invalid-feedback")
	assert.NotContains(t, body, "is-invalid")
}

func TestAnnounceBlankFields(t *testing.T) {
	h := newTestServer(t, nil).routes()

	form := validAnnouncement()
	form.Set("title", "")
	form.Set("owner", "  ")

	rec := postForm(h, "/announce", form, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, `<div class="d-block invalid-feedback">can&#39;t be blank</div>`))
	assert.Contains(t, body, `value="my-session"`)
	assert.Equal(t, 2, strings.Count(body, "is-invalid"))
}

func TestAnnounceJoinsMessages(t *testing.T) {
	h := newTestServer(t, nil).routes()

	form := validAnnouncement()
	form.Set("id", strings.Repeat("x", 36)+"!!!!")

	rec := postForm(h, "/announce", form, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(),
		`<div class="d-block invalid-feedback">is too long (maximum is 36 characters) and may only contain letters, numbers and dashes</div>`)

	t.Run("localized", func(t *testing.T) {
		rec := postForm(h, "/announce", form, http.Header{"Accept-Language": {"de-DE,de;q=0.9"}})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "is too long (maximum is 36 characters) und may only contain")
	})
}

func TestAnnounceNotANumber(t *testing.T) {
	h := newTestServer(t, nil).routes()

	form := validAnnouncement()
	form.Set("port", "http")

	rec := postForm(h, "/announce", form, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `<div class="d-block invalid-feedback">is not a number</div>`)
	assert.Contains(t, rec.Body.String(), `value="http"`)
}

func TestAnnounceEchoesEscapedInput(t *testing.T) {
	h := newTestServer(t, nil).routes()

	form := validAnnouncement()
	form.Set("host", "<b>nope<b>")

	rec := postForm(h, "/announce", form, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<div class="d-block invalid-feedback">could not be resolved</div>`)
	assert.Contains(t, body, `value="&lt;b&gt;nope&lt;b&gt;"`)
	assert.NotContains(t, body, "<b>nope")
}

func TestAnnounceSuccess(t *testing.T) {
	h := newTestServer(t, nil).routes()

	rec := postForm(h, "/announce", validAnnouncement(), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/", location.Path)
	assert.Equal(t, "1", location.Query().Get("announced"))
	key := location.Query().Get("key")
	require.NotEmpty(t, key)

	rec = get(h, location.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Your session has been listed. Update key: "+key)
	assert.Contains(t, body, "Test session")
	assert.Contains(t, body, "192.0.2.1:27750/my-session")

	t.Run("duplicate", func(t *testing.T) {
		rec := postForm(h, "/announce", validAnnouncement(), nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), `<div class="d-block invalid-feedback">is already listed</div>`)
	})
}

func TestAnnounceNamedHost(t *testing.T) {
	h := newTestServer(t, nil).routes()

	form := validAnnouncement()
	form.Set("host", "example.com")

	rec := postForm(h, "/announce", form, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = get(h, "/", nil)
	assert.Contains(t, rec.Body.String(), "example.com:27750/my-session")
}

func TestAnnounceNsfmWords(t *testing.T) {
	h := newTestServer(t, nil).routes()

	form := validAnnouncement()
	form.Set("title", "nsfw drawing")

	rec := postForm(h, "/announce", form, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = get(h, "/", nil)
	assert.NotContains(t, rec.Body.String(), "nsfw drawing")

	rec = get(h, "/?nsfm=true", nil)
	assert.Contains(t, rec.Body.String(), "nsfw drawing")
}

func TestIndexProtocolFilter(t *testing.T) {
	h := newTestServer(t, nil).routes()

	form := validAnnouncement()
	form.Set("title", "Old protocol")
	form.Set("protocol", "dp:4.20.0")
	require.Equal(t, http.StatusSeeOther, postForm(h, "/announce", form, nil).Code)

	form = validAnnouncement()
	form.Set("id", "newer")
	form.Set("title", "New protocol")
	require.Equal(t, http.StatusSeeOther, postForm(h, "/announce", form, nil).Code)

	rec := get(h, "/?protocol=dp:4.20.0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Old protocol")
	assert.NotContains(t, body, "New protocol")
	assert.Contains(t, body, `name="protocol" value="dp:4.20.0"`)

	rec = get(h, "/?protocol=dp:4.20.0,dp:4.24.0", nil)
	assert.Contains(t, rec.Body.String(), "Old protocol")
	assert.Contains(t, rec.Body.String(), "New protocol")

	rec = get(h, "/", nil)
	assert.Contains(t, rec.Body.String(), "Old protocol")
	assert.Contains(t, rec.Body.String(), "New protocol")
}

func TestAnnounceHostLimit(t *testing.T) {
	h := newTestServer(t, func(cfg *config) {
		cfg.MaxSessionsPerHost = 1
		cfg.MaxSessionsPerNamedHost = 1
	}).routes()

	rec := postForm(h, "/announce", validAnnouncement(), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	form := validAnnouncement()
	form.Set("id", "second")
	rec = postForm(h, "/announce", form, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "already has the maximum of 1 listings")
}

func TestAnnounceBannedHost(t *testing.T) {
	h := newTestServer(t, func(cfg *config) {
		cfg.BannedHosts = []string{"192.0.2.1"}
	}).routes()

	rec := postForm(h, "/announce", validAnnouncement(), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `<div class="d-block invalid-feedback">is not allowed to announce here</div>`)
}

func TestAnnounceRateLimit(t *testing.T) {
	s := newTestServer(t, nil)
	s.ratelimiter = ratelimit.NewBucketMap(ratelimit.Limits{
		BurstDuration:     1000,
		MaxTokensPerBurst: 1,
		PenaltyTimeLimit:  1000,
	})
	h := s.routes()

	rec := postForm(h, "/announce", validAnnouncement(), nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	form := validAnnouncement()
	form.Set("id", "again")
	rec = postForm(h, "/announce", form, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `<div class="d-block invalid-feedback">Too many requests. Wait `)
}

func TestAdminDisabled(t *testing.T) {
	h := newTestServer(t, nil).routes()

	rec := get(h, "/admin/bans", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminUnauthorized(t *testing.T) {
	h := newTestServer(t, withAdmin(t)).routes()

	rec := get(h, "/admin/bans", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/admin/bans", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func adminHeader() http.Header {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth("admin", testAdminPassword)
	return req.Header
}

func TestAdminBans(t *testing.T) {
	h := newTestServer(t, withAdmin(t)).routes()

	rec := get(h, "/admin/bans", adminHeader())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Signed in as admin")
	assert.Contains(t, rec.Body.String(), "No hosts are banned.")

	t.Run("invalid", func(t *testing.T) {
		form := url.Values{"host": {""}, "expires": {"yesterday"}, "notes": {"spam"}}
		rec := postForm(h, "/admin/bans", form, adminHeader())
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `<div class="d-block invalid-feedback">can&#39;t be blank</div>`)
		assert.Contains(t, body, `value="yesterday"`)
		assert.Contains(t, body, ">spam</textarea>")
	})

	t.Run("created", func(t *testing.T) {
		form := url.Values{"host": {"192.0.2.1"}, "expires": {""}, "notes": {"spam"}}
		rec := postForm(h, "/admin/bans", form, adminHeader())
		require.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/admin/bans?created=1", rec.Header().Get("Location"))

		rec = get(h, "/admin/bans?created=1", adminHeader())
		assert.Contains(t, rec.Body.String(), "Host ban added.")
		assert.Contains(t, rec.Body.String(), "<td>192.0.2.1</td><td>never</td>")
	})

	t.Run("banned host cannot announce", func(t *testing.T) {
		rec := postForm(h, "/announce", validAnnouncement(), nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), "is not allowed to announce here")
	})
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil).routes()

	rec := get(h, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "Test server", body["name"])
}

func TestParseIp(t *testing.T) {
	assert.Equal(t, "192.0.2.1", parseIp("192.0.2.1:1234").String())
	assert.Equal(t, "::1", parseIp("[::1]:80").String())
	assert.Equal(t, "10.0.0.1", parseIp("10.0.0.1").String())
	assert.Nil(t, parseIp("nonsense"))
}
