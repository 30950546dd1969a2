package main

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/drawpile/listform/db"
	"github.com/drawpile/listform/validation"
)

const defaultPort = 27750

func (s *server) page(title string) *pageData {
	return &pageData{
		Title:       title,
		ServerName:  s.cfg.Name,
		Description: s.cfg.Description,
		Errors:      validation.NewErrors(),
	}
}

// Show the session list
func (s *server) indexHandler(r *http.Request) http.Handler {
	opts := db.QueryOptions{
		Title:    r.URL.Query().Get("title"),
		Nsfm:     r.URL.Query().Get("nsfm") == "true",
		Protocol: r.URL.Query().Get("protocol"),
	}

	list, err := s.db.QuerySessionList(r.Context(), opts)
	if err != nil {
		s.logger.Error("Session list query error", "error", err)
		return ErrorResponse("An error occurred while querying session list", http.StatusInternalServerError)
	}

	data := s.page("Sessions")
	data.Query = opts
	data.Sessions = list
	if r.URL.Query().Get("announced") != "" {
		data.Notice = "Your session has been listed."
		if key := r.URL.Query().Get("key"); key != "" {
			data.Notice += " Update key: " + key
		}
	}

	return s.PageResponse("index.html", data, http.StatusOK)
}

func (s *server) announceFormHandler(r *http.Request) http.Handler {
	data := s.page("Announce a session")
	data.Form = &announceForm{Port: strconv.Itoa(defaultPort), Users: "1"}
	return s.PageResponse("announce.html", data, http.StatusOK)
}

func parseAnnounceForm(r *http.Request) announceForm {
	return announceForm{
		Host:     strings.TrimSpace(r.PostForm.Get("host")),
		Port:     strings.TrimSpace(r.PostForm.Get("port")),
		Id:       strings.TrimSpace(r.PostForm.Get("id")),
		Protocol: strings.TrimSpace(r.PostForm.Get("protocol")),
		Title:    strings.TrimSpace(r.PostForm.Get("title")),
		Owner:    strings.TrimSpace(r.PostForm.Get("owner")),
		Users:    strings.TrimSpace(r.PostForm.Get("users")),
		Password: r.PostForm.Get("password") == "true",
		Nsfm:     r.PostForm.Get("nsfm") == "true",
	}
}

// toSession converts the raw form into a session, recording any numbers
// that don't parse
func (f announceForm) toSession(errs *validation.Errors) db.SessionInfo {
	info := db.SessionInfo{
		Host:     f.Host,
		Id:       f.Id,
		Protocol: f.Protocol,
		Title:    f.Title,
		Owner:    f.Owner,
		Password: f.Password,
		Nsfm:     f.Nsfm,
	}

	if f.Port != "" {
		port, err := strconv.Atoi(f.Port)
		if err != nil {
			errs.Add("port", "is not a number")
		}
		info.Port = port
	}

	if f.Users != "" {
		users, err := strconv.Atoi(f.Users)
		if err != nil {
			errs.Add("users", "is not a number")
		}
		info.Users = users
	}

	return info
}

// Announce a new session
func (s *server) announceSubmitHandler(r *http.Request) http.Handler {
	clientIP := parseIp(r.RemoteAddr)
	if clientIP == nil || clientIP.IsUnspecified() {
		s.logger.Error("Couldn't parse IP address", "remote", r.RemoteAddr)
		return ErrorResponse("Server is misconfigured", http.StatusInternalServerError)
	}

	if err := r.ParseForm(); err != nil {
		return ErrorResponse("Bad request", http.StatusBadRequest)
	}

	form := parseAnnounceForm(r)
	data := s.page("Announce a session")
	data.Form = &form
	errs := data.Errors

	// Request rate limiting
	if !s.ratelimiter.AddToken(clientIP.String()) {
		errs.Add(validation.BaseField, fmt.Sprintf("Too many requests. Wait %d seconds.", s.ratelimiter.DrainTime(clientIP.String())))
		return s.PageResponse("announce.html", data, http.StatusTooManyRequests)
	}

	info := form.toSession(errs)

	// Validate announcement
	rules := validation.AnnouncementValidationRules{
		ClientIP:            clientIP,
		AllowWellKnownPorts: s.cfg.AllowWellKnownPorts,
		ProtocolWhitelist:   s.cfg.ProtocolWhitelist,
		Lookup:              s.lookup,
	}
	errs.Merge(validation.ValidateAnnouncement(info, rules))

	if errs.HasErrors() {
		return s.PageResponse("announce.html", data, http.StatusUnprocessableEntity)
	}

	// Fill in default values
	if len(info.Host) == 0 {
		info.Host = clientIP.String()
	}
	if info.Port == 0 {
		info.Port = defaultPort
	}

	info.Nsfm = info.Nsfm || s.cfg.ContainsNsfmWords(info.Title)

	if ok := s.checkListingAllowed(r, info, errs); !ok {
		return ErrorResponse("An internal error occurred", http.StatusInternalServerError)
	}
	if errs.HasErrors() {
		return s.PageResponse("announce.html", data, http.StatusUnprocessableEntity)
	}

	// Insert to database
	newses, err := s.db.InsertSession(r.Context(), info, clientIP.String())
	if err != nil {
		s.logger.Error("Session insertion error", "error", err)
		return ErrorResponse("An internal error occurred", http.StatusInternalServerError)
	}

	s.logger.Info("Session announced",
		"listing_id", newses.ListingId,
		"host", info.Host,
		"id", info.Id,
		"client_ip", clientIP.String(),
	)

	// The update key is only shown once, on the page the browser lands on
	return RedirectResponse("/?" + url.Values{
		"announced": {strconv.FormatInt(newses.ListingId, 10)},
		"key":       {newses.UpdateKey},
	}.Encode())
}

// checkListingAllowed applies the server policy checks that need the
// database. Problems are added to errs; false means a database error.
func (s *server) checkListingAllowed(r *http.Request, info db.SessionInfo, errs *validation.Errors) bool {
	// Make sure this host isn't banned
	if validation.IsHostInList(info.Host, s.cfg.BannedHosts) {
		errs.Add("host", "is not allowed to announce here")
		return true
	}
	if banned, err := s.db.IsBannedHost(r.Context(), info.Host); err != nil {
		s.logger.Error("Ban check error", "error", err)
		return false
	} else if banned {
		errs.Add("host", "is not allowed to announce here")
		return true
	}

	// Make sure this hasn't been announced yet
	if isActive, err := s.db.IsActiveSession(r.Context(), info.Host, info.Id, info.Port); err != nil {
		s.logger.Error("IsActive check error", "error", err)
		return false
	} else if isActive {
		errs.Add("id", "is already listed")
	}

	// Check per-host session limit
	if !s.cfg.IsTrustedHost(info.Host) {
		var maxSessions int
		if validation.IsNamedHost(info.Host) {
			maxSessions = s.cfg.MaxSessionsPerNamedHost
		} else {
			maxSessions = s.cfg.MaxSessionsPerHost
		}

		if count, err := s.db.GetHostSessionCount(r.Context(), info.Host); err != nil {
			s.logger.Error("Host session count error", "error", err)
			return false
		} else if count >= maxSessions {
			errs.Add("host", fmt.Sprintf("already has the maximum of %d listings", maxSessions))
		}
	}

	return true
}

func parseIp(addr string) net.IP {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	return net.ParseIP(strings.Trim(host, "[]"))
}

func (s *server) banPage(r *http.Request) (*pageData, error) {
	bans, err := s.db.QueryHostBans(r.Context())
	if err != nil {
		return nil, err
	}
	data := s.page("Host bans")
	data.AdminUser = adminUserName(r)
	data.Bans = bans
	data.Form = &hostBanForm{}
	return data, nil
}

func (s *server) banListHandler(r *http.Request) http.Handler {
	data, err := s.banPage(r)
	if err != nil {
		s.logger.Error("Ban list query error", "error", err)
		return ErrorResponse("An internal error occurred", http.StatusInternalServerError)
	}
	if r.URL.Query().Get("created") != "" {
		data.Notice = "Host ban added."
	}
	return s.PageResponse("bans.html", data, http.StatusOK)
}

func (s *server) banCreateHandler(r *http.Request) http.Handler {
	if err := r.ParseForm(); err != nil {
		return ErrorResponse("Bad request", http.StatusBadRequest)
	}

	form := hostBanForm{
		Host:    strings.TrimSpace(r.PostForm.Get("host")),
		Expires: strings.TrimSpace(r.PostForm.Get("expires")),
		Notes:   strings.TrimSpace(r.PostForm.Get("notes")),
	}
	ban := db.HostBan{Host: form.Host, Notes: form.Notes}

	errs := validation.ValidateHostBan(ban, form.Expires, s.now())
	if errs.HasErrors() {
		data, err := s.banPage(r)
		if err != nil {
			s.logger.Error("Ban list query error", "error", err)
			return ErrorResponse("An internal error occurred", http.StatusInternalServerError)
		}
		data.Form = &form
		data.Errors = errs
		return s.PageResponse("bans.html", data, http.StatusUnprocessableEntity)
	}

	ban.Expires, _ = validation.ParseExpiry(form.Expires)

	id, err := s.db.InsertHostBan(r.Context(), ban)
	if err != nil {
		s.logger.Error("Ban insertion error", "error", err)
		return ErrorResponse("An internal error occurred", http.StatusInternalServerError)
	}

	s.logger.Info("Host banned", "ban_id", id, "host", ban.Host, "admin", adminUserName(r))

	return RedirectResponse("/admin/bans?created=1")
}

func (s *server) healthHandler(r *http.Request) http.Handler {
	return JsonResponseOk(map[string]interface{}{
		"status": "ok",
		"name":   s.cfg.Name,
	})
}
