package main

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/drawpile/listform/sentence"
)

// PageResponse renders an HTML page. Validation messages in the page are
// joined using the request's preferred language.
func (s *server) PageResponse(name string, data *pageData, code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connectors := sentence.ForAcceptLanguage(r.Header.Get("Accept-Language"))

		var buf bytes.Buffer
		if err := s.views.render(&buf, name, connectors, data); err != nil {
			s.logger.Error("Template rendering failed", "template", name, "error", err)
			ErrorResponse("An internal error occurred", http.StatusInternalServerError).ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(code)
		w.Write(buf.Bytes())
	})
}

// RedirectResponse sends the browser to url after a successful form post
func RedirectResponse(url string) http.Handler {
	return http.RedirectHandler(url, http.StatusSeeOther)
}

func ErrorResponse(message string, code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, message, code)
	})
}

func JsonResponseOk(body interface{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJsonResponse(w, body, http.StatusOK)
	})
}

func writeJsonResponse(w http.ResponseWriter, body interface{}, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	content, _ := json.MarshalIndent(body, "", "  ")
	w.Write(content)
}
