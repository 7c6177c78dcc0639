package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func Param(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func QueryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
