package api

import (
	"net/url"
	"strconv"
	"strings"

	"platforma/internal/dynquery"
)

// ==== Параметры листинга ====

// parseListParams читает q/filter/sort/page/pageSize из query-строки.
// Мусорные page/pageSize молча заменяются дефолтами — это вход листинга,
// не фильтр.
func parseListParams(q url.Values) dynquery.QueryOptions {
	page := 1
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			page = n
		}
	}

	size := 50
	sv := strings.TrimSpace(q.Get("pageSize"))
	if sv == "" {
		sv = strings.TrimSpace(q.Get("page_size"))
	}
	if sv != "" {
		if n, err := strconv.Atoi(sv); err == nil && n >= 1 && n <= 1000 {
			size = n
		}
	}

	return dynquery.QueryOptions{
		Q:        strings.TrimSpace(q.Get("q")),
		Filter:   strings.TrimSpace(q.Get("filter")),
		Sort:     strings.TrimSpace(q.Get("sort")),
		Page:     page,
		PageSize: size,
	}
}

// parseProjection читает список полей проекции dot-walk'а ("a,b,c").
func parseProjection(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
