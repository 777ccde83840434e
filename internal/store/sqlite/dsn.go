package sqlite

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// connParams apply to every pooled connection. _txlock makes BeginTx issue
// BEGIN IMMEDIATE.
var connParams = []string{
	"_pragma=busy_timeout(30000)",
	"_pragma=journal_mode(WAL)",
	"_pragma=foreign_keys(1)",
	"_txlock=immediate",
}

func parseDSN(dsn string) (string, bool, error) {
	if !strings.HasPrefix(dsn, "sqlite://") {
		return "", false, fmt.Errorf("invalid sqlite DSN scheme, expected sqlite://")
	}

	rest := strings.TrimPrefix(dsn, "sqlite://")
	if rest == "" {
		return "", false, fmt.Errorf("sqlite DSN has no path")
	}

	if rest == ":memory:" {
		return withParams(":memory:", ""), true, nil
	}

	path, query, _ := strings.Cut(rest, "?")

	if !strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "./") {
		unescaped, err := url.PathUnescape(path)
		if err != nil {
			return "", false, fmt.Errorf("unescaping path: %w", err)
		}
		path = unescaped
		if !filepath.IsAbs(path) {
			path = "./" + path
		}
	}

	return withParams(path, query), false, nil
}

func withParams(path, query string) string {
	params := strings.Join(connParams, "&")
	if query != "" {
		params = query + "&" + params
	}
	return path + "?" + params
}
