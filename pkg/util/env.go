package util

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/memtensor/memos-bootstrap/pkg/api"
)

// ReadEnvironmentFile reads a dotenv file: NAME=VALUE pairs separated by new
// lines, '#' comments, optional quoting and "export" prefixes.
func ReadEnvironmentFile(path string) (map[string]string, error) {
	result, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read environment file %q: %v", path, err)
	}
	return result, nil
}

// EnvironmentFromFile reads path and returns its variables as a list sorted by
// name, so that generated images are reproducible.
func EnvironmentFromFile(path string) (api.EnvironmentList, error) {
	vars, err := ReadEnvironmentFile(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	env := make(api.EnvironmentList, 0, len(names))
	for _, name := range names {
		env = append(env, api.EnvironmentSpec{Name: name, Value: vars[name]})
	}
	return env, nil
}

// StripProxyCredentials attempts to strip sensitive information from proxy
// environment variables.
func StripProxyCredentials(env []string) []string {
	// case insensitively match all key=value variables containing the word "proxy"
	// in the key and which appear to contain a user:password@host pattern.  We'll
	// keep everything before the = sign, the scheme, and everything after the @.

	proxyRegex := regexp.MustCompile("(?i).*proxy.*")
	newEnv := make([]string, len(env))
	copy(newEnv, env)
	for i, entry := range newEnv {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || !proxyRegex.MatchString(parts[0]) {
			continue
		}
		newEnv[i] = fmt.Sprintf("%s=%s", parts[0], stripUserInfo(parts[1]))
	}
	return newEnv
}

// stripUserInfo removes the user:password@ part of a proxy value, with or
// without a scheme.
func stripUserInfo(value string) string {
	if !strings.Contains(value, "@") {
		return value
	}
	scheme, rest, ok := strings.Cut(value, "://")
	if !ok {
		return value[strings.LastIndex(value, "@")+1:]
	}
	if u, err := url.Parse(value); err == nil {
		u.User = nil
		return u.String()
	}
	return scheme + "://" + rest[strings.LastIndex(rest, "@")+1:]
}
