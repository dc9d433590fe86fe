package config

import (
	"os"
	"strings"
)

// ExpandEnv substitutes ${VAR} and ${VAR:-default} references in s from
// the process environment. An unset VAR without a default expands to
// the empty string; ${VAR:-default} expands to default only when VAR is
// unset or empty.
func ExpandEnv(s string) string {
	return expandEnv(s, os.Getenv)
}

func expandEnv(s string, getenv func(string) string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.Index(s[i:], "}")
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		ref := s[i+2 : i+j]
		s = s[i+j+1:]

		name, def, hasDef := strings.Cut(ref, ":-")
		val := getenv(name)
		if val == "" && hasDef {
			val = def
		}
		b.WriteString(val)
	}
}

// ExpandEnvMap expands every value of m in place and returns it.
func ExpandEnvMap(m map[string]string) map[string]string {
	for k, v := range m {
		m[k] = ExpandEnv(v)
	}
	return m
}
