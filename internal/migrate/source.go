package migrate

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var builtinFS embed.FS

// Migration is one versioned schema change.
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// Statements splits SQL on ';' and drops empty statements and "--" comment
// lines. Semicolons inside string literals are not supported.
func (m Migration) Statements() []string {
	var clean strings.Builder
	sc := bufio.NewScanner(strings.NewReader(m.SQL))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		clean.WriteString(line)
		clean.WriteByte('\n')
	}
	var out []string
	for _, s := range strings.Split(clean.String(), ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Builtin returns the migrations shipped with the binary, ordered by version.
func Builtin() ([]Migration, error) {
	sub, err := fs.Sub(builtinFS, "migrations")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Load reads every *.sql file at the root of fsys. The file name without
// extension is the version; a leading "-- description:" line sets the
// description. Migrations are ordered by version.
func Load(fsys fs.FS) ([]Migration, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errors.New("migrate: no migrations found")
	}
	out := make([]Migration, 0, len(names))
	for _, name := range names {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("migrate: read %s: %w", name, err)
		}
		m := Migration{
			Version: strings.TrimSuffix(path.Base(name), ".sql"),
			SQL:     string(b),
		}
		m.Description = description(m.SQL)
		if len(m.Statements()) == 0 {
			return nil, fmt.Errorf("migrate: %s has no statements", name)
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return versionLess(out[i].Version, out[j].Version) })
	return out, nil
}

func description(sql string) string {
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "--") {
			return ""
		}
		if rest, ok := strings.CutPrefix(strings.TrimSpace(strings.TrimPrefix(line, "--")), "description:"); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// versionNumber parses the numeric part of "v<N>_name" (the "v" is optional).
func versionNumber(v string) (int, bool) {
	digits := strings.TrimPrefix(v, "v")
	if i := strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }); i >= 0 {
		digits = digits[:i]
	}
	n, err := strconv.Atoi(digits)
	return n, err == nil
}

// versionLess orders versions by their number, so v10 follows v2. Versions
// without a number sort after numbered ones, by name.
func versionLess(a, b string) bool {
	na, okA := versionNumber(a)
	nb, okB := versionNumber(b)
	switch {
	case okA && okB && na != nb:
		return na < nb
	case okA != okB:
		return okA
	default:
		return a < b
	}
}
