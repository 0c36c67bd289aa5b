// Package symdir holds the process-wide ticker directory: code to company
// name, loaded once from the brokerage master files at startup and extended
// with the remotely fetched US catalog. One instance is constructed in main
// and shared by every consumer.
package symdir

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/korean"
)

// Master file record layout: byte offsets [0,9) hold the short code with an
// exchange-class prefix, [21,61) hold the name in EUC-KR. Anything shorter
// than minRecordLen is a blank or truncated line.
const (
	codeEnd      = 9
	nameStart    = 21
	nameEnd      = 61
	minRecordLen = 30
)

type Directory struct {
	log *zap.Logger

	mu     sync.RWMutex
	byCode map[string]string
	byName map[string]string
}

func New(log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{
		log:    log,
		byCode: make(map[string]string),
		byName: make(map[string]string),
	}
}

// LoadMasterFiles reads the given master files into the directory. A missing
// or unreadable file is logged and skipped; the directory simply ends up
// with fewer entries.
func (d *Directory) LoadMasterFiles(paths ...string) {
	for _, p := range paths {
		n, err := d.loadMasterFile(p)
		if err != nil {
			d.log.Warn("master file skipped", zap.String("path", p), zap.Error(err))
			continue
		}
		d.log.Info("master file loaded", zap.String("path", p), zap.Int("entries", n))
	}
}

func (d *Directory) loadMasterFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) < minRecordLen {
			continue
		}
		code := strings.TrimSpace(string(line[:codeEnd]))
		if len(code) >= 7 {
			// Short codes carry a one-character class prefix ("A005930").
			code = code[1:]
		}
		end := nameEnd
		if len(line) < end {
			end = len(line)
		}
		decoded, err := korean.EUCKR.NewDecoder().Bytes(line[nameStart:end])
		if err != nil {
			continue
		}
		name := strings.TrimSpace(string(decoded))
		if code == "" || name == "" {
			continue
		}
		d.AddOrUpdate(code, name)
		count++
	}
	if err := sc.Err(); err != nil {
		return count, fmt.Errorf("scan %s: %w", path, err)
	}
	return count, nil
}

// AddOrUpdate upserts a directory entry. Empty code or name is a no-op.
// Codes are unique; re-inserting a code overwrites its name, and the
// reverse name lookup is last-insert-wins.
func (d *Directory) AddOrUpdate(code, name string) {
	if code == "" || name == "" {
		return
	}
	d.mu.Lock()
	d.byCode[code] = name
	d.byName[name] = code
	d.mu.Unlock()
}

// NameFor returns the display name for a code, or the code itself when the
// directory has no entry. It never fails.
func (d *Directory) NameFor(code string) string {
	d.mu.RLock()
	name, ok := d.byCode[code]
	d.mu.RUnlock()
	if !ok {
		return code
	}
	return name
}

// CodeFor is the reverse lookup. ok is false when no entry's name matches
// exactly. Duplicate names resolve to the last-inserted code.
func (d *Directory) CodeFor(name string) (string, bool) {
	d.mu.RLock()
	code, ok := d.byName[name]
	d.mu.RUnlock()
	return code, ok
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byCode)
}

// Search returns up to limit "name (code)" strings ranked in three tiers:
// exact case-insensitive match on code or name first, then prefix matches,
// then substring matches. Each tier is sorted lexicographically once
// collected; the contains tier admits candidates only while the cumulative
// count is below limit. An empty keyword yields no results.
func (d *Directory) Search(keyword string, limit int) []string {
	if keyword == "" || limit <= 0 {
		return nil
	}
	lower := strings.ToLower(keyword)

	var exact, prefix, contains []string
	d.mu.RLock()
	for code, name := range d.byCode {
		lc := strings.ToLower(code)
		ln := strings.ToLower(name)
		display := fmt.Sprintf("%s (%s)", name, code)

		switch {
		case (lc == lower || ln == lower) && len(exact) < limit:
			exact = append(exact, display)
		case (strings.HasPrefix(lc, lower) || strings.HasPrefix(ln, lower)) && len(prefix) < limit:
			prefix = append(prefix, display)
		case strings.Contains(lc, lower) || strings.Contains(ln, lower):
			if len(exact)+len(prefix)+len(contains) < limit {
				contains = append(contains, display)
			}
		}
	}
	d.mu.RUnlock()

	sort.Strings(exact)
	sort.Strings(prefix)
	sort.Strings(contains)

	out := make([]string, 0, len(exact)+len(prefix)+len(contains))
	out = append(out, exact...)
	out = append(out, prefix...)
	out = append(out, contains...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
