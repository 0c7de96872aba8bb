// Package candidate gathers plausible caption token names from soundscripts,
// sound manifests, name lists and explicit names.
package candidate

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mgpai22/vccdec/internal/keyvalues"
	"github.com/mgpai22/vccdec/internal/logging"
)

// ErrSourceUnavailable marks an auxiliary source that could not be read or
// parsed. Collection continues without it.
var ErrSourceUnavailable = errors.New("candidate: source unavailable")

// ManifestName is the manifest file looked up in the discovery root.
const ManifestName = "game_sounds_manifest.txt"

// manifest keys that declare soundscript files
var manifestKeys = map[string]bool{
	"precache_file": true,
	"preload_file":  true,
	"declare_file":  true,
}

// Sources lists where candidate names come from. Names are collected in
// field order: explicit names, list files, soundscripts, then scripts found
// through the manifest in DiscoverRoot.
type Sources struct {
	Names        []string
	ListFiles    []string
	Soundscripts []string
	DiscoverRoot string // empty disables discovery
}

func (s Sources) Empty() bool {
	return len(s.Names) == 0 && len(s.ListFiles) == 0 &&
		len(s.Soundscripts) == 0 && s.DiscoverRoot == ""
}

// Result holds the collected names in first-seen order without duplicates.
type Result struct {
	Names      []string
	Total      int // names seen including duplicates
	Discovered []string
	Warnings   []error
}

type Collector struct {
	log *logging.Logger
}

func NewCollector(log *logging.Logger) *Collector {
	return &Collector{log: logging.OrNop(log)}
}

type collection struct {
	res  *Result
	seen map[string]struct{}
}

func (c *collection) add(name string) {
	c.res.Total++
	if _, ok := c.seen[name]; ok {
		return
	}
	c.seen[name] = struct{}{}
	c.res.Names = append(c.res.Names, name)
}

// Collect reads every source. Unreadable sources are logged as warnings and
// recorded in Result.Warnings; Collect itself never fails.
func (c *Collector) Collect(src Sources) *Result {
	col := &collection{res: &Result{}, seen: make(map[string]struct{})}

	for _, n := range src.Names {
		col.add(n)
	}

	for _, path := range src.ListFiles {
		names, err := ReadList(path)
		if err != nil {
			c.warn(col.res, err)
			continue
		}
		c.log.Debugw("Read name list", "path", path, "names", len(names))
		for _, n := range names {
			col.add(n)
		}
	}

	scripts := append([]string(nil), src.Soundscripts...)
	if src.DiscoverRoot != "" {
		found, err := Discover(src.DiscoverRoot)
		if err != nil {
			c.warn(col.res, err)
		}
		col.res.Discovered = found
		scripts = append(scripts, found...)
	}

	for _, path := range scripts {
		names, err := ReadSoundscript(path)
		if err != nil {
			c.warn(col.res, err)
			continue
		}
		c.log.Debugw("Read soundscript", "path", path, "names", len(names))
		for _, n := range names {
			col.add(n)
		}
	}

	c.log.Infow("Collected candidate names",
		"total", col.res.Total,
		"unique", len(col.res.Names),
	)
	return col.res
}

func (c *Collector) warn(res *Result, err error) {
	res.Warnings = append(res.Warnings, err)
	c.log.Warnw("Skipping auxiliary source", "error", err)
}

// ReadList reads a newline separated name list. Lines are taken as written;
// only line terminators are removed and blank lines skipped.
func ReadList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: name list: %w", ErrSourceUnavailable, err)
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(keyvalues.NewDecodingReader(f))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: name list %s: %w", ErrSourceUnavailable, path, err)
	}
	return names, nil
}

// ReadSoundscript returns the top level entry names of a soundscript file.
// Directives such as #base and #include are skipped.
func ReadSoundscript(path string) ([]string, error) {
	nodes, err := keyvalues.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: soundscript: %w", ErrSourceUnavailable, err)
	}

	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if strings.HasPrefix(n.Key, "#") {
			continue
		}
		names = append(names, n.Key)
	}
	return names, nil
}

// Discover reads ManifestName in root and returns the soundscript paths it
// declares, in manifest order. Declared paths are relative to the game
// directory (root's parent); root itself is tried when that does not exist.
func Discover(root string) ([]string, error) {
	manifest := filepath.Join(root, ManifestName)
	nodes, err := keyvalues.ParseFile(manifest)
	if err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrSourceUnavailable, err)
	}

	gameDir := filepath.Dir(filepath.Clean(root))
	seen := make(map[string]struct{})
	var paths []string
	for _, top := range nodes {
		for _, n := range top.Children {
			if !manifestKeys[strings.ToLower(n.Key)] || n.Value == "" {
				continue
			}
			rel := filepath.FromSlash(strings.ReplaceAll(n.Value, `\`, "/"))
			path := resolve(rel, gameDir, root)
			if _, ok := seen[path]; ok {
				continue
			}
			seen[path] = struct{}{}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func resolve(rel string, dirs ...string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	for _, dir := range dirs {
		p := filepath.Join(dir, rel)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dirs[0], rel)
}
