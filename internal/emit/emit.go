// Package emit writes the per-region artifacts: a delimited table and an
// indented JSON document over the same ordered results.
//
// Both files of a region are staged as temp files in the output directory,
// synced and closed, and only then renamed into place. A failure before the
// renames leaves the previous artifacts untouched.
package emit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/JonMunkholm/munihash/internal/schema"
)

const (
	tablePrefix = "municipios_"
	tableExt    = ".csv"
	jsonExt     = ".json"
)

var (
	// ErrWrite wraps every failure to create, write or publish an artifact.
	ErrWrite = errors.New("artifact write failed")

	// ErrInvalidRegion is returned for region codes that cannot name a file.
	ErrInvalidRegion = errors.New("invalid region code")
)

var regionPattern = regexp.MustCompile(`^[A-Z]{2}$`)

// Options configures an Emitter.
type Options struct {
	// Dir is the output directory (required). Created on first Emit.
	Dir string
	// Delimiter joins table cells. Defaults to ";".
	Delimiter string
	// Indent is the JSON indent unit. Defaults to two spaces.
	Indent   string
	PermFile os.FileMode
	PermDir  os.FileMode
}

// Artifacts are the destination paths of one region.
type Artifacts struct {
	Region string `json:"region"`
	Table  string `json:"table"`
	JSON   string `json:"json"`
}

// Emitter writes region artifacts into one directory.
type Emitter struct {
	dir       string
	delimiter string
	indent    string
	permF     os.FileMode
	permD     os.FileMode

	// rename is os.Rename; tests replace it to simulate publish failures.
	rename func(oldpath, newpath string) error
}

// New creates an Emitter.
func New(opts Options) (*Emitter, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, fmt.Errorf("emit: output directory is required")
	}
	e := &Emitter{
		dir:       opts.Dir,
		delimiter: opts.Delimiter,
		indent:    opts.Indent,
		permF:     opts.PermFile,
		permD:     opts.PermDir,
		rename:    os.Rename,
	}
	if e.delimiter == "" {
		e.delimiter = ";"
	}
	if e.indent == "" {
		e.indent = "  "
	}
	if e.permF == 0 {
		e.permF = 0o644
	}
	if e.permD == 0 {
		e.permD = 0o755
	}
	return e, nil
}

// Dir returns the output directory.
func (e *Emitter) Dir() string {
	return e.dir
}

// Paths returns the artifact paths for region.
func (e *Emitter) Paths(region string) (Artifacts, error) {
	if !regionPattern.MatchString(region) {
		return Artifacts{}, fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}
	base := filepath.Join(e.dir, tablePrefix+region)
	return Artifacts{Region: region, Table: base + tableExt, JSON: base + jsonExt}, nil
}

// Emit renders results once per format and publishes both files for region.
func (e *Emitter) Emit(ctx context.Context, region string, results []schema.Result) (Artifacts, error) {
	arts, err := e.Paths(region)
	if err != nil {
		return Artifacts{}, err
	}
	if err := ctx.Err(); err != nil {
		return Artifacts{}, err
	}

	var table, doc bytes.Buffer
	if err := WriteTable(&table, e.delimiter, results); err != nil {
		return Artifacts{}, fmt.Errorf("%w: render table for %s: %v", ErrWrite, region, err)
	}
	if err := WriteJSON(&doc, e.indent, results); err != nil {
		return Artifacts{}, fmt.Errorf("%w: render json for %s: %v", ErrWrite, region, err)
	}

	if err := os.MkdirAll(e.dir, e.permD); err != nil {
		return Artifacts{}, fmt.Errorf("%w: create %s: %v", ErrWrite, e.dir, err)
	}

	tableTmp, err := e.stage(table.Bytes())
	if err != nil {
		return Artifacts{}, fmt.Errorf("%w: stage %s: %v", ErrWrite, arts.Table, err)
	}
	defer os.Remove(tableTmp)

	jsonTmp, err := e.stage(doc.Bytes())
	if err != nil {
		return Artifacts{}, fmt.Errorf("%w: stage %s: %v", ErrWrite, arts.JSON, err)
	}
	defer os.Remove(jsonTmp)

	if err := ctx.Err(); err != nil {
		return Artifacts{}, err
	}

	if err := e.rename(tableTmp, arts.Table); err != nil {
		return Artifacts{}, fmt.Errorf("%w: publish %s: %v", ErrWrite, arts.Table, err)
	}
	if err := e.rename(jsonTmp, arts.JSON); err != nil {
		// The pair is only valid together.
		_ = os.Remove(arts.Table)
		return Artifacts{}, fmt.Errorf("%w: publish %s: %v", ErrWrite, arts.JSON, err)
	}
	_ = syncDir(e.dir)

	return arts, nil
}

// stage writes data to a synced temp file in the output directory and
// returns its path.
func (e *Emitter) stage(data []byte) (string, error) {
	tmp, err := os.CreateTemp(e.dir, ".tmp-*")
	if err != nil {
		return "", err
	}
	path := tmp.Name()
	_ = os.Chmod(path, e.permF)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// List returns the regions that have both artifacts in the output directory,
// sorted. A missing directory yields an empty list.
func (e *Emitter) List() ([]string, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	have := make(map[string]int)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, tablePrefix) {
			continue
		}
		ext := filepath.Ext(name)
		if ext != tableExt && ext != jsonExt {
			continue
		}
		region := strings.TrimSuffix(strings.TrimPrefix(name, tablePrefix), ext)
		if regionPattern.MatchString(region) {
			have[region]++
		}
	}

	regions := make([]string, 0, len(have))
	for region, n := range have {
		if n == 2 {
			regions = append(regions, region)
		}
	}
	sort.Strings(regions)
	return regions, nil
}

// syncDir fsyncs dir so the renames survive a crash. Best effort.
func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
