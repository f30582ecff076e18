// Copyright (c) Microsoft. All rights reserved.

package tools

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	ak "github.com/agentplayground/agentkit/agentkit"
)

const (
	defaultMaxLines = 20
	maxSearchHits   = 50
	sniffBytes      = 512
)

// Entry describes one file or directory.
type Entry struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Dir      bool      `json:"dir"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// resolve maps a model-supplied path onto the sandbox root and rejects
// anything that escapes it, including through symlinks.
func (l *Library) resolve(rel string) (string, error) {
	if rel == "" {
		rel = "."
	}
	p := filepath.Clean(filepath.Join(l.root, rel))
	if filepath.IsAbs(rel) {
		p = filepath.Clean(rel)
	}
	if !within(l.root, p) {
		return "", fail("path %q is outside the allowed directory", rel)
	}
	if real, err := filepath.EvalSymlinks(p); err == nil {
		root, _ := filepath.EvalSymlinks(l.root)
		if root == "" {
			root = l.root
		}
		if !within(root, real) {
			return "", fail("path %q is outside the allowed directory", rel)
		}
	}
	return p, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (l *Library) display(p string) string {
	rel, err := filepath.Rel(l.root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(rel)
}

func (l *Library) entry(p string, info fs.FileInfo) Entry {
	return Entry{
		Name:     info.Name(),
		Path:     l.display(p),
		Dir:      info.IsDir(),
		Size:     info.Size(),
		Modified: info.ModTime().UTC(),
	}
}

func statError(rel string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fail("%q does not exist", rel)
	case errors.Is(err, fs.ErrPermission):
		return fail("permission denied for %q", rel)
	default:
		return fail("cannot access %q: %v", rel, err)
	}
}

func (l *Library) listFilesTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("list_files").
		Describe("List the files and directories in a directory, directories first.").
		Param(ak.Param{Name: "path", Type: ak.TypeString, Description: "Directory relative to the workspace (default .)"}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			rel := args.String("path")
			dir, err := l.resolve(rel)
			if err != nil {
				return nil, err
			}
			items, err := os.ReadDir(dir)
			if err != nil {
				return nil, statError(rel, err)
			}
			entries := make([]Entry, 0, len(items))
			for _, it := range items {
				info, err := it.Info()
				if err != nil {
					continue
				}
				entries = append(entries, l.entry(filepath.Join(dir, it.Name()), info))
			}
			sort.Slice(entries, func(i, j int) bool {
				if entries[i].Dir != entries[j].Dir {
					return entries[i].Dir
				}
				return entries[i].Name < entries[j].Name
			})
			return entries, nil
		}).
		Build()
}

// FileContent is the result of read_file.
type FileContent struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Lines     int    `json:"lines"`
	Truncated bool   `json:"truncated,omitempty"`
}

func (l *Library) readFileTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("read_file").
		Describe("Read the first lines of a text file.").
		Param(ak.Param{Name: "path", Type: ak.TypeString, Required: true}).
		Param(ak.Param{Name: "max_lines", Type: ak.TypeInteger, Description: "Maximum lines to return (default 20)"}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			rel := args.String("path")
			p, err := l.resolve(rel)
			if err != nil {
				return nil, err
			}
			maxLines := args.Int("max_lines", defaultMaxLines)
			if maxLines <= 0 {
				return nil, fail("max_lines must be positive")
			}
			return readLines(rel, p, maxLines)
		}).
		Build()
}

func readLines(rel, p string, maxLines int) (*FileContent, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, statError(rel, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, statError(rel, err)
	}
	if info.IsDir() {
		return nil, fail("%q is a directory", rel)
	}

	out := &FileContent{Path: filepath.ToSlash(rel)}
	var sb strings.Builder
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if out.Lines == 0 && !utf8.ValidString(truncateBytes(line, sniffBytes)) {
			return nil, fail("%q is not a text file", rel)
		}
		out.Lines++
		if out.Lines > maxLines {
			out.Truncated = true
			continue
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return nil, fail("reading %q: %v", rel, err)
	}
	out.Content = sb.String()
	return out, nil
}

func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	// Drop a rune cut in half by the limit.
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

func (l *Library) fileInfoTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("file_info").
		Describe("Report size, type and modification time of a file or directory.").
		Param(ak.Param{Name: "path", Type: ak.TypeString, Required: true}).
		Func(func(_ context.Context, args ak.Args) (any, error) {
			rel := args.String("path")
			p, err := l.resolve(rel)
			if err != nil {
				return nil, err
			}
			info, err := os.Stat(p)
			if err != nil {
				return nil, statError(rel, err)
			}
			e := l.entry(p, info)
			return map[string]any{
				"name":      e.Name,
				"path":      e.Path,
				"dir":       e.Dir,
				"size":      e.Size,
				"modified":  e.Modified,
				"mode":      info.Mode().String(),
				"extension": filepath.Ext(e.Name),
			}, nil
		}).
		Build()
}

func (l *Library) searchFilesTool() (*ak.Tool, error) {
	return ak.NewToolBuilder("search_files").
		Describe("Find files whose names match a glob pattern such as *.go, searching subdirectories.").
		Param(ak.Param{Name: "pattern", Type: ak.TypeString, Required: true}).
		Param(ak.Param{Name: "path", Type: ak.TypeString, Description: "Directory to search (default .)"}).
		Func(func(ctx context.Context, args ak.Args) (any, error) {
			pattern := args.String("pattern")
			if _, err := filepath.Match(pattern, ""); err != nil {
				return nil, fail("bad pattern %q: %v", pattern, err)
			}
			rel := args.String("path")
			dir, err := l.resolve(rel)
			if err != nil {
				return nil, err
			}

			hits := []Entry{}
			err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if d.IsDir() && p != dir && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				if ok, _ := filepath.Match(pattern, d.Name()); !ok || d.IsDir() {
					return nil
				}
				if info, err := d.Info(); err == nil {
					hits = append(hits, l.entry(p, info))
				}
				if len(hits) >= maxSearchHits {
					return fs.SkipAll
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"pattern": pattern, "matches": hits, "count": len(hits)}, nil
		}).
		Build()
}
