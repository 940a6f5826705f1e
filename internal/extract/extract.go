// Package extract derives structured hints from raw window observations.
// Everything here is a pure function over strings with no I/O and no
// failure modes: malformed input degrades to an emptier Context.
package extract

import (
	"net/url"
	"regexp"
	"strings"
)

// Context is the best-effort union of everything that could be learned
// from one observation. Absent fields are empty, which is expected and
// never an error.
type Context struct {
	Browser  *BrowserContext
	Project  string
	Filename string
	FileType string
	Language string
	Command  string
	Path     string
}

// BrowserContext holds hints parsed from a URL.
type BrowserContext struct {
	Site      *SiteContext
	Domain    string
	Path      string
	Localhost bool
}

// SiteContext holds site-specific sub-fields for a small set of
// high-value sites. Which fields are set depends on Kind.
type SiteContext struct {
	Kind       SiteKind
	Owner      string
	Repo       string
	VideoID    string
	QuestionID string
}

// SiteKind identifies a recognized high-value site family.
type SiteKind string

// Recognized site families.
const (
	SiteCodeHosting SiteKind = "code_hosting"
	SiteVideo       SiteKind = "video"
	SiteQA          SiteKind = "qa"
)

// FromObservation combines URL, editor-title, and terminal-title
// extraction into one Context. Later extractors never overwrite fields an
// earlier one filled in.
func FromObservation(appName, title, rawURL string) Context {
	var ctx Context

	ctx.Browser = FromURL(rawURL)

	ed := FromEditorTitle(title)

	// A path-looking title is terminal work even though the editor parser
	// would happily call the whole thing a project name.
	if (ed == nil || ed.Filename == "") && strings.Contains(title, "/") {
		if term := FromTerminalTitle(title); term != nil {
			ctx.Project = term.Project
			ctx.Command = term.Command
			ctx.Path = term.Path
			return ctx
		}
	}

	if ed != nil {
		ctx.Project = ed.Project
		ctx.Filename = ed.Filename
		ctx.FileType = ed.FileType
		ctx.Language = ed.Language
	}

	return ctx
}

// FromURL parses browser context out of a raw URL. A malformed or empty
// URL yields nil rather than an error.
func FromURL(rawURL string) *BrowserContext {
	if rawURL == "" {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	bc := &BrowserContext{
		Domain:    host,
		Path:      u.Path,
		Localhost: host == "localhost" || host == "127.0.0.1" || host == "::1",
	}
	bc.Site = siteContext(host, u.Path, u.Query())
	return bc
}

// siteContext recognizes a small set of high-value sites and extracts
// their path-shaped sub-fields. Unknown sites return nil.
func siteContext(host, path string, query url.Values) *SiteContext {
	segments := splitPath(path)

	switch host {
	case "github.com", "gitlab.com", "bitbucket.org", "codeberg.org":
		if len(segments) >= 2 {
			return &SiteContext{Kind: SiteCodeHosting, Owner: segments[0], Repo: segments[1]}
		}
	case "youtube.com":
		if len(segments) >= 1 && segments[0] == "watch" {
			if v := query.Get("v"); v != "" {
				return &SiteContext{Kind: SiteVideo, VideoID: v}
			}
		}
	case "youtu.be":
		if len(segments) >= 1 {
			return &SiteContext{Kind: SiteVideo, VideoID: segments[0]}
		}
	case "stackoverflow.com":
		if len(segments) >= 2 && segments[0] == "questions" {
			return &SiteContext{Kind: SiteQA, QuestionID: segments[1]}
		}
	}

	return nil
}

func splitPath(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// EditorContext holds hints parsed from an editor-style window title.
type EditorContext struct {
	Project  string
	Filename string
	FileType string
	Language string
}

// knownEditorSuffixes are the application names editors append as the
// final title segment.
var knownEditorSuffixes = map[string]bool{
	"visual studio code": true,
	"vscodium":           true,
	"code":               true,
	"cursor":             true,
	"zed":                true,
	"sublime text":       true,
	"intellij idea":      true,
	"goland":             true,
	"pycharm":            true,
	"webstorm":           true,
	"neovim":             true,
	"vim":                true,
	"emacs":              true,
}

// FromEditorTitle parses titles of the shape
// "<file> <sep> <project> <sep> <app>" where <sep> is " - " or " — ".
// It tries, in order: the three-segment form with a known app suffix, the
// two-segment form with a suffix, a generic split taking segment[0] as
// file and segment[1] as project, and finally the whole title as project.
func FromEditorTitle(title string) *EditorContext {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	segments := splitTitle(title)

	if len(segments) >= 3 && knownEditorSuffixes[strings.ToLower(segments[len(segments)-1])] {
		ec := &EditorContext{
			Filename: segments[0],
			Project:  segments[len(segments)-2],
		}
		ec.FileType, ec.Language = languageFor(ec.Filename)
		return ec
	}

	if len(segments) == 2 && knownEditorSuffixes[strings.ToLower(segments[1])] {
		ec := &EditorContext{Filename: segments[0]}
		ec.FileType, ec.Language = languageFor(ec.Filename)
		return ec
	}

	if len(segments) >= 2 {
		ec := &EditorContext{
			Filename: segments[0],
			Project:  segments[1],
		}
		ec.FileType, ec.Language = languageFor(ec.Filename)
		return ec
	}

	return &EditorContext{Project: segments[0]}
}

// splitTitle splits on the editor separator conventions: a hyphen or an
// em-dash surrounded by spaces.
func splitTitle(title string) []string {
	normalized := strings.ReplaceAll(title, " — ", " - ")
	parts := strings.Split(normalized, " - ")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	if len(segments) == 0 {
		return []string{strings.TrimSpace(title)}
	}
	return segments
}

// languageFor maps a filename to its (extension, language) pair. Unknown
// extensions surface the uppercased extension itself as the language
// label, a deliberate soft-fallback.
func languageFor(filename string) (fileType, language string) {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return "", ""
	}
	ext := strings.ToLower(filename[idx+1:])
	if strings.ContainsAny(ext, " /\\") {
		return "", ""
	}
	if lang, ok := extensionLanguages[ext]; ok {
		return ext, lang
	}
	return ext, strings.ToUpper(ext)
}

// TerminalContext holds hints parsed from a terminal-style window title.
type TerminalContext struct {
	Project string
	Command string
	Path    string
}

var (
	terminalPathRe    = regexp.MustCompile(`(~?/[\w.@~/-]*)`)
	terminalCommandRe = regexp.MustCompile(`(?:^|[:\s])([a-z][\w.-]*)\s*$`)
)

// containerDirs are conventional parent folders whose child directory
// is taken as the project name.
var containerDirs = map[string]bool{
	"projects": true,
	"repos":    true,
	"dev":      true,
	"code":     true,
}

// FromTerminalTitle extracts a filesystem-looking path and a trailing
// command token from a terminal title. The project name comes from the
// directory following a conventional container folder, or else the last
// path segment.
func FromTerminalTitle(title string) *TerminalContext {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	tc := &TerminalContext{}

	if m := terminalPathRe.FindString(title); m != "" {
		tc.Path = m
		tc.Project = projectFromPath(m)
	}

	if m := terminalCommandRe.FindStringSubmatch(title); m != nil {
		// The trailing token is only a command when it isn't part of the path.
		if tc.Path == "" || !strings.HasSuffix(tc.Path, m[1]) {
			tc.Command = m[1]
		}
	}

	if tc.Path == "" && tc.Command == "" {
		return nil
	}
	return tc
}

func projectFromPath(path string) string {
	segments := splitPath(strings.TrimPrefix(path, "~"))
	for i, s := range segments {
		if containerDirs[strings.ToLower(s)] && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	if len(segments) > 0 {
		return segments[len(segments)-1]
	}
	return ""
}
