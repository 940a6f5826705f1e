package extract

// extensionLanguages maps file extensions to language labels. Extensions
// not listed here fall back to the uppercased extension.
var extensionLanguages = map[string]string{
	"go":     "Go",
	"rs":     "Rust",
	"py":     "Python",
	"rb":     "Ruby",
	"js":     "JavaScript",
	"jsx":    "JavaScript",
	"ts":     "TypeScript",
	"tsx":    "TypeScript",
	"c":      "C",
	"h":      "C",
	"cc":     "C++",
	"cpp":    "C++",
	"hpp":    "C++",
	"cs":     "C#",
	"java":   "Java",
	"kt":     "Kotlin",
	"swift":  "Swift",
	"m":      "Objective-C",
	"php":    "PHP",
	"scala":  "Scala",
	"clj":    "Clojure",
	"ex":     "Elixir",
	"exs":    "Elixir",
	"erl":    "Erlang",
	"hs":     "Haskell",
	"lua":    "Lua",
	"pl":     "Perl",
	"r":      "R",
	"sh":     "Shell",
	"bash":   "Shell",
	"zsh":    "Shell",
	"fish":   "Shell",
	"sql":    "SQL",
	"html":   "HTML",
	"htm":    "HTML",
	"css":    "CSS",
	"scss":   "SCSS",
	"less":   "Less",
	"vue":    "Vue",
	"svelte": "Svelte",
	"json":   "JSON",
	"yaml":   "YAML",
	"yml":    "YAML",
	"toml":   "TOML",
	"xml":    "XML",
	"md":     "Markdown",
	"rst":    "reStructuredText",
	"tex":    "LaTeX",
	"proto":  "Protocol Buffers",
	"tf":     "Terraform",
	"zig":    "Zig",
	"nim":    "Nim",
	"dart":   "Dart",
	"vim":    "Vimscript",
	"el":     "Emacs Lisp",
}
