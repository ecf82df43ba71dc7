package indexer

import "strings"

// DefaultLanguage is the tag for extensions without a mapping.
const DefaultLanguage = "text"

var languages = map[string]string{
	".go":    "go",
	".js":    "javascript",
	".jsx":   "react",
	".ts":    "typescript",
	".tsx":   "react-typescript",
	".sql":   "sql",
	".py":    "python",
	".rb":    "ruby",
	".php":   "php",
	".java":  "java",
	".rs":    "rust",
	".cpp":   "cpp",
	".c":     "c",
	".h":     "c",
	".hpp":   "cpp",
	".cs":    "csharp",
	".swift": "swift",
	".kt":    "kotlin",
	".r":     "r",
	".jl":    "julia",
	".yml":   "yaml",
	".yaml":  "yaml",
	".json":  "json",
	".toml":  "toml",
	".md":    "markdown",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".sh":    "bash",
	".bash":  "bash",
	".env":   "dotenv",
	".conf":  "config",
	".txt":   "text",
}

// LanguageFor returns the language tag for a file extension (with leading dot).
func LanguageFor(ext string) string {
	if lang, ok := languages[strings.ToLower(ext)]; ok {
		return lang
	}
	return DefaultLanguage
}
