package infrastructure

import "strings"

// ShellEscape quotes s for display in a copy-pasteable command line.
// It is only used when logging the yt-dlp invocation.
func ShellEscape(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsFunc(s, isShellSpecialChar) {
		return s
	}
	// ' becomes '"'"' inside a single-quoted word
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// ShellJoin escapes and joins words with single spaces
func ShellJoin(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = ShellEscape(w)
	}
	return strings.Join(quoted, " ")
}

// ShellEscapeCommand renders binary and args as one loggable line
func ShellEscapeCommand(binary string, args ...string) string {
	return ShellJoin(append([]string{binary}, args...))
}

func isShellSpecialChar(c rune) bool {
	return strings.ContainsRune(" \t'\"$`\\!*?[](){}|;<>&~#%\n\r", c)
}
