package llm

import "regexp"

var secretPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(GITHUB_TOKEN|TOGGL_API_TOKEN|NOTION_TOKEN|ANTHROPIC_API_KEY|GEMINI_API_KEY|AWS_SECRET_ACCESS_KEY)\s*=\s*(\S+)`), "$1=[REDACTED]"},
	{regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`), "[REDACTED:ANTHROPIC_KEY]"},
	{regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`), "[REDACTED:API_KEY]"},
	{regexp.MustCompile(`gh[pousr]_[A-Za-z0-9]{30,}`), "[REDACTED:GITHUB_TOKEN]"},
	{regexp.MustCompile(`(secret|ntn)_[A-Za-z0-9]{30,}`), "[REDACTED:NOTION_TOKEN]"},
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "[REDACTED:AWS_KEY]"},
	{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-.=]{20,}`), "[REDACTED:BEARER_TOKEN]"},
	{regexp.MustCompile(`(?i)(api[_-]?key|token|password|passwd)\s*[:=]\s*["']?([^"'\s]{8,})["']?`), "$1=[REDACTED]"},
	{regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`), "[REDACTED:PRIVATE_KEY]"},
}

// ScrubSecrets redacts credential-looking strings. Commit messages and time
// entry descriptions occasionally carry pasted tokens.
func ScrubSecrets(s string) string {
	for _, p := range secretPatterns {
		s = p.re.ReplaceAllString(s, p.replacement)
	}
	return s
}
