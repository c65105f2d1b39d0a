package generate

import (
	"strings"
	"text/template"
)

var promptTemplate = template.Must(template.New("prompt").Parse(`
You are an expert Frontend Developer and UI Designer specializing in Tailwind CSS.
Your task is to convert the provided wireframe/sketch into a high-fidelity, production-ready HTML component using Tailwind CSS.

Requirements:
1.  **Framework:** Use ONLY standard HTML and Tailwind CSS (v3/v4 compatible). No external CSS files.
2.  **Responsiveness:** The layout must be responsive (mobile-first or adaptable).
3.  **Theme:** Support Dark Mode. Use 'dark:' classes for dark mode variants. The user prefers '{{.Theme}}' mode.
4.  **Fonts:** Use 'font-sans' (Google Sans/Inter) for text and 'font-mono' (Google Sans Code) for code/numbers.
5.  **Colors:** Use a modern, clean palette. Use 'indigo-600' as the primary color unless the sketch implies otherwise.
6.  **Icons:** Use inline SVGs for icons (Heroicons style). Do not use external icon libraries.
7.  **Output:** Return ONLY the raw HTML string (e.g., <div class="...">...</div>). Do NOT wrap in markdown code blocks. Do not include <!DOCTYPE html> or <html> tags, just the component markup.
8.  **Context:** The user might provide extra instructions.

User Instructions: {{.Prompt}}
`))

// BuildPrompt renders the model instructions. An empty theme becomes
// "system" and an empty prompt "None".
func BuildPrompt(prompt, theme string) string {
	if strings.TrimSpace(theme) == "" {
		theme = "system"
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = "None"
	}

	var b strings.Builder
	_ = promptTemplate.Execute(&b, struct{ Prompt, Theme string }{prompt, theme})
	return b.String()
}
