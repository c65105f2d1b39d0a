package preview

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/ziadkadry99/draw2ui/internal/state"
	"github.com/ziadkadry99/draw2ui/internal/store"
)

type frame struct {
	Width, Height string
}

var frames = map[state.Device]frame{
	state.DeviceDesktop: {Width: "100%", Height: "auto"},
	state.DeviceTablet:  {Width: "768px", Height: "1024px"},
	state.DeviceMobile:  {Width: "375px", Height: "812px"},
}

const documentTemplate = `<!DOCTYPE html>
<html lang="en"{{if .Dark}} class="dark"{{end}}>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<link rel="preconnect" href="https://fonts.googleapis.com">
<link rel="stylesheet" href="https://fonts.googleapis.com/css2?family=Inter:wght@400;500;600;700&family=Roboto:wght@400;500;700&family=Open+Sans:wght@400;600;700&family=Lato:wght@400;700&family=Poppins:wght@400;500;600;700&display=swap">
<script src="https://cdn.tailwindcss.com"></script>
<script>
tailwind.config = {
  darkMode: 'class',
  theme: {
    extend: {
      fontFamily: {
{{- range .Fonts}}
        '{{.Key}}': ['{{.Family}}', 'sans-serif'],
{{- end}}
      },
    },
  },
};
</script>
{{- if .Framed}}
<style>
body { margin: 0; }
.draw2ui-stage { display: flex; justify-content: center; padding: 2rem 0; min-height: 100vh; box-sizing: border-box; }
.draw2ui-frame { {{.FrameStyle}} }
</style>
{{- end}}
</head>
<body class="bg-white text-zinc-900 dark:bg-zinc-950 dark:text-zinc-50">
{{- if .Framed}}
<div class="draw2ui-stage"><div class="draw2ui-frame">
{{.Body}}
</div></div>
{{- else}}
{{.Body}}
{{- end}}
</body>
</html>
`

var docTmpl = template.Must(template.New("document").Parse(documentTemplate))

type fontEntry struct {
	Key, Family string
}

type documentData struct {
	Title      string
	Dark       bool
	Framed     bool
	FrameStyle template.CSS
	Fonts      []fontEntry
	Body       template.HTML
}

// Document renders markup as a complete preview page: Tailwind and the
// font catalogue loaded, the dark class set for the dark theme, and the
// processed markup inside a device frame scaled by the zoom factor.
func Document(html string, s state.PreviewSettings, theme store.Theme) (string, error) {
	f, ok := frames[s.Device]
	if !ok {
		f = frames[state.DeviceDesktop]
	}
	scale := state.ClampScale(s.Scale)
	if s.Scale == 0 {
		scale = 1
	}

	style := fmt.Sprintf(
		"width: %s; height: %s; max-width: 100%%; overflow: auto; transform: scale(%.2f); transform-origin: top center;",
		f.Width, f.Height, scale,
	)
	if s.Device != state.DeviceDesktop {
		style += " border: 1px solid rgba(127,127,127,.3); border-radius: 1rem;"
	}

	return render(documentData{
		Title:      "draw2ui preview",
		Dark:       theme == store.ThemeDark,
		Framed:     true,
		FrameStyle: template.CSS(style),
		Body:       template.HTML(Process(html, s)),
	})
}

// Export renders the processed markup as a standalone page without the
// device frame, suitable for download.
func Export(html, title string, s state.PreviewSettings, theme store.Theme) (string, error) {
	if strings.TrimSpace(title) == "" {
		title = "draw2ui export"
	}
	return render(documentData{
		Title: title,
		Dark:  theme == store.ThemeDark,
		Body:  template.HTML(Process(html, s)),
	})
}

func render(data documentData) (string, error) {
	for _, class := range Fonts[1:] {
		data.Fonts = append(data.Fonts, fontEntry{
			Key:    strings.TrimPrefix(class, "font-"),
			Family: fontFamily(class),
		})
	}

	var buf bytes.Buffer
	if err := docTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering preview: %w", err)
	}
	return buf.String(), nil
}
