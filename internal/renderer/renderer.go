// Package renderer produces the HTML document that hosts a compiled preview.
package renderer

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path"
	"strings"
)

// DefaultTitle is used when a page has no title of its own.
const DefaultTitle = "Preview"

//go:embed template.html
var pageTemplate string

var page = template.Must(template.New("page").Parse(pageTemplate))

// Options controls the rendered document.
type Options struct {
	Title string
	// Markup is literal HTML, or a path to a file holding it.
	Markup string
	// AssetPrefix is prepended to every asset name. Defaults to "/assets/".
	AssetPrefix string
	// LiveReload injects a client that reloads the page on rebuilds.
	LiveReload bool
	// ReloadPath is the websocket endpoint used by the reload client.
	ReloadPath string
}

type pageData struct {
	Title       string
	Markup      template.HTML
	Scripts     []string
	Stylesheets []string
	LiveReload  bool
	ReloadPath  string
}

// ResolveMarkup returns the contents of the file at markup when it names a
// readable file, and markup itself otherwise.
func ResolveMarkup(markup string) string {
	if markup == "" {
		return ""
	}
	// markup containing a newline or a tag is never a path
	if strings.ContainsAny(markup, "<\n") {
		return markup
	}

	info, err := os.Stat(markup)
	if err != nil || info.IsDir() {
		return markup
	}

	content, err := os.ReadFile(markup)
	if err != nil {
		return markup
	}

	return string(content)
}

// Render builds the preview document for assets in the order given.
// Stylesheets are linked in the head, everything else is loaded as a script.
func Render(assets []string, opts Options) (string, error) {
	prefix := opts.AssetPrefix
	if prefix == "" {
		prefix = "/assets/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	data := pageData{
		Title:      opts.Title,
		Markup:     template.HTML(ResolveMarkup(opts.Markup)),
		LiveReload: opts.LiveReload,
		ReloadPath: opts.ReloadPath,
	}
	if data.Title == "" {
		data.Title = DefaultTitle
	}
	if data.ReloadPath == "" {
		data.ReloadPath = "/ws"
	}

	for _, asset := range assets {
		src := prefix + strings.TrimLeft(asset, "/")
		if strings.EqualFold(path.Ext(asset), ".css") {
			data.Stylesheets = append(data.Stylesheets, src)
			continue
		}
		data.Scripts = append(data.Scripts, src)
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render preview page: %w", err)
	}

	return buf.String(), nil
}
