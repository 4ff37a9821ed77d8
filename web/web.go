// Package web embeds the server-rendered pages.
package web

import (
	"embed"
	"html/template"
	"strconv"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var files embed.FS

// Funcs are the helpers available to every page.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"f1":    func(f float64) string { return strconv.FormatFloat(f, 'f', 1, 64) },
		"f2":    func(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) },
		"odds": func(o int) string {
			if o > 0 {
				return "+" + strconv.Itoa(o)
			}
			return strconv.Itoa(o)
		},
		"positive": func(d decimal.Decimal) bool { return d.IsPositive() },
	}
}

// Templates parses every embedded page.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(Funcs()).ParseFS(files, "templates/*.html"))
}
