package routes

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/JustSympa/agariki/docs"
	"github.com/JustSympa/agariki/internal/config"
	"github.com/gofiber/fiber/v2"
)

const docsIndexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{ .Title }}</title>
  <style>
    body { margin: 0; font-family: Georgia, "Times New Roman", serif; color: #1d1a14; background: #f7f4ee; }
    main { max-width: 1080px; margin: 0 auto; padding: 40px 20px 56px; }
    h1 { margin: 0 0 8px; font-size: 2.4rem; }
    p { color: #5d564a; line-height: 1.6; }
    a { color: #7a4b1f; }
    pre { padding: 20px; overflow: auto; border-radius: 12px; background: #1f1b16; color: #efe8dc; font-size: 0.85rem; line-height: 1.5; }
  </style>
</head>
<body>
  <main>
    <h1>{{ .Title }}</h1>
    <p>Loaded {{ .LoadedAt }}. Download the raw document from <a href="/docs/openapi.yaml">/docs/openapi.yaml</a>.</p>
    <pre>{{ .Spec }}</pre>
  </main>
</body>
</html>
`

type docsPageData struct {
	Title    string
	LoadedAt string
	Spec     string
}

func registerDocsRoutes(app fiber.Router, cfg *config.Config) error {
	if !cfg.DocsEnabled() {
		return nil
	}

	indexTemplate, err := template.New("docs-index").Parse(docsIndexHTML)
	if err != nil {
		return fmt.Errorf("parse docs template: %w", err)
	}

	pageData := docsPageData{
		Title:    "Agariki API",
		LoadedAt: time.Now().UTC().Format(time.RFC3339),
		Spec:     string(docs.OpenAPI),
	}

	indexHandler := func(c *fiber.Ctx) error {
		applyDocsBaseHeaders(c, fiber.MIMETextHTMLCharsetUTF8)
		c.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; base-uri 'none'; form-action 'none'; frame-ancestors 'none'")

		var body bytes.Buffer
		if err := indexTemplate.Execute(&body, pageData); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to render api docs")
		}

		return c.Status(fiber.StatusOK).Send(body.Bytes())
	}

	app.Get("/docs", indexHandler)
	app.Get("/docs/", indexHandler)
	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		applyDocsBaseHeaders(c, "application/yaml; charset=utf-8")
		c.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'; form-action 'none'")
		c.Set(fiber.HeaderContentDisposition, `inline; filename="openapi.yaml"`)
		return c.Status(fiber.StatusOK).Send(docs.OpenAPI)
	})

	return nil
}

func applyDocsBaseHeaders(c *fiber.Ctx, contentType string) {
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "no-store, max-age=0")
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Set(fiber.HeaderXFrameOptions, "DENY")
	c.Set("Referrer-Policy", "no-referrer")
	c.Set("X-Robots-Tag", "noindex, nofollow")
}
