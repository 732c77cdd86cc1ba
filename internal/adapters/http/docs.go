package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/aquadex/aquadex/api"
)

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>AquaDex Store Directory API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.yaml',
      dom_id: '#swagger-ui',
      // Open the store search operations, the ones map clients call.
      docExpansion: 'list',
      filter: 'stores',
      tryItOutEnabled: true,
    });
  </script>
</body>
</html>`

// SetupDocs serves Swagger UI at /docs and the embedded OpenAPI document
// at /docs/openapi.yaml, so the binary does not depend on its working directory.
func SetupDocs(app *fiber.App) {
	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Type("html", "utf-8")
		return c.SendString(swaggerUIHTML)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "application/yaml")
		c.Set(fiber.HeaderCacheControl, "public, max-age=3600")
		return c.Send(api.OpenAPI)
	})
}
