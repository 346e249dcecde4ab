// Package docs carries the generated OpenAPI document of the HTTP API.
package docs

import _ "embed"

//go:embed swagger.json
var swagger []byte

// SwaggerJSON returns the OpenAPI 2.0 document served at /api/swagger.json.
func SwaggerJSON() []byte {
	return swagger
}
