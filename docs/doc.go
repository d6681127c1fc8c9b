// Package docs provides generated OpenAPI documentation.
//
// Foliate API
//
//	@title			Foliate API
//	@version		1.0
//	@description	PDF-to-EPUB conversion API: upload books, follow OCR progress, download results.
//
//	@contact.name	API Support
//	@contact.url	https://github.com/jackzampolin/foliate
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http
package docs

//go:generate swag init -g ../cmd/foliate/serve.go -o ./swagger --parseDependency --parseInternal
