// Package docs provides generated OpenAPI documentation.
//
// Sprout API
//
//	@title			Sprout API
//	@version		1.0
//	@description	Seed-packet submission API for generating plant research, growing guides, and mascot characters.
//	@termsOfService	http://swagger.io/terms/
//
//	@contact.name	API Support
//	@contact.url	https://github.com/seedlab/sprout
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
package docs

//go:generate swag init -g ../cmd/sprout/serve.go -o ./swagger --parseDependency --parseInternal
