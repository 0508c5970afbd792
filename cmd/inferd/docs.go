package main

// General API documentation for swaggo. Run `swag init -g cmd/inferd/docs.go` to regenerate.
//
// @title           inferd API
// @version         1.0
// @description     HTTP API for stateful local LLM inference sessions.
//
// @contact.name   inferd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
