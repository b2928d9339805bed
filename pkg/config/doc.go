// Package config loads typed configuration structs from environment
// variables, with optional .env bootstrap for local development.
//
// Values are cached per struct type so repeated loads across components
// are cheap and consistent.
package config
