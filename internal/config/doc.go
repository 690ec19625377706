// Package config loads the credbroker configuration.
//
// Values come from three layers, later ones winning: built-in defaults, a
// YAML file, and CREDBROKER_* environment variables. Secret material is not
// part of this configuration; see internal/secrets.
//
//	server:
//	  port: 8080
//	  publicUrl: https://broker.example.com
//	database:
//	  driver: postgres
//	  dsn: postgres://broker@db/broker?sslmode=require
//	state:
//	  validity: 10m
//	  singleUse: true
//	  ledger: database
//	google:
//	  enabled: true
//	  clientId: 1234.apps.googleusercontent.com
//	slack:
//	  enabled: true
//	  clientId: "1111.2222"
//	  botScopes: [commands, chat:write]
package config
