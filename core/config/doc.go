// Package config loads typed settings from the environment.
//
// Every integration in this module declares a Config struct with env and
// envDefault tags. Load fills one in with caarlos0/env after reading a .env
// file, if present, through godotenv:
//
//	var cfg mongolog.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// The first successful load of each type is cached, so repeated loads of the
// same type in one process return identical values without re-reading the
// environment. Tests that change variables call Reset between cases.
//
// MustLoad panics instead of returning an error and suits package main.
package config
