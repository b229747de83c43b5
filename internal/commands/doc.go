// Package commands implements the quicksilver command line.
package commands
