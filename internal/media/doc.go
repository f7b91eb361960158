// Package media holds the source-file descriptor shared by profile argument
// synthesis, probing, and the conversion runner.
package media
