// Package speaker registers the sound card as the "speaker" audio output.
//
// The output needs cgo and the ALSA headers on Linux, so it is only compiled
// with the speaker build tag:
//
//	go build -tags speaker .
//
// Without the tag the server falls back to the null output.
package speaker
