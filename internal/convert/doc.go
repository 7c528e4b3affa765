// Package convert shells out to heif-convert and ffmpeg to turn HEIC stills
// and videos into the JPEG inputs vision providers accept.
package convert
