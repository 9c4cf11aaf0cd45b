//go:build linux

package logger

// ioctlGetTermios is the ioctl request number for reading terminal
// attributes on Linux.
const ioctlGetTermios = 0x5401 // TCGETS
