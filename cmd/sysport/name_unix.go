//go:build !windows

package main

// defaultChannelName is a Unix socket path; any writable directory works.
const defaultChannelName = "/tmp/sysport.demo.sock"
