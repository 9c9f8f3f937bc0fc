package main

// defaultChannelName lives in the Windows pipe namespace.
const defaultChannelName = `\\.\pipe\sysport.demo`
