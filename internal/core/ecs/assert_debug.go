//go:build !release

package ecs

const debugChecks = true
