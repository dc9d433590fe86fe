// Package shell detects the host operating system and interactive
// shell, and rewrites common Unix command lines into their PowerShell
// equivalents so one tool surface works across hosts.
package shell

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// OS names the host platform family.
type OS string

const (
	OSWindows OS = "windows"
	OSMacOS   OS = "macos"
	OSLinux   OS = "linux"
	OSUnknown OS = "unknown"
)

// Kind names the shell a command string will be interpreted by.
type Kind string

const (
	PowerShell Kind = "powershell"
	Cmd        Kind = "cmd"
	Bash       Kind = "bash"
	Zsh        Kind = "zsh"
	Fish       Kind = "fish"
	Sh         Kind = "sh"
	Unknown    Kind = "unknown"
)

// Environment is the detected host context the bash tool and the risk
// analyzer key their behavior off.
type Environment struct {
	OS    OS
	Shell Kind
	// Exe and ExecArgs are what to spawn to run a command string:
	// Exe + ExecArgs + command.
	Exe      string
	ExecArgs []string
}

// Detect inspects the build-time OS and the SHELL, PSModulePath, and
// ComSpec environment variables to decide what shell commands will run
// under.
func Detect() Environment {
	return detect(runtime.GOOS, os.Getenv)
}

// detect is the testable core: goos and getenv are injected.
func detect(goos string, getenv func(string) string) Environment {
	env := Environment{OS: OSUnknown, Shell: Unknown}

	switch goos {
	case "windows":
		env.OS = OSWindows
	case "darwin":
		env.OS = OSMacOS
	case "linux":
		env.OS = OSLinux
	}

	if shellPath := getenv("SHELL"); shellPath != "" {
		switch filepath.Base(shellPath) {
		case "bash":
			env.Shell = Bash
		case "zsh":
			env.Shell = Zsh
		case "fish":
			env.Shell = Fish
		case "sh", "dash", "ash":
			env.Shell = Sh
		case "pwsh", "powershell":
			env.Shell = PowerShell
		}
	}

	if env.Shell == Unknown && env.OS == OSWindows {
		if getenv("PSModulePath") != "" {
			env.Shell = PowerShell
		} else if comspec := getenv("ComSpec"); comspec != "" && strings.Contains(strings.ToLower(comspec), "cmd") {
			env.Shell = Cmd
		}
	}
	if env.Shell == Unknown {
		if env.OS == OSWindows {
			env.Shell = PowerShell
		} else {
			env.Shell = Sh
		}
	}

	switch env.Shell {
	case PowerShell:
		env.Exe = "powershell"
		env.ExecArgs = []string{"-NoProfile", "-NonInteractive", "-Command"}
	case Cmd:
		env.Exe = "cmd"
		env.ExecArgs = []string{"/C"}
	case Bash:
		env.Exe = "/bin/bash"
		env.ExecArgs = []string{"-c"}
	case Zsh:
		env.Exe = "/bin/zsh"
		env.ExecArgs = []string{"-c"}
	case Fish:
		env.Exe = "/usr/bin/fish"
		env.ExecArgs = []string{"-c"}
	default:
		env.Exe = "/bin/sh"
		env.ExecArgs = []string{"-c"}
	}
	return env
}

// IsPOSIX reports whether the shell speaks a Bourne-family grammar.
func (e Environment) IsPOSIX() bool {
	switch e.Shell {
	case Bash, Zsh, Sh:
		return true
	default:
		return false
	}
}
