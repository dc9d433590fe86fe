package shell

import "strings"

// unixToPowerShell maps the leading word of a Unix command to its
// PowerShell replacement. Rewriting is prefix-based: only a command
// whose first token matches is touched, so an already-PowerShell
// command (Get-Content, Remove-Item, ...) passes through unchanged.
var unixToPowerShell = map[string]string{
	"cat":   "Get-Content",
	"ls":    "Get-ChildItem",
	"cp":    "Copy-Item",
	"mv":    "Move-Item",
	"pwd":   "Get-Location",
	"which": "Get-Command",
	"grep":  "Select-String -Pattern",
	"head":  "Select-Object -First 10 -InputObject",
	"touch": "New-Item -ItemType File -Path",
	"env":   "Get-ChildItem Env:",
	"clear": "Clear-Host",
}

// NormalizeForPowerShell rewrites common Unix constructs in command for
// a PowerShell host: the `&&` chain operator becomes `;`, `rm -rf X`
// becomes `Remove-Item -Recurse -Force X`, and leading Unix commands
// are swapped for their cmdlet equivalents. Commands that already look
// like PowerShell are returned unchanged.
func NormalizeForPowerShell(command string) string {
	segments := strings.Split(command, "&&")
	for i, seg := range segments {
		segments[i] = rewriteSegment(strings.TrimSpace(seg))
	}
	return strings.Join(segments, "; ")
}

func rewriteSegment(seg string) string {
	if seg == "" {
		return seg
	}
	fields := strings.Fields(seg)
	head := fields[0]

	// Cmdlets follow Verb-Noun casing; anything containing a dash in
	// that shape is assumed to be PowerShell already.
	if strings.Contains(head, "-") && head != "rm" {
		return seg
	}

	// rm with recursive/force flags maps onto Remove-Item flags; plain
	// rm maps onto plain Remove-Item.
	if head == "rm" {
		rest := fields[1:]
		recurse, force := false, false
		var operands []string
		for _, f := range rest {
			if strings.HasPrefix(f, "-") && !strings.HasPrefix(f, "--") {
				flags := strings.TrimPrefix(f, "-")
				if strings.ContainsAny(flags, "rR") {
					recurse = true
				}
				if strings.Contains(flags, "f") {
					force = true
				}
				continue
			}
			operands = append(operands, f)
		}
		out := "Remove-Item"
		if recurse {
			out += " -Recurse"
		}
		if force {
			out += " -Force"
		}
		if len(operands) > 0 {
			out += " " + strings.Join(operands, " ")
		}
		return out
	}

	if replacement, ok := unixToPowerShell[head]; ok {
		if len(fields) == 1 {
			return replacement
		}
		return replacement + " " + strings.Join(fields[1:], " ")
	}
	return seg
}

// Normalize rewrites command for env's shell. POSIX shells take the
// command verbatim; PowerShell gets the Unix-construct rewrite; cmd is
// left alone since the risk analyzer refuses most of what would need
// translation anyway.
func Normalize(command string, env Environment) string {
	if env.Shell == PowerShell {
		return NormalizeForPowerShell(command)
	}
	return command
}
