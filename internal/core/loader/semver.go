package loader

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// canonical 把 npm 风格版本（无 v 前缀）转换为 x/mod/semver 形式
func canonical(version string) string {
	v := strings.TrimSpace(version)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}

// validVersion 是否为合法版本
func validVersion(version string) bool {
	return canonical(version) != ""
}

// matchRange 判断 version 是否满足 rng
func matchRange(rng, version string) (bool, error) {
	v := canonical(version)
	if v == "" {
		return false, fmt.Errorf("%w: version %q", ErrInvalidRange, version)
	}
	rng = strings.TrimSpace(rng)
	if rng == "" || rng == "*" || rng == "latest" {
		return true, nil
	}

	var op string
	for _, p := range []string{">=", "^", "~", "="} {
		if strings.HasPrefix(rng, p) {
			op, rng = p, strings.TrimSpace(rng[len(p):])
			break
		}
	}
	base := canonical(rng)
	if base == "" {
		return false, fmt.Errorf("%w: %q", ErrInvalidRange, rng)
	}

	switch op {
	case "", "=":
		return semver.Compare(v, base) == 0, nil
	case ">=":
		return semver.Compare(v, base) >= 0, nil
	case "~":
		return semver.Compare(v, base) >= 0 && semver.Compare(v, bumpMinor(base)) < 0, nil
	case "^":
		return semver.Compare(v, base) >= 0 && semver.Compare(v, caretCeiling(base)) < 0, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidRange, rng)
}

func parts(v string) (major, minor, patch int) {
	core := strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	fmt.Sscanf(core, "%d.%d.%d", &major, &minor, &patch)
	return
}

func bumpMinor(v string) string {
	major, minor, _ := parts(v)
	return fmt.Sprintf("v%d.%d.0", major, minor+1)
}

// caretCeiling ^ 的上界：第一个非零段进一
func caretCeiling(v string) string {
	major, minor, patch := parts(v)
	switch {
	case major > 0:
		return fmt.Sprintf("v%d.0.0", major+1)
	case minor > 0:
		return fmt.Sprintf("v0.%d.0", minor+1)
	default:
		return fmt.Sprintf("v0.0.%d", patch+1)
	}
}

// higher 比较两个版本
func higher(a, b string) bool {
	return semver.Compare(canonical(a), canonical(b)) > 0
}
