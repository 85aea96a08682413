package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"legaldesk/pkg/accesstoken"
)

const suffixLength = 8

// ObjectPath builds a collision-resistant key under {tenant}/{scope}/.
// The file name contributes only its extension.
func ObjectPath(tenant, scope, fileName string, now time.Time) string {
	return fmt.Sprintf("%s/%s/%d_%s%s",
		tenant, scope, now.UnixMilli(), accesstoken.Generate(suffixLength), safeExt(fileName))
}

// IsRemoteURL reports whether ref is already a public http(s) URL rather than a storage path.
func IsRemoteURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")
}

// InTenant reports whether path is a storage key under {tenant}/. Keys with
// empty, "." or ".." segments never match.
func InTenant(path, tenant string) bool {
	if tenant == "" || !strings.HasPrefix(path, tenant+"/") {
		return false
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

func safeExt(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
