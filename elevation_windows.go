//go:build windows

package psadiag

import (
	"log"

	"golang.org/x/sys/windows"
)

// IsElevated reports whether the process runs with administrator rights.
func IsElevated() bool {
	var sid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		log.Printf("Admin check failed: %s", err)
		return false
	}
	defer windows.FreeSid(sid)
	member, err := windows.Token(0).IsMember(sid)
	if err != nil {
		log.Printf("Admin check failed: %s", err)
		return false
	}
	log.Printf("Admin check: %t", member)
	return member
}
