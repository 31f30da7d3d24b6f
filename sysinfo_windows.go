//go:build windows

package psadiag

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

func osFileWriteAccess(path string) bool {
	testPath, err := syscall.UTF16PtrFromString(filepath.Join(path, ".test"))
	if err != nil {
		return false
	}
	handle, err := windows.CreateFile(
		testPath,
		windows.GENERIC_WRITE|windows.GENERIC_READ,
		0,
		nil,
		windows.CREATE_NEW,
		windows.FILE_ATTRIBUTE_HIDDEN,
		0,
	)
	if err != nil {
		return false
	}
	windows.CloseHandle(handle)
	windows.DeleteFile(testPath)
	return true
}

func osDiskSpace(path string) (availableBytes int64) {
	win32 := syscall.MustLoadDLL("kernel32.dll")
	getDiskFreeSpace := win32.MustFindProc("GetDiskFreeSpaceExW")
	pathPtr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return -1
	}
	getDiskFreeSpace.Call(
		uintptr(unsafe.Pointer(pathPtr)),
		uintptr(0),
		uintptr(0),
		uintptr(unsafe.Pointer(&availableBytes)),
	)
	return
}

type memoryStatusEx struct {
	Length               uint32
	MemoryLoad           uint32
	TotalPhys            uint64
	AvailPhys            uint64
	TotalPageFile        uint64
	AvailPageFile        uint64
	TotalVirtual         uint64
	AvailVirtual         uint64
	AvailExtendedVirtual uint64
}

func osTotalRAM() int64 {
	win32 := syscall.MustLoadDLL("kernel32.dll")
	globalMemoryStatus := win32.MustFindProc("GlobalMemoryStatusEx")
	status := memoryStatusEx{Length: uint32(unsafe.Sizeof(memoryStatusEx{}))}
	ret, _, _ := globalMemoryStatus.Call(uintptr(unsafe.Pointer(&status)))
	if ret == 0 {
		return 0
	}
	return int64(status.TotalPhys)
}

func osName() string {
	major, minor, build := windows.RtlGetNtVersionNumbers()
	var name string
	switch {
	case major == 10 && build >= 22000:
		name = "Windows 11"
	case major == 10:
		name = "Windows 10"
	default:
		name = fmt.Sprintf("Windows %d.%d", major, minor)
	}
	if strings.HasSuffix(runtime.GOARCH, "64") {
		return name + " 64 Bits"
	}
	return name + " 32 Bits"
}
