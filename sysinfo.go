package psadiag

import "fmt"

// Minimum system requirements for a Diagbox installation.
const (
	MinRAMGB     = 3.0
	MinStorageGB = 15.0
)

// SystemInfo is a snapshot of the machine the tool runs on.
type SystemInfo struct {
	OSName string
	RAMGB  float64
	FreeGB float64
}

// GetSystemInfo probes the OS name, total RAM and the free space of the
// drive the given path lives on.
func GetSystemInfo(path string) SystemInfo {
	info := SystemInfo{
		OSName: osName(),
		RAMGB:  float64(osTotalRAM()) / float64(GB),
	}
	if free := osDiskSpace(path); free >= 0 {
		info.FreeGB = float64(free) / float64(GB)
	} else {
		info.FreeGB = -1
	}
	return info
}

// FileWriteAccess reports whether the current user may write to the given
// directory.
func FileWriteAccess(path string) bool {
	return osFileWriteAccess(path)
}

// RequirementProblem describes one unmet minimum requirement, as
// translation keys plus the formatted values to fill in.
type RequirementProblem struct {
	ProblemKey  string
	SolutionKey string
	Current     string
	Minimum     string
}

// CheckRequirements returns the unmet minimum requirements, empty when the
// system is good to go. An unreadable free-space probe passes the check.
func (si SystemInfo) CheckRequirements() []RequirementProblem {
	var problems []RequirementProblem
	if si.RAMGB < MinRAMGB {
		problems = append(problems, RequirementProblem{
			ProblemKey:  "messages.requirements.low_ram",
			SolutionKey: "messages.requirements.solution_ram",
			Current:     fmt.Sprintf("%.1f GB", si.RAMGB),
			Minimum:     fmt.Sprintf("%.0f GB", MinRAMGB),
		})
	}
	if si.FreeGB >= 0 && si.FreeGB < MinStorageGB {
		problems = append(problems, RequirementProblem{
			ProblemKey:  "messages.requirements.low_storage",
			SolutionKey: "messages.requirements.solution_storage",
			Current:     fmt.Sprintf("%.1f GB", si.FreeGB),
			Minimum:     fmt.Sprintf("%.0f GB", MinStorageGB),
		})
	}
	return problems
}
