package psadiag

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// defenderScript builds a PowerShell one-liner that adds any missing
// exclusion paths and reports the result as JSON.
func defenderScript(paths []string) string {
	quoted := make([]string, len(paths))
	for i, p := range paths {
		quoted[i] = "'" + strings.ReplaceAll(p, "'", "''") + "'"
	}
	return "try { $existing=(Get-MpPreference).ExclusionPath; $added=@(); $failed=@();" +
		"foreach($p in @(" + strings.Join(quoted, ",") + ")) {" +
		" if($existing -notcontains $p) {" +
		" try { Add-MpPreference -ExclusionPath $p; $added += $p } catch { $failed += $p } } }" +
		"$res = @{added=$added; failed=$failed}; $res | ConvertTo-Json -Compress" +
		" } catch { Write-Error $_; exit 1 }"
}

// addDefenderExclusions registers the install paths with Windows Defender.
// Requires elevation; failures are reported per path.
func addDefenderExclusions(paths []string) (added, failed []string, err error) {
	if len(paths) == 0 {
		return nil, nil, nil
	}
	log.Println("Attempting to create Defender exclusions via PowerShell (before extraction)")
	cmd := execCommand(
		"powershell.exe", "-NoProfile", "-NonInteractive", "-Command", defenderScript(paths),
	)
	out, runErr := cmd.Output()
	if runErr != nil {
		return nil, nil, fmt.Errorf("powershell exited with code %d", exitCode(runErr))
	}
	result := struct {
		Added  flexibleStringList `json:"added"`
		Failed flexibleStringList `json:"failed"`
	}{}
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return nil, nil, nil
	}
	if err = json.Unmarshal([]byte(trimmed), &result); err != nil {
		return nil, nil, fmt.Errorf("parsing Defender PowerShell output: %w", err)
	}
	return result.Added, result.Failed, nil
}

// flexibleStringList decodes both a JSON array and the bare string
// ConvertTo-Json emits for single-element arrays.
type flexibleStringList []string

func (l *flexibleStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*l = []string{single}
	return nil
}
